// Package lcd mirrors a split-flap display onto an HD44780 character LCD.
//
// Frames reach the LCD through a channel, so a slow I2C bus never holds up
// playback:
//
//	messages := make(chan lcd.Message, 10)
//	handler := lcd.NewHandler(device, messages, 16, 2, logger)
//	go handler.Run()
//
//	sink := display.Tee{mqttClient, &lcd.Mirror{Topic: "splitflap/lobby", ModulesPerRow: 12, Messages: messages}}
package lcd

import (
	"context"
	"io"
	"log/slog"

	"github.com/harveysanders/splitflap/text"
)

// Device is the subset of hd44780i2c.Device the handler drives.
type Device interface {
	ClearDisplay()
	SetCursor(x, y uint8)
	Print(data []byte)
}

// Message is one screenful, a line per LCD row.
type Message struct {
	Lines [][]byte
}

// Send queues a message built from lines without blocking. It reports false
// when the channel is full and the message was dropped.
func Send(messages chan<- Message, lines ...string) bool {
	msg := Message{Lines: make([][]byte, len(lines))}
	for i, l := range lines {
		msg.Lines[i] = []byte(l)
	}
	select {
	case messages <- msg:
		return true
	default:
		return false
	}
}

// Handler processes LCD messages from a channel.
type Handler struct {
	device   Device
	messages <-chan Message
	logger   *slog.Logger
	rows     int
	columns  int
}

// NewHandler creates a handler for a columns x rows LCD.
func NewHandler(device Device, messages <-chan Message, columns, rows int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		device:   device,
		messages: messages,
		logger:   logger,
		rows:     rows,
		columns:  columns,
	}
}

// Run processes messages from the channel and updates the LCD until the
// channel is closed. Run should be called in a separate goroutine.
func (h *Handler) Run() {
	for msg := range h.messages {
		h.display(msg)
	}
	h.logger.Debug("lcd:stopped")
}

// display prints msg to the LCD, one line per row.
func (h *Handler) display(msg Message) {
	h.device.ClearDisplay()
	for row, line := range msg.Lines {
		if row >= h.rows {
			break
		}
		h.device.SetCursor(0, uint8(row))
		// Truncate in-place, no allocation
		if len(line) > h.columns {
			h.device.Print(line[:h.columns])
		} else {
			h.device.Print(line)
		}
	}
}

// Mirror is a display.Sink that forwards the frames of one topic to an LCD
// handler. The frame is split into rows of ModulesPerRow characters. A full
// channel drops the frame.
type Mirror struct {
	Topic         string
	ModulesPerRow int
	Messages      chan<- Message
	Logger        *slog.Logger
}

func (m *Mirror) Publish(_ context.Context, topic string, payload []byte, _ bool) error {
	if topic != m.Topic {
		return nil
	}
	if !Send(m.Messages, text.FrameRows(string(payload), m.ModulesPerRow)...) && m.Logger != nil {
		m.Logger.Warn("lcd:frame-dropped", slog.String("topic", topic))
	}
	return nil
}
