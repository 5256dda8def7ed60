package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harveysanders/splitflap/config"
	"github.com/harveysanders/splitflap/device"
	"github.com/harveysanders/splitflap/display"
	"github.com/harveysanders/splitflap/splitflapd/lcd"
	"github.com/harveysanders/splitflap/splitflapd/mqtt"
	"github.com/harveysanders/splitflap/store"
)

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to the broker and play commands received for every device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.File, logger *slog.Logger) error {
	defaults, err := cfg.DefaultOptions()
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	stored, err := st.Devices(ctx)
	if err != nil {
		return err
	}
	devices := mergeDevices(cfg.Devices, stored)

	client := &mqtt.Client{
		ID:        cfg.MQTT.ClientID,
		Timeout:   cfg.MQTT.Timeout.Duration,
		KeepAlive: cfg.MQTT.KeepAlive.Duration,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		Logger:    logger.With(slog.String("component", "mqtt")),
	}
	sink := display.Tee{client}

	if cfg.LCD != nil {
		mirror, stopLCD, err := startLCD(*cfg.LCD, devices, logger)
		if err != nil {
			logger.Warn("serve:lcd-unavailable", slog.Any("reason", err))
		} else {
			defer stopLCD()
			sink = append(sink, mirror)
		}
	}

	coord := device.New(device.Options{
		Sink:     sink,
		Defaults: defaults,
		Store:    st,
		Logger:   logger,
	})
	defer coord.Close()
	for _, d := range devices {
		if err := coord.AddDevice(ctx, d); err != nil {
			return err
		}
	}

	client.OnCommand = func(ctx context.Context, msg mqtt.Message) {
		if err := coord.HandleCommand(ctx, msg.Topic, msg.Payload); err != nil {
			logger.Warn("serve:command-failed", slog.String("topic", msg.Topic), slog.Any("reason", err))
		}
	}

	logger.Info("serve:starting", slog.String("broker", cfg.MQTT.Addr), slog.Int("devices", len(devices)))
	err = client.Run(ctx, cfg.MQTT.Addr, coord.CommandTopics())
	if cerr := client.Close(); cerr != nil {
		logger.Warn("serve:disconnect-failed", slog.Any("reason", cerr))
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("serve:stopped")
		return nil
	}
	return err
}

// mergeDevices combines the devices of the config file with those in the
// store. Options saved in the store win over the file, and devices only
// known to the store are kept. With no device at all the default display is
// used.
func mergeDevices(file, stored []config.Device) []config.Device {
	byID := make(map[string]config.Device, len(stored))
	for _, d := range stored {
		byID[d.ID] = d
	}
	out := make([]config.Device, 0, len(file)+len(stored))
	seen := make(map[string]bool, len(file))
	for _, d := range file {
		if s, ok := byID[d.ID]; ok {
			d.Options = d.Options.Merge(s.Options)
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	for _, d := range stored {
		if !seen[d.ID] {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = append(out, config.Device{}.WithDefaults())
	}
	return out
}

// startLCD opens the LCD and returns a sink mirroring its device onto it.
func startLCD(cfg config.LCD, devices []config.Device, logger *slog.Logger) (display.Sink, func(), error) {
	var mirrored *config.Device
	for i := range devices {
		if devices[i].ID == cfg.Device || cfg.Device == "" && i == 0 {
			mirrored = &devices[i]
			break
		}
	}
	if mirrored == nil {
		return nil, nil, errors.New("lcd: mirrored device " + cfg.Device + " is not registered")
	}

	dev, bus, err := lcd.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	log := logger.With(slog.String("component", "lcd"))
	messages := make(chan lcd.Message, 10)
	handler := lcd.NewHandler(dev, messages, cfg.Width, cfg.Height, log)
	go handler.Run()
	lcd.Send(messages, "splitflapd", "mirror "+mirrored.ID)

	mirror := &lcd.Mirror{
		Topic:         mirrored.Topic,
		ModulesPerRow: mirrored.ModulesPerRow,
		Messages:      messages,
		Logger:        log,
	}
	stop := func() {
		close(messages)
		bus.Close()
	}
	return mirror, stop, nil
}
