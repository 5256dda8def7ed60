// Package device registers split-flap displays and turns text submitted for
// them into playback jobs.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/harveysanders/splitflap/command"
	"github.com/harveysanders/splitflap/config"
	"github.com/harveysanders/splitflap/display"
	"github.com/harveysanders/splitflap/text"
)

// ErrUnknownDevice is returned for operations on a device that is not
// registered.
var ErrUnknownDevice = errors.New("device: unknown device")

// errorFrame replaces the pages of a text whose layout failed.
const errorFrame = "ERROR"

// Store persists devices. *store.Store implements it.
type Store interface {
	SaveDevice(ctx context.Context, d config.Device) error
	DeleteDevice(ctx context.Context, id string) error
	SetOptions(ctx context.Context, id string, ov config.Overrides) error
}

// Options configures a Coordinator.
type Options struct {
	Sink display.Sink
	// Defaults are the options of every device before its stored options
	// and per-call overrides are applied.
	Defaults config.Options
	// Store is optional. Without it devices live in memory only.
	Store  Store
	Logger *slog.Logger
}

// Coordinator owns the registered devices and their playback sessions.
type Coordinator struct {
	sched    *display.Scheduler
	defaults config.Options
	store    Store
	logger   *slog.Logger
	layout   func(raw string, opts text.Options) []string

	mu       sync.RWMutex
	devices  map[string]config.Device
	commands map[string]string // command topic to device id
}

// New returns a Coordinator with no devices.
func New(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		sched:    display.NewScheduler(opts.Sink, logger),
		defaults: opts.Defaults,
		store:    opts.Store,
		logger:   logger,
		layout:   text.Layout,
		devices:  make(map[string]config.Device),
		commands: make(map[string]string),
	}
}

// AddDevice registers d, replacing any device with the same ID, and saves it
// to the store.
func (c *Coordinator) AddDevice(ctx context.Context, d config.Device) error {
	d = d.WithDefaults()
	if err := d.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, id := range c.commands {
		if topic == d.CommandTopic && id != d.ID {
			return fmt.Errorf("device: command topic %q already used by %q", topic, id)
		}
	}
	if c.store != nil {
		if err := c.store.SaveDevice(ctx, d); err != nil {
			return err
		}
	}
	if old, ok := c.devices[d.ID]; ok {
		delete(c.commands, old.CommandTopic)
	}
	c.devices[d.ID] = d
	c.commands[d.CommandTopic] = d.ID
	c.logger.Info("device:added",
		slog.String("device", d.ID),
		slog.String("topic", d.Topic),
		slog.Int("modules", d.ModulesPerRow),
		slog.Int("rows", d.RowsPerPage),
	)
	return nil
}

// RemoveDevice cancels whatever device id is playing, forgets it and deletes
// it from the store.
func (c *Coordinator) RemoveDevice(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.devices[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}
	c.sched.Remove(id)
	delete(c.devices, id)
	delete(c.commands, d.CommandTopic)
	if c.store != nil {
		if err := c.store.DeleteDevice(ctx, id); err != nil {
			return err
		}
	}
	c.logger.Info("device:removed", slog.String("device", id))
	return nil
}

// Device returns the registration of device id.
func (c *Coordinator) Device(id string) (config.Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devices[id]
	return d, ok
}

// Devices returns every registered device ordered by ID.
func (c *Coordinator) Devices() []config.Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]config.Device, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b config.Device) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// CommandTopics returns the command topics of every registered device.
func (c *Coordinator) CommandTopics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	topics := make([]string, 0, len(c.commands))
	for t := range c.commands {
		topics = append(topics, t)
	}
	slices.Sort(topics)
	return topics
}

// SubmitText lays out raw for device id and starts playing it, superseding
// whatever the device was doing. Options resolve as ov over the device's
// stored options over the defaults; invalid options fail before the running
// job is touched. Whitespace-only text blanks the display.
func (c *Coordinator) SubmitText(ctx context.Context, id, raw string, ov config.Overrides) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devices[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}
	opts, err := config.Resolve(c.defaults, d.Options, ov)
	if err != nil {
		return fmt.Errorf("device %q: %w", id, err)
	}

	if strings.TrimSpace(raw) == "" {
		return c.sched.Blank(ctx, id, d.Topic, d.FrameWidth())
	}

	pages, err := c.render(raw, d, opts)
	if err != nil {
		c.logger.Error("device:layout-failed", slog.String("device", id), slog.Any("reason", err))
		return c.sched.Show(ctx, id, d.Topic, text.Fit(errorFrame, d.ModulesPerRow), false)
	}
	if len(pages) == 0 {
		return c.sched.Blank(ctx, id, d.Topic, d.FrameWidth())
	}

	_, err = c.sched.Submit(id, display.Job{
		Topic:      d.Topic,
		Pages:      pages,
		Delay:      opts.Delay,
		Repeat:     opts.Repeat,
		BlankAfter: opts.BlankAfter,
		BlankWidth: d.FrameWidth(),
	})
	return err
}

// render runs the layout, turning a layout panic into an error.
func (c *Coordinator) render(raw string, d config.Device, opts config.Options) (pages []string, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if lerr, ok := r.(*text.LayoutError); ok {
			err = lerr
			return
		}
		err = fmt.Errorf("device: layout: %v", r)
	}()
	return c.layout(raw, text.Options{
		Mode:          opts.Overflow,
		ModulesPerRow: d.ModulesPerRow,
		RowsPerPage:   d.RowsPerPage,
		Center:        opts.Center,
	}), nil
}

// UpdateOptions merges ov into the stored options of device id. It does not
// affect a job that is already playing.
func (c *Coordinator) UpdateOptions(ctx context.Context, id string, ov config.Overrides) (config.Overrides, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.devices[id]
	if !ok {
		return config.Overrides{}, fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}
	merged := d.Options.Merge(ov)
	if err := merged.Validate(); err != nil {
		return d.Options, fmt.Errorf("device %q: %w", id, err)
	}
	if c.store != nil {
		if err := c.store.SetOptions(ctx, id, merged); err != nil {
			return d.Options, err
		}
	}
	d.Options = merged
	c.devices[id] = d
	c.logger.Info("device:options-updated", slog.String("device", id))
	return merged, nil
}

// HandleCommand decodes a message received on a command topic and submits it
// to the device owning the topic.
func (c *Coordinator) HandleCommand(ctx context.Context, topic string, payload []byte) error {
	c.mu.RLock()
	id, ok := c.commands[topic]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no device listens on %q", ErrUnknownDevice, topic)
	}
	cmd, err := command.Decode(payload)
	if err != nil {
		c.logger.Warn("device:bad-command",
			slog.String("device", id),
			slog.String("topic", topic),
			slog.Any("reason", err),
		)
		return err
	}
	return c.SubmitText(ctx, id, cmd.Text, cmd.Overrides)
}

// Status reports the playback status of device id.
func (c *Coordinator) Status(id string) display.Status {
	return c.sched.Status(id)
}

// Wait blocks until the current job of device id is done or ctx ends.
func (c *Coordinator) Wait(ctx context.Context, id string) error {
	return c.sched.Wait(ctx, id)
}

// Close cancels every job and waits for playback to stop.
func (c *Coordinator) Close() error {
	return c.sched.Close()
}
