package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Display dimension limits.
const (
	MaxModulesPerRow = 100
	MaxRowsPerPage   = 10
)

const (
	DefaultTopic         = "splitflap/display"
	DefaultModulesPerRow = 20
	DefaultRowsPerPage   = 2
)

// Device describes one split-flap display.
type Device struct {
	ID            string    `toml:"id"`
	Topic         string    `toml:"topic"`
	CommandTopic  string    `toml:"command_topic"`
	ModulesPerRow int       `toml:"modules_per_row"`
	RowsPerPage   int       `toml:"rows_per_page"`
	Options       Overrides `toml:"options"`
}

// FrameWidth is the number of characters in one full frame.
func (d Device) FrameWidth() int { return d.ModulesPerRow * d.RowsPerPage }

// WithDefaults fills unset fields the way a fresh device is set up: the ID
// doubles as the topic, and the command topic hangs below the topic.
func (d Device) WithDefaults() Device {
	if d.Topic == "" {
		d.Topic = d.ID
	}
	if d.Topic == "" {
		d.Topic = DefaultTopic
	}
	if d.ID == "" {
		d.ID = d.Topic
	}
	if d.CommandTopic == "" {
		d.CommandTopic = d.Topic + "/command"
	}
	if d.ModulesPerRow == 0 {
		d.ModulesPerRow = DefaultModulesPerRow
	}
	if d.RowsPerPage == 0 {
		d.RowsPerPage = DefaultRowsPerPage
	}
	return d
}

// Validate checks the device dimensions and stored options.
func (d Device) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("config: device id is empty")
	}
	if d.Topic == "" {
		return fmt.Errorf("config: device %q: topic is empty", d.ID)
	}
	if d.ModulesPerRow < 1 || d.ModulesPerRow > MaxModulesPerRow {
		return fmt.Errorf("%w: device %q: modules_per_row %d not in [1,%d]",
			ErrOutOfRange, d.ID, d.ModulesPerRow, MaxModulesPerRow)
	}
	if d.RowsPerPage < 1 || d.RowsPerPage > MaxRowsPerPage {
		return fmt.Errorf("%w: device %q: rows_per_page %d not in [1,%d]",
			ErrOutOfRange, d.ID, d.RowsPerPage, MaxRowsPerPage)
	}
	if err := d.Options.Validate(); err != nil {
		return fmt.Errorf("device %q: %w", d.ID, err)
	}
	return nil
}

// MQTT holds the broker connection settings.
type MQTT struct {
	Addr      string   `toml:"addr"`
	ClientID  string   `toml:"client_id"`
	Username  string   `toml:"username"`
	Password  string   `toml:"password"`
	Timeout   Duration `toml:"timeout"`
	KeepAlive Duration `toml:"keepalive"`
}

// LCD configures the optional HD44780 mirror of one device.
type LCD struct {
	Device  string `toml:"device"`
	Bus     string `toml:"bus"`
	Address uint8  `toml:"address"`
	Width   int    `toml:"width"`
	Height  int    `toml:"height"`
}

// WithDefaults fills unset fields for a 16x2 backpack on the first bus.
func (l LCD) WithDefaults() LCD {
	if l.Bus == "" {
		l.Bus = "/dev/i2c-1"
	}
	if l.Width == 0 {
		l.Width = 16
	}
	if l.Height == 0 {
		l.Height = 2
	}
	return l
}

// Store configures the SQLite database of devices and stored options.
type Store struct {
	Path string `toml:"path"`
}

// File is the daemon configuration file.
type File struct {
	LogLevel string    `toml:"log_level"`
	MQTT     MQTT      `toml:"mqtt"`
	Store    Store     `toml:"store"`
	Defaults Overrides `toml:"defaults"`
	Devices  []Device  `toml:"device"`
	LCD      *LCD      `toml:"lcd"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		LogLevel: "info",
		MQTT: MQTT{
			Addr:      "localhost:1883",
			ClientID:  "splitflapd",
			Timeout:   Duration{5 * time.Second},
			KeepAlive: Duration{30 * time.Second},
		},
		Store: Store{Path: "splitflap.db"},
	}
}

// Load decodes the TOML file at path over Default. An empty path yields
// Default.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config: %s: unknown keys %v", path, undecoded)
	}
	for i := range cfg.Devices {
		cfg.Devices[i] = cfg.Devices[i].WithDefaults()
	}
	if cfg.LCD != nil {
		lcd := cfg.LCD.WithDefaults()
		if lcd.Device == "" && len(cfg.Devices) > 0 {
			lcd.Device = cfg.Devices[0].ID
		}
		cfg.LCD = &lcd
	}
	return cfg, cfg.Validate()
}

// Validate checks every device and the defaults.
func (f File) Validate() error {
	if err := f.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	seen := make(map[string]bool, len(f.Devices))
	for _, d := range f.Devices {
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.ID] {
			return fmt.Errorf("config: duplicate device %q", d.ID)
		}
		seen[d.ID] = true
	}
	if f.LCD != nil && f.LCD.Device != "" && !seen[f.LCD.Device] {
		return fmt.Errorf("config: lcd mirrors unknown device %q", f.LCD.Device)
	}
	return nil
}

// DefaultOptions resolves the configured defaults over Builtin.
func (f File) DefaultOptions() (Options, error) {
	return Resolve(Builtin(), f.Defaults)
}

// Level parses LogLevel, falling back to info.
func (f File) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(f.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Duration is a time.Duration written as "5s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
