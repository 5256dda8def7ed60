// Package config resolves display options and loads the daemon config file.
//
// Options are layered: per-call overrides win over the options stored for a
// device, which win over the configured defaults, which win over Builtin.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harveysanders/splitflap/text"
)

var (
	// ErrUnknownOverflow is returned for an overflow mode that is not one of
	// none, hyphen or new-line.
	ErrUnknownOverflow = errors.New("config: unknown overflow mode")
	// ErrOutOfRange is returned for an option or dimension outside its range.
	ErrOutOfRange = errors.New("config: value out of range")
	// ErrUnknownKey is returned by Overrides.Set for an unrecognized key.
	ErrUnknownKey = errors.New("config: unknown option")
)

// Overflow mode names as they appear in config files and commands.
const (
	OverflowNone    = "none"
	OverflowHyphen  = "hyphen"
	OverflowNewLine = "new-line"
)

// ParseOverflow maps an overflow mode name onto a wrapping strategy. The
// legacy spelling "new line" is accepted too.
func ParseOverflow(s string) (text.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case OverflowNone:
		return text.ModeCut, nil
	case OverflowHyphen:
		return text.ModeHyphenate, nil
	case OverflowNewLine, "new line", "newline":
		return text.ModeWordWrap, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOverflow, s)
	}
}

// OverflowName is the inverse of ParseOverflow.
func OverflowName(m text.Mode) string {
	switch m {
	case text.ModeCut:
		return OverflowNone
	case text.ModeHyphenate:
		return OverflowHyphen
	default:
		return OverflowNewLine
	}
}

// Options are the fully resolved playback settings for one submission.
type Options struct {
	Overflow   text.Mode
	Center     bool
	Delay      time.Duration
	Repeat     int
	BlankAfter time.Duration // zero disables the blank timer
}

// Builtin returns the options used when nothing else is configured.
func Builtin() Options {
	return Options{
		Overflow:   text.ModeWordWrap,
		Center:     false,
		Delay:      5 * time.Second,
		Repeat:     0,
		BlankAfter: 300 * time.Second,
	}
}

// Overrides is a partial set of options. Nil fields leave the lower layer
// untouched. Durations are whole seconds, as the display's users think of
// them.
type Overrides struct {
	Overflow   *string `toml:"overflow_type" json:"overflow_type,omitempty"`
	Center     *bool   `toml:"center_text" json:"center_text,omitempty"`
	Delay      *int    `toml:"delay_between_pages" json:"delay_between_pages,omitempty"`
	Repeat     *int    `toml:"repeat_multipage_messages" json:"repeat_multipage_messages,omitempty"`
	BlankTimer *int    `toml:"blank_display_timer" json:"blank_display_timer,omitempty"`
}

// IsZero reports whether no field is set.
func (o Overrides) IsZero() bool {
	return o.Overflow == nil && o.Center == nil && o.Delay == nil && o.Repeat == nil && o.BlankTimer == nil
}

// Merge returns o with every field set in top replacing its own.
func (o Overrides) Merge(top Overrides) Overrides {
	if top.Overflow != nil {
		o.Overflow = top.Overflow
	}
	if top.Center != nil {
		o.Center = top.Center
	}
	if top.Delay != nil {
		o.Delay = top.Delay
	}
	if top.Repeat != nil {
		o.Repeat = top.Repeat
	}
	if top.BlankTimer != nil {
		o.BlankTimer = top.BlankTimer
	}
	return o
}

// Apply returns base with the overrides applied. An unknown overflow mode
// fails with ErrUnknownOverflow, a negative number with ErrOutOfRange.
func (o Overrides) Apply(base Options) (Options, error) {
	if o.Overflow != nil {
		mode, err := ParseOverflow(*o.Overflow)
		if err != nil {
			return base, err
		}
		base.Overflow = mode
	}
	if o.Center != nil {
		base.Center = *o.Center
	}
	if o.Delay != nil {
		if *o.Delay < 0 {
			return base, fmt.Errorf("%w: delay_between_pages %d", ErrOutOfRange, *o.Delay)
		}
		base.Delay = time.Duration(*o.Delay) * time.Second
	}
	if o.Repeat != nil {
		if *o.Repeat < 0 {
			return base, fmt.Errorf("%w: repeat_multipage_messages %d", ErrOutOfRange, *o.Repeat)
		}
		base.Repeat = *o.Repeat
	}
	if o.BlankTimer != nil {
		if *o.BlankTimer < 0 {
			return base, fmt.Errorf("%w: blank_display_timer %d", ErrOutOfRange, *o.BlankTimer)
		}
		base.BlankAfter = time.Duration(*o.BlankTimer) * time.Second
	}
	return base, nil
}

// Validate checks o without applying it.
func (o Overrides) Validate() error {
	_, err := o.Apply(Builtin())
	return err
}

// Resolve applies layers to base in order, later layers winning.
func Resolve(base Options, layers ...Overrides) (Options, error) {
	var merged Overrides
	for _, l := range layers {
		merged = merged.Merge(l)
	}
	return merged.Apply(base)
}

// Set assigns one option from its textual form. Keys use the long names of
// the config file or their short aliases (overflow, center, delay, repeat,
// blank).
func (o *Overrides) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "overflow_type", "overflow_mode", "overflow":
		if _, err := ParseOverflow(value); err != nil {
			return err
		}
		o.Overflow = &value
	case "center_text", "center":
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		o.Center = &b
	case "delay_between_pages", "delay":
		return setNonNegative(&o.Delay, key, value)
	case "repeat_multipage_messages", "repeat":
		return setNonNegative(&o.Repeat, key, value)
	case "blank_display_timer", "blank_timer", "blank":
		return setNonNegative(&o.BlankTimer, key, value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}

func setNonNegative(dst **int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	if n < 0 {
		return fmt.Errorf("%w: %s %d", ErrOutOfRange, key, n)
	}
	*dst = &n
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(s)
}
