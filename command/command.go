// Package command decodes messages sent to a display's command topic.
//
// A command is either a JSON object
//
//	{"text": "Hello world", "overflow_type": "hyphen", "delay_between_pages": 3}
//
// or plain text, optionally preceded by a directive line starting with '@':
//
//	@overflow=hyphen center=on
//	Hello world
//
// A plain text message that should itself begin with '@' doubles it.
package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harveysanders/splitflap/config"
)

var (
	// ErrMissingText is returned for a command without a text field.
	ErrMissingText = errors.New("command: missing text")
	// ErrInvalidJSON is returned for a payload that looks like JSON but does
	// not decode.
	ErrInvalidJSON = errors.New("command: invalid json")
	// ErrInvalidDirective is returned for a directive line that does not parse.
	ErrInvalidDirective = errors.New("command: invalid directive")
)

// Command is a request to show text on a display.
type Command struct {
	Text      string
	Overrides config.Overrides
}

// request is the JSON form of a Command. Overrides sit at the top level.
type request struct {
	Text *string `json:"text"`
	config.Overrides
	OverflowMode *string `json:"overflow_mode,omitempty"`
}

// Decode parses a command payload.
func Decode(payload []byte) (Command, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return decodeJSON(trimmed)
	}
	return decodePlain(string(payload))
}

func decodeJSON(payload []byte) (Command, error) {
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if req.Text == nil {
		return Command{}, ErrMissingText
	}
	cmd := Command{Text: *req.Text, Overrides: req.Overrides}
	if cmd.Overrides.Overflow == nil && req.OverflowMode != nil {
		cmd.Overrides.Overflow = req.OverflowMode
	}
	return cmd, nil
}

func decodePlain(s string) (Command, error) {
	if !strings.HasPrefix(s, "@") {
		return Command{Text: s}, nil
	}
	if strings.HasPrefix(s, "@@") {
		return Command{Text: s[1:]}, nil
	}
	line, rest, ok := strings.Cut(s[1:], "\n")
	if !ok {
		return Command{}, fmt.Errorf("%w after directive", ErrMissingText)
	}
	ov, err := ParseDirective(strings.TrimSuffix(line, "\r"))
	if err != nil {
		return Command{}, err
	}
	return Command{Text: rest, Overrides: ov}, nil
}

// Encode renders c as the JSON object Decode accepts.
func Encode(c Command) ([]byte, error) {
	text := c.Text
	return json.Marshal(request{Text: &text, Overrides: c.Overrides})
}
