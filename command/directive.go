package command

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/harveysanders/splitflap/config"
)

var (
	directiveLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Number", Pattern: `-?\d+`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Punct", Pattern: `[=,]`},
	})

	directiveParser = participle.MustBuild[Directive](
		participle.Lexer(directiveLexer),
		participle.Elide("Whitespace"),
	)
)

// Directive is a list of option assignments such as
//
//	overflow=hyphen center=on delay=2
//
// Settings may be separated by spaces or commas. Values containing spaces
// are quoted: overflow="new line".
type Directive struct {
	Settings []*Setting `parser:"( @@ ( ','? @@ )* )?"`
}

// Setting is one key=value pair.
type Setting struct {
	Pos   lexer.Position `parser:""`
	Key   string         `parser:"@Ident '='"`
	Value Value          `parser:"@@"`
}

// Value is the right-hand side of a setting.
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Word   *string        `parser:"| @Ident"`
}

func (v Value) text() string {
	switch {
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return *v.Number
	case v.Word != nil:
		return *v.Word
	}
	return ""
}

// StringLiteral unquotes Go-style strings on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// ParseDirective parses a directive into option overrides. Later settings
// win over earlier ones with the same key.
func ParseDirective(s string) (config.Overrides, error) {
	var ov config.Overrides
	dir, err := directiveParser.ParseString("", s)
	if err != nil {
		return ov, fmt.Errorf("%w: %v", ErrInvalidDirective, err)
	}
	for _, set := range dir.Settings {
		if err := ov.Set(set.Key, set.Value.text()); err != nil {
			return ov, fmt.Errorf("directive column %d: %w", set.Pos.Column, err)
		}
	}
	return ov, nil
}
