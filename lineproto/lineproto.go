// Package lineproto parses telemetry lines of the form
//
//	Key1: 1	Key2: 0	Temp: 21.5
//
// into ordered key/value fields.
//
// A line is split on runs of whitespace (tabs and spaces alike). Each token
// is split on its first colon. Because devices put a space after the colon,
// a token that ends with its colon takes its value from the next token, as
// long as that token carries no colon of its own. Tokens that do not yield
// exactly one non-empty key and one non-empty value are skipped; parsing
// never fails.
//
// The values "0" and "1" are normalized to "false" and "true". Everything
// else passes through unchanged.
package lineproto

import "strings"

// Field is one key/value pair extracted from a line.
type Field struct {
	Key   string
	Raw   string // value as received
	Value string // value after normalization
}

// SkipReason says why a token produced no field.
type SkipReason int

const (
	SkipNoColon SkipReason = iota + 1
	SkipExtraColon
	SkipEmptyKey
	SkipEmptyValue
)

func (r SkipReason) String() string {
	switch r {
	case SkipNoColon:
		return "no_colon"
	case SkipExtraColon:
		return "extra_colon"
	case SkipEmptyKey:
		return "empty_key"
	case SkipEmptyValue:
		return "empty_value"
	default:
		return "unknown"
	}
}

// Skip describes a dropped token.
type Skip struct {
	Token  string
	Reason SkipReason
}

// Option configures a Parser.
type Option func(*Parser)

// WithSkipHook registers fn to be called for every skipped token.
func WithSkipHook(fn func(Skip)) Option {
	return func(p *Parser) {
		p.onSkip = fn
	}
}

// Parser parses lines. The zero value is ready to use.
type Parser struct {
	onSkip func(Skip)
}

// NewParser returns a Parser configured with opts.
func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse is shorthand for a zero Parser's Parse.
func Parse(line string) []Field {
	var p Parser
	return p.Parse(line)
}

// Parse returns the fields of line in token order. Keys are not
// deduplicated.
func (p *Parser) Parse(line string) []Field {
	tokens := strings.Fields(line)

	var fields []Field
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		key, raw, ok := strings.Cut(token, ":")
		if !ok {
			p.skip(token, SkipNoColon)
			continue
		}
		if raw == "" && i+1 < len(tokens) && !strings.Contains(tokens[i+1], ":") {
			i++
			raw = tokens[i]
			token += " " + raw
		}

		switch {
		case strings.Contains(raw, ":"):
			p.skip(token, SkipExtraColon)
		case key == "":
			p.skip(token, SkipEmptyKey)
		case raw == "":
			p.skip(token, SkipEmptyValue)
		default:
			fields = append(fields, Field{Key: key, Raw: raw, Value: Normalize(raw)})
		}
	}
	return fields
}

func (p *Parser) skip(token string, reason SkipReason) {
	if p.onSkip != nil {
		p.onSkip(Skip{Token: token, Reason: reason})
	}
}

// Normalize maps "0" to "false" and "1" to "true"; any other value is
// returned unchanged.
func Normalize(value string) string {
	switch value {
	case "0":
		return "false"
	case "1":
		return "true"
	default:
		return value
	}
}
