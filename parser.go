package statements

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoMatch is returned by PatternParser when the reply does not match.
var ErrNoMatch = errors.New("reply does not match pattern")

// JSONParser decodes JSON object replies, optionally validating them against
// a Schema, and collates into the embedded Results.
type JSONParser struct {
	*Results
	schema *Schema
}

// NewJSONParser returns a parser collating into results. schema may be nil.
func NewJSONParser(results *Results, schema *Schema) *JSONParser {
	if results == nil {
		results = NewResults()
	}
	return &JSONParser{Results: results, schema: schema}
}

// Parse strips code fences and surrounding prose, then decodes a JSON object.
func (p *JSONParser) Parse(raw string) (Record, error) {
	clean := SanitizeJSONResponse([]byte(raw))
	var rec Record
	if err := json.Unmarshal(clean, &rec); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if rec == nil {
		return nil, errors.New("decode reply: not a JSON object")
	}
	return rec, nil
}

// Validate checks rec against the schema, if any.
func (p *JSONParser) Validate(rec Record) error { return p.schema.Validate(rec) }

// PatternParser extracts fields from free-form replies with a regular
// expression. Every named group becomes a field.
type PatternParser struct {
	*Results
	re      *regexp.Regexp
	lower   map[string]bool
	numeric map[string]bool
	schema  *Schema
}

// PatternOption configures a PatternParser.
type PatternOption func(*PatternParser)

// WithLowercase lowercases the named fields.
func WithLowercase(fields ...string) PatternOption {
	return func(p *PatternParser) {
		for _, f := range fields {
			p.lower[f] = true
		}
	}
}

// WithNumeric converts the named fields to numbers. "NA" and empty values
// become null; a trailing percent sign is ignored.
func WithNumeric(fields ...string) PatternOption {
	return func(p *PatternParser) {
		for _, f := range fields {
			p.numeric[f] = true
		}
	}
}

// WithPatternSchema validates parsed records against s.
func WithPatternSchema(s *Schema) PatternOption {
	return func(p *PatternParser) { p.schema = s }
}

// NewPatternParser compiles pattern, which must contain at least one named group.
func NewPatternParser(results *Results, pattern string, opts ...PatternOption) (*PatternParser, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	named := 0
	for _, n := range re.SubexpNames() {
		if n != "" {
			named++
		}
	}
	if named == 0 {
		return nil, errors.New("pattern has no named groups")
	}
	if results == nil {
		results = NewResults()
	}
	p := &PatternParser{
		Results: results,
		re:      re,
		lower:   make(map[string]bool),
		numeric: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Parse matches the reply and converts the named groups.
func (p *PatternParser) Parse(raw string) (Record, error) {
	m := p.re.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil, ErrNoMatch
	}
	rec := make(Record)
	for i, name := range p.re.SubexpNames() {
		if name == "" {
			continue
		}
		v := strings.TrimSpace(m[i])
		switch {
		case p.numeric[name]:
			n, err := parseNumber(v)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			rec[name] = n
		case p.lower[name]:
			rec[name] = strings.ToLower(v)
		default:
			rec[name] = v
		}
	}
	return rec, nil
}

// Validate checks rec against the schema, if any.
func (p *PatternParser) Validate(rec Record) error { return p.schema.Validate(rec) }

func parseNumber(v string) (any, error) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "%")
	if v == "" || strings.EqualFold(v, "NA") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return f, nil
}
