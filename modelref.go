package statements

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ModelRef is a parsed model reference of the form
// "[platform/]model[?key=value&...]". The platform prefix is recognised only
// for known platforms, so names such as "Qwen/Qwen2-7B" stay intact.
type ModelRef struct {
	Platform Platform       // empty → caller's default
	Model    string
	Params   map[string]any // request body parameters
}

// paramAliases maps camelCase query keys onto request body keys.
var paramAliases = map[string]string{
	"topK":            "top_k",
	"topP":            "top_p",
	"maxTokens":       "max_tokens",
	"maxOutputTokens": "max_output_tokens",
}

// ParseModelRef splits ref into platform, model and parameters.
// Supports:
//   - "gpt-4o-mini"                        → model only
//   - "deepseek/deepseek-chat"             → platform and model
//   - "local/Qwen/Qwen2-7B?temperature=0"  → nested model name with params
func ParseModelRef(ref string) (ModelRef, error) {
	var mr ModelRef
	ref = strings.TrimSpace(ref)
	name, query, hasQuery := strings.Cut(ref, "?")

	if prefix, rest, ok := strings.Cut(name, "/"); ok {
		if _, known := platformPresets[Platform(prefix)]; known {
			mr.Platform = Platform(prefix)
			name = rest
		}
	}
	if name == "" {
		return mr, fmt.Errorf("model reference %q has no model name", ref)
	}
	mr.Model = name

	if !hasQuery {
		return mr, nil
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return mr, fmt.Errorf("model reference %q: %w", ref, err)
	}
	mr.Params = make(map[string]any, len(values))
	for key, vs := range values {
		v, err := parseParam(key, vs[len(vs)-1])
		if err != nil {
			return mr, err
		}
		if alias, ok := paramAliases[key]; ok {
			key = alias
		}
		mr.Params[key] = v
	}
	return mr, nil
}

// parseParam converts a query value to a number or bool when it looks like
// one, checking the ranges of the common sampling parameters.
func parseParam(key, raw string) (any, error) {
	switch key {
	case "temperature":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid temperature parameter '%s': %w", raw, err)
		}
		if f < 0 || f > 2 {
			return nil, fmt.Errorf("temperature parameter '%v' must be between 0.0 and 2.0", f)
		}
		return f, nil
	case "top_p", "topP":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid topP parameter '%s': %w", raw, err)
		}
		if f < 0 || f > 1 {
			return nil, fmt.Errorf("topP parameter '%v' must be between 0.0 and 1.0", f)
		}
		return f, nil
	case "top_k", "topK", "max_tokens", "maxTokens", "max_output_tokens", "maxOutputTokens":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s parameter '%s': %w", key, raw, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("%s parameter '%d' must be greater than 0", key, n)
		}
		return n, nil
	}

	if b, err := strconv.ParseBool(raw); err == nil {
		return b, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	return raw, nil
}
