package statements

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Platform names a provider preset.
type Platform string

const (
	PlatformOpenAI    Platform = "openai"
	PlatformDeepSeek  Platform = "deepseek"
	PlatformDashScope Platform = "dashscope"
	PlatformLocal     Platform = "local"
	PlatformGemini    Platform = "gemini"
)

// PlatformPreset holds the default base URLs and credential variable of a platform.
type PlatformPreset struct {
	Proxies []string
	KeyEnv  string // empty: no credential
}

var platformPresets = map[Platform]PlatformPreset{
	PlatformOpenAI:    {Proxies: []string{"https://api.openai.com"}, KeyEnv: "OPENAI_API_KEY"},
	PlatformDeepSeek:  {Proxies: []string{"https://api.deepseek.com"}, KeyEnv: "DEEPSEEK_API_KEY"},
	PlatformDashScope: {Proxies: []string{"https://dashscope.aliyuncs.com/compatible-mode"}, KeyEnv: "DASHSCOPE_API_KEY"},
	PlatformLocal:     {Proxies: []string{"http://localhost:8000"}},
	PlatformGemini:    {Proxies: []string{"https://generativelanguage.googleapis.com"}, KeyEnv: "GEMINI_API_KEY"},
}

// Preset returns the preset for a platform.
func Preset(p Platform) (PlatformPreset, bool) {
	preset, ok := platformPresets[p]
	if !ok {
		return PlatformPreset{}, false
	}
	preset.Proxies = append([]string(nil), preset.Proxies...)
	return preset, true
}

// Platforms lists the known platform names in sorted order.
func Platforms() []Platform {
	out := make([]Platform, 0, len(platformPresets))
	for p := range platformPresets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Endpoint describes one target model. It is immutable after construction.
type Endpoint struct {
	name     string
	platform Platform
	proxies  []string
	apiKey   string
	params   map[string]any
}

// NewEndpoint validates and copies its inputs. It fails with ErrNoProxies
// when proxies is empty.
func NewEndpoint(name string, proxies []string, apiKey string, params map[string]any) (*Endpoint, error) {
	if len(proxies) == 0 {
		return nil, fmt.Errorf("endpoint %q: %w", name, ErrNoProxies)
	}
	cleaned := make([]string, 0, len(proxies))
	for _, p := range proxies {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p == "" {
			return nil, fmt.Errorf("endpoint %q: empty proxy url", name)
		}
		cleaned = append(cleaned, p)
	}
	e := &Endpoint{
		name:    name,
		proxies: cleaned,
		apiKey:  apiKey,
		params:  make(map[string]any, len(params)),
	}
	for k, v := range params {
		e.params[k] = v
	}
	return e, nil
}

// PlatformEndpoint builds an endpoint from a platform preset, reading the
// credential from the platform's environment variable. A missing key is not
// an error; requests are then sent without authentication.
func PlatformEndpoint(p Platform, model string, params map[string]any) (*Endpoint, error) {
	preset, ok := Preset(p)
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", p)
	}
	var key string
	if preset.KeyEnv != "" {
		key = os.Getenv(preset.KeyEnv)
	}
	e, err := NewEndpoint(model, preset.Proxies, key, params)
	if err != nil {
		return nil, err
	}
	e.platform = p
	return e, nil
}

// WithPlatform returns a copy of e tagged with a platform.
func (e *Endpoint) WithPlatform(p Platform) *Endpoint {
	c := *e
	c.platform = p
	return &c
}

func (e *Endpoint) Name() string { return e.name }
func (e *Endpoint) Platform() Platform { return e.platform }
func (e *Endpoint) HasCredential() bool { return e.apiKey != "" }
func (e *Endpoint) Proxies() []string { return append([]string(nil), e.proxies...) }
func (e *Endpoint) proxy(i int) string { return e.proxies[i] }
func (e *Endpoint) proxyCount() int { return len(e.proxies) }
func (e *Endpoint) credential() string { return e.apiKey }

// Params returns a copy of the extra request parameters.
func (e *Endpoint) Params() map[string]any {
	out := make(map[string]any, len(e.params))
	for k, v := range e.params {
		out[k] = v
	}
	return out
}

func (e *Endpoint) String() string {
	return fmt.Sprintf("%s@%s", e.name, strings.Join(e.proxies, ","))
}
