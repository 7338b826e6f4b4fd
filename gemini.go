package statements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiClient sends completions through the Gemini API. Each endpoint proxy
// is used as the API base URL. It shares the Backoff semantics of ChatClient.
type GeminiClient struct {
	httpClient *http.Client
	backoff    *Backoff
	limiter    *rate.Limiter
	log        *slog.Logger
	debugUsage bool
	pick       func(n int) int

	mu      sync.Mutex
	clients map[string]*genai.Client // keyed by proxy + credential
}

// NewGeminiClient accepts the same options as NewChatClient.
func NewGeminiClient(opts ...ClientOption) *GeminiClient {
	cfg := buildClientConfig(opts)
	return &GeminiClient{
		httpClient: cfg.httpClient,
		backoff:    cfg.backoff,
		limiter:    cfg.limiter,
		log:        cfg.log.With("component", "gemini_client"),
		debugUsage: cfg.debugUsage,
		pick:       cfg.pick,
		clients:    make(map[string]*genai.Client),
	}
}

// Backoff exposes the client's shared delay controller.
func (g *GeminiClient) Backoff() *Backoff { return g.backoff }

func (g *GeminiClient) client(ctx context.Context, proxy, key string) (*genai.Client, error) {
	cacheKey := proxy + "\x00" + key
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[cacheKey]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  g.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: proxy + "/"},
	})
	if err != nil {
		return nil, err
	}
	g.clients[cacheKey] = c
	return c, nil
}

// Send performs one GenerateContent call. It never retries.
func (g *GeminiClient) Send(ctx context.Context, endpoint *Endpoint, messages []Message) *Outcome {
	if endpoint == nil {
		return failure(OutcomeMalformed, "no endpoint", ErrNoProxies)
	}
	contents, cfg := toGeminiContents(messages, endpoint.params)
	if len(contents) == 0 {
		return failure(OutcomeMalformed, "empty conversation", ErrNoMessages)
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return failure(OutcomeTransportError, "rate limiter", err)
		}
	}
	if err := g.backoff.Wait(ctx); err != nil {
		return failure(OutcomeTransportError, "backoff interrupted", err)
	}

	proxy := endpoint.proxy(g.pick(endpoint.proxyCount()))
	client, err := g.client(ctx, proxy, endpoint.credential())
	if err != nil {
		return failure(OutcomeTransportError, "create genai client", err)
	}

	g.log.Debug("Generating content",
		"model", endpoint.Name(),
		"proxy", proxy,
		"content_count", len(contents),
		"backoff", g.backoff.Seconds())

	resp, err := client.Models.GenerateContent(ctx, endpoint.Name(), contents, cfg)
	if err != nil {
		out := classifyGeminiError(err)
		if out.Kind == OutcomeRateLimited {
			d := g.backoff.OnRateLimited()
			g.log.Debug("Rate limited", "error", err, "backoff", d)
		}
		return out
	}

	out := classifyGeminiResponse(resp)
	if out.Kind != OutcomeSuccess {
		return out
	}
	out.Completion.Proxy = proxy
	if g.debugUsage && out.Completion.Usage != nil {
		g.log.Debug("Token usage",
			"model", endpoint.Name(),
			"prompt_tokens", out.Completion.Usage.PromptTokens,
			"completion_tokens", out.Completion.Usage.CompletionTokens,
			"total_tokens", out.Completion.Usage.TotalTokens)
	}
	g.backoff.OnSuccess()
	return out
}

// classifyGeminiError maps a GenerateContent error onto an outcome.
func classifyGeminiError(err error) *Outcome {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return failure(OutcomeTransportError, "generate content", err)
	}
	status := strings.ToUpper(apiErr.Status)
	switch {
	case apiErr.Code == http.StatusTooManyRequests,
		strings.Contains(status, "RESOURCE_EXHAUSTED"),
		apiErr.Code == http.StatusGatewayTimeout,
		strings.Contains(status, "DEADLINE_EXCEEDED"):
		return failure(OutcomeRateLimited, fmt.Sprintf("status %d", apiErr.Code), err)
	default:
		return failure(OutcomeMalformed, fmt.Sprintf("status %d: %s", apiErr.Code, apiErr.Message), err)
	}
}

// classifyGeminiResponse inspects a response for moderation blocks and content.
func classifyGeminiResponse(resp *genai.GenerateContentResponse) *Outcome {
	if resp == nil {
		return failure(OutcomeMalformed, "nil response", nil)
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return failure(OutcomeContentBlocked, "prompt blocked: "+string(fb.BlockReason), ErrContentBlocked)
	}
	if len(resp.Candidates) == 0 {
		return failure(OutcomeMalformed, "no candidates in response", nil)
	}
	switch resp.Candidates[0].FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent,
		genai.FinishReasonBlocklist, genai.FinishReasonSPII:
		return failure(OutcomeContentBlocked, "candidate blocked: "+string(resp.Candidates[0].FinishReason), ErrContentBlocked)
	}
	text := resp.Text()
	if text == "" {
		return failure(OutcomeMalformed, "response has no text content", nil)
	}

	c := &Completion{Content: text}
	if u := resp.UsageMetadata; u != nil {
		c.Usage = &Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	if body, err := json.Marshal(resp); err == nil {
		c.Body = body
	}
	return success(c)
}

// toGeminiContents converts chat messages and extra params into the genai
// request shape. System messages become the system instruction.
func toGeminiContents(messages []Message, params map[string]any) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{}
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if v, ok := numberParam(params, "temperature"); ok {
		t := float32(v)
		cfg.Temperature = &t
	}
	if v, ok := numberParam(params, "top_p"); ok {
		p := float32(v)
		cfg.TopP = &p
	}
	for _, key := range []string{"max_output_tokens", "max_tokens"} {
		if v, ok := numberParam(params, key); ok {
			cfg.MaxOutputTokens = int32(math.Min(v, math.MaxInt32))
			break
		}
	}
	return contents, cfg
}

func numberParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
