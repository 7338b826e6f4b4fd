package statements

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultRequestTimeout = 120 * time.Second
	DefaultConnectTimeout = 10 * time.Second

	completionsPath = "/v1/chat/completions"

	// Error body markers with special meaning.
	timeoutErrorCode    = "RequestTimeOut"
	contentRiskMessage  = "Content Exists Risk"
	maxErrorBodyPreview = 512
)

// ChatClient sends chat completion requests to OpenAI-compatible endpoints.
// All requests made through one client share a single Backoff.
type ChatClient struct {
	http           *http.Client
	backoff        *Backoff
	limiter        *rate.Limiter
	log            *slog.Logger
	debugUsage     bool
	requestTimeout time.Duration
	connectTimeout time.Duration
	pick           func(n int) int
}

// ClientOption configures a ChatClient or GeminiClient.
type ClientOption func(*clientConfig)

type clientConfig struct {
	httpClient     *http.Client
	backoff        *Backoff
	limiter        *rate.Limiter
	log            *slog.Logger
	debugUsage     bool
	requestTimeout time.Duration
	connectTimeout time.Duration
	pick           func(n int) int
}

// WithHTTPClient replaces the HTTP client. Timeouts set through WithTimeouts
// are ignored when a client is supplied.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *clientConfig) { cfg.httpClient = c }
}

// WithBackoff shares an existing Backoff with the client.
func WithBackoff(b *Backoff) ClientOption {
	return func(cfg *clientConfig) { cfg.backoff = b }
}

// WithRateLimit paces sends to rps requests per second with the given burst.
// A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(cfg *clientConfig) {
		if rps <= 0 {
			cfg.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		cfg.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeouts sets the overall request timeout and the shorter connect timeout.
func WithTimeouts(request, connect time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.requestTimeout = request
		cfg.connectTimeout = connect
	}
}

// WithClientLogger sets the logger used by the client.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(cfg *clientConfig) { cfg.log = l }
}

// WithUsageLogging logs token usage of every successful response at debug level.
func WithUsageLogging(on bool) ClientOption {
	return func(cfg *clientConfig) { cfg.debugUsage = on }
}

// withProxyPicker overrides random proxy selection. Used by tests.
func withProxyPicker(fn func(n int) int) ClientOption {
	return func(cfg *clientConfig) { cfg.pick = fn }
}

func buildClientConfig(opts []ClientOption) clientConfig {
	cfg := clientConfig{
		log:            slog.Default(),
		requestTimeout: DefaultRequestTimeout,
		connectTimeout: DefaultConnectTimeout,
		pick:           rand.IntN,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.connectTimeout <= 0 || cfg.connectTimeout > cfg.requestTimeout {
		cfg.connectTimeout = min(DefaultConnectTimeout, cfg.requestTimeout)
	}
	if cfg.backoff == nil {
		cfg.backoff = NewBackoff(DefaultJitter)
	}
	cfg.backoff.SetLogger(cfg.log)
	if cfg.httpClient == nil {
		cfg.httpClient = newHTTPClient(cfg.requestTimeout, cfg.connectTimeout)
	}
	return cfg
}

func newHTTPClient(request, connect time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: request,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: connect,
			MaxIdleConnsPerHost: 64,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NewChatClient builds a client with a fresh Backoff unless one is supplied.
func NewChatClient(opts ...ClientOption) *ChatClient {
	cfg := buildClientConfig(opts)
	return &ChatClient{
		http:           cfg.httpClient,
		backoff:        cfg.backoff,
		limiter:        cfg.limiter,
		log:            cfg.log.With("component", "chat_client"),
		debugUsage:     cfg.debugUsage,
		requestTimeout: cfg.requestTimeout,
		connectTimeout: cfg.connectTimeout,
		pick:           cfg.pick,
	}
}

// Backoff exposes the client's shared delay controller.
func (c *ChatClient) Backoff() *Backoff { return c.backoff }

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

type chatErrorResponse struct {
	Error struct {
		Message string     `json:"message"`
		Type    string     `json:"type"`
		Code    flexString `json:"code"`
	} `json:"error"`
}

// flexString accepts JSON strings and numbers; providers disagree on the
// type of error codes.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(strings.Trim(string(b), " "))
	if *f == "null" {
		*f = ""
	}
	return nil
}

// Send performs one request. It never retries.
func (c *ChatClient) Send(ctx context.Context, endpoint *Endpoint, messages []Message) *Outcome {
	if endpoint == nil {
		return failure(OutcomeMalformed, "no endpoint", ErrNoProxies)
	}
	if len(messages) == 0 {
		return failure(OutcomeMalformed, "empty conversation", ErrNoMessages)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return failure(OutcomeTransportError, "rate limiter", err)
		}
	}
	if err := c.backoff.Wait(ctx); err != nil {
		return failure(OutcomeTransportError, "backoff interrupted", err)
	}

	proxy := endpoint.proxy(c.pick(endpoint.proxyCount()))
	body := map[string]any{
		"model":    endpoint.Name(),
		"messages": messages,
	}
	for k, v := range endpoint.params {
		if _, reserved := body[k]; reserved {
			continue
		}
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return failure(OutcomeMalformed, "marshal request", err)
	}

	url := proxy + completionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return failure(OutcomeTransportError, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := endpoint.credential(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	c.log.Debug("Sending completion request",
		"model", endpoint.Name(),
		"proxy", proxy,
		"messages", len(messages),
		"backoff", c.backoff.Seconds())

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("Request failed", "proxy", proxy, "error", err)
		return failure(OutcomeTransportError, "request to "+proxy, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(OutcomeTransportError, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return c.classifyStatus(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return failure(OutcomeMalformed, "decode response", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil || *parsed.Choices[0].Message.Content == "" {
		return failure(OutcomeMalformed, "response has no message content", nil)
	}

	if c.debugUsage && parsed.Usage != nil {
		c.log.Debug("Token usage",
			"model", endpoint.Name(),
			"prompt_tokens", parsed.Usage.PromptTokens,
			"completion_tokens", parsed.Usage.CompletionTokens,
			"total_tokens", parsed.Usage.TotalTokens)
	}

	c.backoff.OnSuccess()
	return success(&Completion{
		Content: *parsed.Choices[0].Message.Content,
		Proxy:   proxy,
		Usage:   parsed.Usage,
		Body:    json.RawMessage(raw),
	})
}

// classifyStatus maps a non-200 response onto an outcome, escalating the
// shared backoff for rate limits.
func (c *ChatClient) classifyStatus(status int, body []byte) *Outcome {
	var errResp chatErrorResponse
	_ = json.Unmarshal(body, &errResp)
	code := string(errResp.Error.Code)
	msg := errResp.Error.Message

	switch {
	case status == http.StatusTooManyRequests || code == timeoutErrorCode:
		d := c.backoff.OnRateLimited()
		c.log.Debug("Rate limited", "status", status, "code", code, "backoff", d)
		return failure(OutcomeRateLimited, fmt.Sprintf("status %d", status), nil)
	case msg == contentRiskMessage:
		return failure(OutcomeContentBlocked, msg, ErrContentBlocked)
	default:
		reason := "status " + strconv.Itoa(status)
		if msg != "" {
			reason += ": " + msg
		} else if len(body) > 0 {
			reason += ": " + string(body[:min(len(body), maxErrorBodyPreview)])
		}
		return failure(OutcomeMalformed, reason, nil)
	}
}

// Timeouts reports the overall request timeout and the connect timeout.
func (c *ChatClient) Timeouts() (request, connect time.Duration) {
	return c.requestTimeout, c.connectTimeout
}
