package statements

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the engine.
var (
	ErrNoProxies        = errors.New("endpoint has no proxies")
	ErrNoMessages       = errors.New("no prompt messages provided")
	ErrContentBlocked   = errors.New("content blocked by endpoint moderation")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrInvalidOutput    = errors.New("invalid model output")
)

// OutcomeKind classifies the result of one HTTP attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRateLimited
	OutcomeContentBlocked
	OutcomeMalformed
	OutcomeTransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeContentBlocked:
		return "content_blocked"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Retryable reports whether another attempt may succeed.
func (k OutcomeKind) Retryable() bool {
	switch k {
	case OutcomeRateLimited, OutcomeMalformed, OutcomeTransportError:
		return true
	default:
		return false
	}
}

// Usage is the token accounting returned by the endpoint, when present.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the payload of a successful attempt.
type Completion struct {
	Content string
	Proxy   string
	Usage   *Usage
	Body    json.RawMessage // full response body as received
}

// Outcome is the tagged result of one attempt. Completion is set only for
// OutcomeSuccess; Reason and Err describe every other kind.
type Outcome struct {
	Kind       OutcomeKind
	Completion *Completion
	Reason     string
	Err        error
}

func success(c *Completion) *Outcome {
	return &Outcome{Kind: OutcomeSuccess, Completion: c}
}

func failure(kind OutcomeKind, reason string, err error) *Outcome {
	return &Outcome{Kind: kind, Reason: reason, Err: err}
}

// AsError converts a failed outcome into a *RequestError. It returns nil on success.
func (o *Outcome) AsError() error {
	if o == nil {
		return &RequestError{Kind: OutcomeMalformed, Reason: "nil outcome"}
	}
	if o.Kind == OutcomeSuccess {
		return nil
	}
	return &RequestError{Kind: o.Kind, Reason: o.Reason, Err: o.Err}
}

// RequestError is the uniform error for a failed attempt.
type RequestError struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

func (e *RequestError) Error() string {
	msg := e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrContentBlocked) match blocked attempts.
func (e *RequestError) Is(target error) bool {
	return target == ErrContentBlocked && e.Kind == OutcomeContentBlocked
}

// Retryable reports whether the coordinator may try again.
func (e *RequestError) Retryable() bool { return e.Kind.Retryable() }

// IsRetryable reports whether err, or any error it wraps, is a retryable RequestError.
func IsRetryable(err error) bool {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}

// KindOf extracts the outcome kind carried by err.
func KindOf(err error) (OutcomeKind, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}
