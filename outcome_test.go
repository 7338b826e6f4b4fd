package statements

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeKind(t *testing.T) {
	tests := []struct {
		kind      OutcomeKind
		name      string
		retryable bool
	}{
		{OutcomeSuccess, "success", false},
		{OutcomeRateLimited, "rate_limited", true},
		{OutcomeContentBlocked, "content_blocked", false},
		{OutcomeMalformed, "malformed", true},
		{OutcomeTransportError, "transport_error", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.kind.String())
			assert.Equal(t, tt.retryable, tt.kind.Retryable())
		})
	}
	assert.Equal(t, "outcome(42)", OutcomeKind(42).String())
}

func TestRequestError(t *testing.T) {
	cause := errors.New("connection reset")
	err := Fail(OutcomeTransportError, "post").AsError()
	assert.EqualError(t, err, "transport_error: post")

	wrapped := fmt.Errorf("item 3: %w", &RequestError{Kind: OutcomeTransportError, Reason: "post", Err: cause})
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, IsRetryable(wrapped))
	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, OutcomeTransportError, kind)

	blocked := Fail(OutcomeContentBlocked, "Content Exists Risk").AsError()
	assert.ErrorIs(t, blocked, ErrContentBlocked)
	assert.False(t, IsRetryable(blocked))

	assert.False(t, IsRetryable(cause))
	_, ok = KindOf(cause)
	assert.False(t, ok)
}

func TestOutcome_AsError(t *testing.T) {
	assert.NoError(t, Succeed("ok").AsError())

	var nilOutcome *Outcome
	err := nilOutcome.AsError()
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, OutcomeMalformed, kind)
}
