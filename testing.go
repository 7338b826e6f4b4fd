package statements

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// StubSender is a Sender that never touches the network. Respond picks the
// outcome of each call from the user prompt and the 1-based number of calls
// made so far with that prompt. It records call counts and the peak number
// of concurrent calls.
type StubSender struct {
	Respond func(prompt string, call int) *Outcome
	Latency time.Duration

	mu       sync.Mutex
	calls    map[string]int
	total    atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewStubSender returns a stub driven by respond.
func NewStubSender(respond func(prompt string, call int) *Outcome) *StubSender {
	return &StubSender{Respond: respond, calls: make(map[string]int)}
}

func (s *StubSender) Send(ctx context.Context, _ *Endpoint, messages []Message) *Outcome {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	s.total.Add(1)

	var prompt string
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[prompt]++
	call := s.calls[prompt]
	s.mu.Unlock()

	if s.Latency > 0 {
		if err := sleepCtx(ctx, s.Latency); err != nil {
			return failure(OutcomeTransportError, "stub interrupted", err)
		}
	}
	return s.Respond(prompt, call)
}

// Calls returns how many times prompt was sent.
func (s *StubSender) Calls(prompt string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[prompt]
}

// Total returns the number of calls made.
func (s *StubSender) Total() int { return int(s.total.Load()) }

// Peak returns the highest number of calls that were in flight at once.
func (s *StubSender) Peak() int { return int(s.peak.Load()) }

// Succeed builds a successful outcome carrying content.
func Succeed(content string) *Outcome {
	return success(&Completion{Content: content})
}

// Fail builds a failed outcome of the given kind.
func Fail(kind OutcomeKind, reason string) *Outcome {
	var err error
	if kind == OutcomeContentBlocked {
		err = ErrContentBlocked
	}
	return failure(kind, reason, err)
}
