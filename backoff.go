package statements

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	// MaxBackoffSeconds caps the shared delay.
	MaxBackoffSeconds = 32.0
	// DefaultJitter is the upper bound of the random delay added before each send.
	DefaultJitter = 300 * time.Millisecond
	// backoffNotice is the delay above which Wait logs a warning.
	backoffNotice = 1.0
)

// Backoff is the delay shared by every request made through one client.
// Rate limits double it (plus one second), successes halve it (minus one
// second), and the value always stays within [0, MaxBackoffSeconds].
type Backoff struct {
	mu      sync.Mutex
	seconds float64
	jitter  time.Duration
	log     *slog.Logger
}

// NewBackoff returns a zero delay controller with the given jitter bound.
// A negative jitter is treated as zero.
func NewBackoff(jitter time.Duration) *Backoff {
	if jitter < 0 {
		jitter = 0
	}
	return &Backoff{jitter: jitter, log: slog.Default()}
}

// SetLogger replaces the logger used for backoff notices.
func (b *Backoff) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	b.mu.Lock()
	b.log = l
	b.mu.Unlock()
}

func clampBackoff(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), MaxBackoffSeconds)
}

// Seconds returns the current delay in seconds.
func (b *Backoff) Seconds() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seconds
}

// Delay returns the current delay as a duration, without jitter.
func (b *Backoff) Delay() time.Duration {
	return time.Duration(b.Seconds() * float64(time.Second))
}

// Set stores d after clamping.
func (b *Backoff) Set(d float64) {
	b.mu.Lock()
	b.seconds = clampBackoff(d)
	b.mu.Unlock()
}

// OnSuccess relaxes the delay to d/2 - 1.
func (b *Backoff) OnSuccess() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seconds = clampBackoff(b.seconds/2 - 1)
	return b.seconds
}

// OnRateLimited escalates the delay to 2d + 1.
func (b *Backoff) OnRateLimited() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seconds = clampBackoff(b.seconds*2 + 1)
	return b.seconds
}

// next returns the delay to sleep before the next send: the current value
// plus a uniform jitter in [0, jitter).
func (b *Backoff) next() time.Duration {
	b.mu.Lock()
	base, jitter, log := b.seconds, b.jitter, b.log
	b.mu.Unlock()

	if base > backoffNotice {
		log.Warn("Backing off", "seconds", base)
	}
	d := time.Duration(base * float64(time.Second))
	if jitter > 0 {
		d += rand.N(jitter)
	}
	return d
}

// Wait sleeps for the current delay plus jitter, or until ctx is done.
func (b *Backoff) Wait(ctx context.Context) error {
	return sleepCtx(ctx, b.next())
}
