package statements

import (
	"context"
	"log/slog"
	"time"
)

// Record is one dataset row or one parsed model reply.
type Record map[string]any

// Runner lets the Extractor schedule workers with any concurrency model.
type Runner interface {
	Go(fn func() error) // schedule
	Wait() error        // join / propagate first err
}

// TaskSource gives random access to the items of a dataset.
type TaskSource interface {
	Len() int
	Get(index int) (Record, error)
}

// PromptFormatter renders the user prompt for one item.
// An empty prompt with a nil error means the item should be skipped.
type PromptFormatter interface {
	Format(item Record) (string, error)
}

// OutputParser turns raw completions into records and collates them.
type OutputParser interface {
	Parse(raw string) (Record, error)
	Validate(rec Record) error
	Collate(item Record, tr *Transcript, parsed Record) error
}

// Sender performs exactly one completion request and classifies its result.
type Sender interface {
	Send(ctx context.Context, endpoint *Endpoint, messages []Message) *Outcome
}

// SenderFunc adapts a plain function to the Sender interface.
type SenderFunc func(ctx context.Context, endpoint *Endpoint, messages []Message) *Outcome

func (f SenderFunc) Send(ctx context.Context, endpoint *Endpoint, messages []Message) *Outcome {
	return f(ctx, endpoint, messages)
}

// FormatterFunc adapts a plain function to the PromptFormatter interface.
type FormatterFunc func(item Record) (string, error)

func (f FormatterFunc) Format(item Record) (string, error) { return f(item) }

// Progress receives pool progress. Implementations must be safe for concurrent use.
type Progress interface {
	Start(total int)
	Advance(done int)
	Finish()
}

type nopProgress struct{}

func (nopProgress) Start(int) {}
func (nopProgress) Advance(int) {}
func (nopProgress) Finish() {}

const (
	DefaultMaxRetries = 4
	DefaultRetryDelay = 4 * time.Second
	DefaultWorkers    = 10
)

// Options configures the Extractor and its Coordinator.
type Options struct {
	Workers      int
	MaxRetries   int
	RetryDelay   time.Duration
	Runner       Runner   // nil → NewLimitedRunner(Workers)
	Progress     Progress // nil → no-op
	Logger       *slog.Logger
	SystemPrompt string    // optional, sent before history
	History      []Message // optional prior turns
}

func defaultOptions() Options {
	return Options{
		Workers:    DefaultWorkers,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		Progress:   nopProgress{},
		Logger:     slog.Default(),
	}
}

// Functional option constructors
func WithWorkers(n int) func(*Options) {
	return func(o *Options) { o.Workers = n }
}

func WithRetry(max int, delay time.Duration) func(*Options) {
	return func(o *Options) {
		o.MaxRetries = max
		o.RetryDelay = delay
	}
}

func WithRunner(r Runner) func(*Options) {
	return func(o *Options) { o.Runner = r }
}

func WithProgress(p Progress) func(*Options) {
	return func(o *Options) { o.Progress = p }
}

func WithLogger(l *slog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = l }
}

// WithSystemPrompt prepends a system message to every request.
func WithSystemPrompt(prompt string) func(*Options) {
	return func(o *Options) { o.SystemPrompt = prompt }
}

// WithHistory prepends prior conversation turns to every request.
// The slice is copied; it is never modified by attempts.
func WithHistory(msgs ...Message) func(*Options) {
	return func(o *Options) { o.History = append([]Message(nil), msgs...) }
}
