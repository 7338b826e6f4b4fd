package statements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// WorkItem is one unit of extraction work. Index is its identity.
type WorkItem struct {
	Index   int
	Payload Record
}

// Transcript records the exchange with the endpoint for one item.
type Transcript struct {
	Request  []Message `json:"input"`
	Response string    `json:"output"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error,omitempty"`
}

// Result is the final outcome of one item. Parsed is never nil once an item
// was attempted: it is empty when all attempts failed.
type Result struct {
	Item       WorkItem
	Transcript *Transcript
	Parsed     Record
	Err        error
	Skipped    bool
}

// Coordinator drives the bounded retry loop for single items.
type Coordinator struct {
	sender     Sender
	endpoint   *Endpoint
	formatter  PromptFormatter
	parser     OutputParser
	maxRetries int
	delay      time.Duration
	system     string
	history    []Message
	log        *slog.Logger
}

// NewCoordinator wires a sender, endpoint, formatter and parser together.
// Only the retry, system prompt, history and logger options apply.
func NewCoordinator(sender Sender, endpoint *Endpoint, formatter PromptFormatter, parser OutputParser, optFns ...func(*Options)) (*Coordinator, error) {
	switch {
	case sender == nil:
		return nil, errors.New("coordinator: sender is required")
	case endpoint == nil:
		return nil, fmt.Errorf("coordinator: %w", ErrNoProxies)
	case formatter == nil:
		return nil, errors.New("coordinator: prompt formatter is required")
	case parser == nil:
		return nil, errors.New("coordinator: output parser is required")
	}
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return newCoordinator(sender, endpoint, formatter, parser, opts), nil
}

func newCoordinator(sender Sender, endpoint *Endpoint, formatter PromptFormatter, parser OutputParser, opts Options) *Coordinator {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{
		sender:     sender,
		endpoint:   endpoint,
		formatter:  formatter,
		parser:     parser,
		maxRetries: opts.MaxRetries,
		delay:      opts.RetryDelay,
		system:     opts.SystemPrompt,
		history:    opts.History,
		log:        opts.Logger,
	}
}

// Attempt runs up to maxRetries attempts for item. Content blocks end the
// loop at once; every other failure, including a reply that does not parse
// or validate, is retried after the fixed delay. The returned Result is
// non-nil even when err is not.
func (c *Coordinator) Attempt(ctx context.Context, item WorkItem) (*Result, error) {
	res := &Result{Item: item, Transcript: &Transcript{}}
	log := c.log.With("index", item.Index)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		prompt, err := c.formatter.Format(item.Payload)
		if err != nil {
			// Rendering is deterministic; another attempt cannot fix it.
			return c.fail(res, fmt.Errorf("format prompt: %w", err))
		}
		if prompt == "" {
			log.Debug("No prompt for item, skipping")
			res.Skipped = true
			res.Transcript = nil
			return res, nil
		}

		messages := buildMessages(c.system, c.history, prompt)
		res.Transcript.Request = messages
		res.Transcript.Attempts = attempt

		out := c.sender.Send(ctx, c.endpoint, messages)
		if out == nil {
			out = failure(OutcomeMalformed, "sender returned no outcome", nil)
		}
		if out.Kind == OutcomeSuccess && out.Completion == nil {
			out = failure(OutcomeMalformed, "success without completion", nil)
		}

		switch out.Kind {
		case OutcomeContentBlocked:
			log.Warn("Content blocked", "attempt", attempt, "reason", out.Reason)
			return c.fail(res, out.AsError())
		case OutcomeSuccess:
			res.Transcript.Response = out.Completion.Content
			parsed, perr := c.parseAndValidate(out.Completion.Content)
			if perr == nil {
				res.Parsed = parsed
				res.Transcript.Error = ""
				if attempt > 1 {
					log.Debug("Attempt succeeded", "attempt", attempt)
				}
				return res, nil
			}
			lastErr = &RequestError{Kind: OutcomeMalformed, Reason: "parse output", Err: perr}
		default:
			lastErr = out.AsError()
		}

		res.Transcript.Error = lastErr.Error()
		if attempt == c.maxRetries {
			log.Debug("Final attempt failed", "attempt", attempt, "error", lastErr)
			break
		}
		log.Debug("Attempt failed, retrying", "attempt", attempt, "error", lastErr, "delay", c.delay)
		if err := sleepCtx(ctx, c.delay); err != nil {
			lastErr = &RequestError{Kind: OutcomeTransportError, Reason: "retry wait interrupted", Err: err}
			break
		}
	}

	return c.fail(res, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, res.Transcript.Attempts, lastErr))
}

func (c *Coordinator) parseAndValidate(raw string) (Record, error) {
	parsed, err := c.parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		parsed = Record{}
	}
	if err := c.parser.Validate(parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}
	return parsed, nil
}

func (c *Coordinator) fail(res *Result, err error) (*Result, error) {
	res.Err = err
	res.Parsed = Record{}
	if res.Transcript != nil {
		res.Transcript.Error = err.Error()
	}
	return res, err
}
