package statements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RunStats summarises one Run.
type RunStats struct {
	RunID     string        `json:"runId"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
}

// Extractor runs every item of a TaskSource through a Coordinator with a
// fixed number of workers and hands each result to the OutputParser.
type Extractor struct {
	source    TaskSource
	coord     *Coordinator
	formatter PromptFormatter
	parser    OutputParser
	opts      Options
	log       *slog.Logger

	collateMu sync.Mutex
	queue     atomic.Pointer[workQueue]
}

// NewExtractor validates its collaborators and applies options.
func NewExtractor(source TaskSource, sender Sender, endpoint *Endpoint, formatter PromptFormatter, parser OutputParser, optFns ...func(*Options)) (*Extractor, error) {
	if source == nil {
		return nil, errors.New("extractor: task source is required")
	}
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Workers < 1 {
		return nil, fmt.Errorf("extractor: workers must be positive, got %d", opts.Workers)
	}
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	coord, err := NewCoordinator(sender, endpoint, formatter, parser, optFns...)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		source:    source,
		coord:     coord,
		formatter: formatter,
		parser:    parser,
		opts:      opts,
		log:       opts.Logger,
	}, nil
}

// Pending reports queue entries of the current or last run that have not
// been marked done. It is zero after Run returns.
func (e *Extractor) Pending() int {
	q := e.queue.Load()
	if q == nil {
		return 0
	}
	return q.len()
}

type runState struct {
	id        string
	log       *slog.Logger
	queue     *workQueue
	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	attempts  atomic.Int64
}

// Run enqueues every item followed by one sentinel per worker, starts the
// workers and blocks until the queue is drained and all workers have exited.
// Item failures are logged and counted; they never abort the run. The
// returned error is non-nil only if the runner itself reported one.
func (e *Extractor) Run(ctx context.Context) (*RunStats, error) {
	started := time.Now()
	total := e.source.Len()
	workers := e.opts.Workers

	run := &runState{
		id:    uuid.NewString(),
		queue: newWorkQueue(total + workers),
	}
	run.log = e.log.With("run_id", run.id)
	e.queue.Store(run.queue)

	for i := 0; i < total; i++ {
		run.queue.put(queueEntry{item: WorkItem{Index: i}})
	}
	for w := 0; w < workers; w++ {
		run.queue.put(queueEntry{sentinel: true})
	}

	run.log.Info("Starting extraction",
		"items", total,
		"workers", workers,
		"model", e.coord.endpoint.Name(),
		"max_retries", e.coord.maxRetries)

	e.opts.Progress.Start(total)
	runner := e.opts.Runner
	if runner == nil {
		runner = NewLimitedRunner(workers)
	}
	for w := 0; w < workers; w++ {
		id := w
		runner.Go(func() error { return e.worker(ctx, id, run) })
	}

	run.queue.join()
	err := runner.Wait()
	e.opts.Progress.Finish()

	stats := &RunStats{
		RunID:     run.id,
		Total:     total,
		Succeeded: int(run.succeeded.Load()),
		Failed:    int(run.failed.Load()),
		Skipped:   int(run.skipped.Load()),
		Attempts:  int(run.attempts.Load()),
		Duration:  time.Since(started),
	}
	run.log.Info("Extraction finished",
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"attempts", stats.Attempts,
		"duration", stats.Duration)
	return stats, err
}

func (e *Extractor) worker(ctx context.Context, id int, run *runState) error {
	for {
		entry := run.queue.get()
		if entry.sentinel {
			run.queue.taskDone()
			run.log.Debug("Worker stopping", "worker", id)
			return nil
		}
		e.process(ctx, entry.item.Index, run)
	}
}

// process handles one queue entry. Whatever happens, the entry is counted,
// progress advances and the entry is marked done.
func (e *Extractor) process(ctx context.Context, index int, run *runState) {
	defer func() {
		if p := recover(); p != nil {
			run.failed.Add(1)
			run.log.Error("Failed to process record", "index", index, "panic", p)
		}
		done := run.processed.Add(1)
		e.opts.Progress.Advance(int(done))
		run.queue.taskDone()
	}()

	payload, err := e.source.Get(index)
	if err != nil {
		run.failed.Add(1)
		run.log.Error("Failed to load record", "index", index, "error", err)
		return
	}

	res, err := e.coord.Attempt(ctx, WorkItem{Index: index, Payload: payload})
	if res.Transcript != nil {
		run.attempts.Add(int64(res.Transcript.Attempts))
	}
	if res.Skipped {
		run.skipped.Add(1)
		return
	}
	if err != nil {
		run.failed.Add(1)
		run.log.Error("Failed to process record", "index", index, "id", payload["id"], "error", err)
	} else {
		run.succeeded.Add(1)
	}

	if cerr := e.collate(res); cerr != nil {
		run.log.Error("Failed to collate record", "index", index, "error", cerr)
	}
}

func (e *Extractor) collate(res *Result) error {
	e.collateMu.Lock()
	defer e.collateMu.Unlock()
	return e.parser.Collate(res.Item.Payload, res.Transcript, res.Parsed)
}
