package statements

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultRunner returns a runner bounded by the number of CPUs.
func DefaultRunner() Runner {
	return newErrGroupRunner(runtime.NumCPU())
}

// NewLimitedRunner creates a runner that keeps at most maxConcurrency tasks
// running. A non-positive limit means no bound.
func NewLimitedRunner(maxConcurrency int) Runner {
	return newErrGroupRunner(maxConcurrency)
}

// errGroupRunner is the default implementation backed by errgroup.Group.
// A panicking task is reported through Wait instead of crashing the process.
type errGroupRunner struct {
	eg *errgroup.Group
}

func newErrGroupRunner(maxConcurrency int) *errGroupRunner {
	eg := new(errgroup.Group)
	if maxConcurrency > 0 {
		eg.SetLimit(maxConcurrency)
	}
	return &errGroupRunner{eg: eg}
}

func (r *errGroupRunner) Go(fn func() error) {
	r.eg.Go(func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("task panicked: %v", p)
			}
		}()
		return fn()
	})
}

func (r *errGroupRunner) Wait() error { return r.eg.Wait() }
