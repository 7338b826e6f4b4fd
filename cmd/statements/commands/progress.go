package commands

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/briandowns/spinner"
)

// spinnerProgress shows done/total next to a spinner.
type spinnerProgress struct {
	s     *spinner.Spinner
	total int
	done  atomic.Int64
}

func newSpinnerProgress(w io.Writer) *spinnerProgress {
	return &spinnerProgress{
		s: spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(w)),
	}
}

func (p *spinnerProgress) Start(total int) {
	p.total = total
	p.s.Suffix = fmt.Sprintf(" 0/%d", total)
	p.s.Start()
}

// Advance may be called out of order by concurrent workers; the highest
// count wins.
func (p *spinnerProgress) Advance(done int) {
	for {
		cur := p.done.Load()
		if int64(done) <= cur {
			return
		}
		if p.done.CompareAndSwap(cur, int64(done)) {
			break
		}
	}
	p.s.Lock()
	p.s.Suffix = fmt.Sprintf(" %d/%d", done, p.total)
	p.s.Unlock()
}

func (p *spinnerProgress) Finish() {
	p.s.FinalMSG = fmt.Sprintf("processed %d/%d\n", p.done.Load(), p.total)
	p.s.Stop()
}
