package display

import (
	"context"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/time/rate"

	"github.com/teranos/trawl/ingest"
)

// progressRedrawInterval bounds how often the bar is redrawn for
// file-scoped units that report thousands of steps.
const progressRedrawInterval = 100 * time.Millisecond

// Progress renders run progress as a pterm progress bar and carries the
// run's cancellation through its context.
type Progress struct {
	ctx   context.Context
	title string

	mu      sync.Mutex
	bar     *pterm.ProgressbarPrinter
	total   int
	redraws rate.Sometimes
}

var _ ingest.StatusHelper = (*Progress)(nil)

// NewProgress creates a progress display. Nothing is drawn until
// SwitchToDeterminate is called.
func NewProgress(ctx context.Context, title string) *Progress {
	return &Progress{
		ctx:     ctx,
		title:   title,
		redraws: rate.Sometimes{First: 1, Interval: progressRedrawInterval},
	}
}

// SwitchToDeterminate starts a bar with total steps.
func (p *Progress) SwitchToDeterminate(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_, _ = p.bar.Stop()
	}
	p.total = total
	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle(p.title).
		WithRemoveWhenDone(false).
		Start()
	if err != nil {
		p.bar = nil
		return
	}
	p.bar = bar
}

// Progress moves the bar to completed steps. The last step is always
// drawn; intermediate steps are throttled.
func (p *Progress) Progress(completed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		return
	}
	draw := func() {
		if delta := completed - p.bar.Current; delta > 0 {
			p.bar.Add(delta)
		}
	}
	if completed >= p.total {
		draw()
		_, _ = p.bar.Stop()
		p.bar = nil
		return
	}
	p.redraws.Do(draw)
}

// IsCancelled reports whether the run's context is done.
func (p *Progress) IsCancelled() bool {
	return p.ctx != nil && p.ctx.Err() != nil
}

// Stop removes an unfinished bar, e.g. after cancellation.
func (p *Progress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_, _ = p.bar.Stop()
		p.bar = nil
	}
}
