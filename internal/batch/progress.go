package batch

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Progress receives re-verification progress as shards complete.
type Progress interface {
	// Grow extends the expected total by n records.
	Grow(n int64)
	// Update reports the running counters.
	Update(processed, verified, unverified, failed int64)
	// Done finishes the display. ok is false when the run stopped early.
	Done(ok bool)
}

// BarProgress renders a single mpb bar. The total is unknown up front, so
// it grows by one shard at a time.
type BarProgress struct {
	container *mpb.Progress
	bar       *mpb.Bar
	total     atomic.Int64
	counts    atomic.Value
}

// NewBarProgress creates a bar writing to w.
func NewBarProgress(w io.Writer) *BarProgress {
	p := &BarProgress{container: mpb.New(mpb.WithWidth(60), mpb.WithOutput(w))}
	p.counts.Store("")
	p.bar = p.container.AddBar(0,
		mpb.PrependDecorators(
			decor.Name("reverify ", decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				return p.counts.Load().(string)
			}),
		),
	)
	return p
}

func (p *BarProgress) Grow(n int64) {
	p.bar.SetTotal(p.total.Add(n), false)
}

func (p *BarProgress) Update(processed, verified, unverified, failed int64) {
	p.counts.Store(fmt.Sprintf("verified %d  unverified %d  failed %d", verified, unverified, failed))
	p.bar.SetCurrent(processed)
}

func (p *BarProgress) Done(ok bool) {
	if ok {
		p.bar.SetTotal(-1, true)
	} else {
		p.bar.Abort(false)
	}
	p.container.Wait()
}

// NoopProgress discards progress. Used when stderr is not a terminal and
// in tests.
type NoopProgress struct{}

func (NoopProgress) Grow(int64) {}
func (NoopProgress) Update(int64, int64, int64, int64) {}
func (NoopProgress) Done(bool) {}
