package progress

import (
	"io"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Bar renders batch progress on a terminal. Update matches the engine's
// progress callback and may be called from any goroutine.
type Bar struct {
	mu      sync.Mutex
	p       *mpb.Progress
	bar     *mpb.Bar
	current string
	failed  int
}

// NewBar starts a bar over total files writing to out. A nil out returns a
// bar that draws nothing.
func NewBar(out io.Writer, total int) *Bar {
	b := &Bar{}
	if out == nil || total <= 0 {
		return b
	}
	b.p = mpb.New(mpb.WithOutput(out), mpb.WithWidth(50))
	b.bar = b.p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			decor.Any(func(decor.Statistics) string { return b.failures() }, decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.OnComplete(
				decor.Percentage(decor.WCSyncSpace), "done",
			),
			decor.Any(func(decor.Statistics) string { return b.name() }, decor.WCSyncSpace),
		),
	)
	return b
}

// Update records one finished file.
func (b *Bar) Update(current, total int, filename, status string) {
	b.mu.Lock()
	b.current = filepath.Base(filename)
	if status == "failed" {
		b.failed++
	}
	b.mu.Unlock()

	if b.bar != nil {
		b.bar.SetCurrent(int64(current))
	}
}

// Failed returns the number of failed updates seen.
func (b *Bar) Failed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failed
}

// Finish completes the bar, also when the run was cancelled early, and
// waits for the last render.
func (b *Bar) Finish() {
	if b.bar == nil {
		return
	}
	b.bar.SetTotal(-1, true)
	b.p.Wait()
}

func (b *Bar) name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Bar) failures() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failed == 0 {
		return ""
	}
	return "failed " + humanize.Comma(int64(b.failed))
}
