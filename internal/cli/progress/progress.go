// Package progress renders terminal progress bars for long transfers.
//
// The transfer engine reports byte progress through a shared atomic counter
// rather than per-buffer events, so the bar samples the counter on a timer
// and redraws in place.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/tgcloud/internal/bytesize"
)

const (
	barWidth      = 30
	refreshEvery  = 100 * time.Millisecond
	spinnerGlyphs = `|/-\`
)

// Bar is a single-line terminal progress bar driven by an atomic counter.
type Bar struct {
	w       io.Writer
	label   string
	total   int64
	counter *atomic.Int64
	start   time.Time

	stop chan struct{}
	done sync.WaitGroup
	tick int
}

// Start begins rendering a bar for the given counter. total may exceed the
// number of bytes the counter will ever reach (retries re-read data), so the
// rendered percentage is clamped. Call Stop to finish the line.
func Start(w io.Writer, label string, total int64, counter *atomic.Int64) *Bar {
	b := &Bar{
		w:       w,
		label:   label,
		total:   total,
		counter: counter,
		start:   time.Now(),
		stop:    make(chan struct{}),
	}
	b.done.Add(1)
	go b.loop()
	return b
}

func (b *Bar) loop() {
	defer b.done.Done()
	t := time.NewTicker(refreshEvery)
	defer t.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-t.C:
			b.render(false)
		}
	}
}

// Stop halts the redraw loop and prints the final state. final of true draws
// the bar full regardless of the counter, for transfers that finished without
// moving every byte through it.
func (b *Bar) Stop(final bool) {
	close(b.stop)
	b.done.Wait()
	b.render(final)
	fmt.Fprintln(b.w)
}

func (b *Bar) render(final bool) {
	current := b.counter.Load()
	if final || current > b.total {
		current = b.total
	}

	b.tick++
	spinner := spinnerGlyphs[b.tick%len(spinnerGlyphs)]

	if b.total <= 0 {
		fmt.Fprintf(b.w, "\r%c %s  %s", spinner, b.label, bytesize.ByteSize(current))
		return
	}

	ratio := float64(current) / float64(b.total)
	filled := int(ratio * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)

	elapsed := time.Since(b.start).Seconds()
	var rate string
	if elapsed > 0 {
		rate = fmt.Sprintf("%s/s", bytesize.ByteSize(float64(current)/elapsed))
	}

	fmt.Fprintf(b.w, "\r%c %s [%s] %5.1f%%  %s/%s  %s",
		spinner, b.label, bar, ratio*100,
		bytesize.ByteSize(current), bytesize.ByteSize(b.total), rate)
}
