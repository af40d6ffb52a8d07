package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const progressWidth = 24

// frameProgress draws an in-place bar on w, redrawn as each frame completes.
type frameProgress struct {
	mu      sync.Mutex
	w       io.Writer
	label   string
	total   int
	written int
	failed  int
	start   time.Time
}

func newFrameProgress(w io.Writer, label string, total int) *frameProgress {
	p := &frameProgress{w: w, label: label, total: total, start: time.Now()}
	p.mu.Lock()
	p.drawLocked()
	p.mu.Unlock()
	return p
}

// frameDone records one finished frame. Safe for concurrent use.
func (p *frameProgress) frameDone(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failed++
	} else {
		p.written++
	}
	p.drawLocked()
}

// finish ends the line.
func (p *frameProgress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drawLocked()
	fmt.Fprintln(p.w)
}

func (p *frameProgress) drawLocked() {
	done := p.written + p.failed
	filled := progressWidth
	if p.total > 0 {
		filled = min(done*progressWidth/p.total, progressWidth)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\r%s [%s%s] %d/%d frames",
		p.label, strings.Repeat("#", filled), strings.Repeat(".", progressWidth-filled), done, p.total)
	if p.failed > 0 {
		fmt.Fprintf(&b, ", %d failed", p.failed)
	}
	fmt.Fprintf(&b, "  %s\033[K", formatDuration(time.Since(p.start)))
	io.WriteString(p.w, b.String())
}

// formatDuration formats whole seconds as "45s" or "1m23s".
func formatDuration(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
}
