package worker

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// Progress counts resampled tracks and the waypoints they produced. With a
// non-nil writer every finished track redraws a single status line.
type Progress struct {
	mu        sync.Mutex
	out       io.Writer
	start     time.Time
	total     int
	completed int
	failed    int
	waypoints int
}

// NewProgress creates a tracker for total tasks. out may be nil to only
// collect the numbers for Summary.
func NewProgress(total int, out io.Writer) *Progress {
	return &Progress{out: out, total: total, start: time.Now()}
}

// Record adds the outcome of one task. It has the ProgressFunc signature.
func (p *Progress) Record(r Result, completed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed = completed
	p.total = total
	if r.Err != nil {
		p.failed++
	} else {
		p.waypoints += r.Output.Waypoints
	}
	if p.out != nil {
		fmt.Fprint(p.out, "\r"+p.line())
	}
}

// Done ends the status line.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out != nil {
		fmt.Fprintln(p.out, "\r"+p.line())
	}
}

// Summary describes the finished batch for the log.
func (p *Progress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("Resampled %d/%d tracks into %d waypoints (%d failed) in %s",
		p.completed-p.failed, p.total, p.waypoints, p.failed, p.elapsed())
}

// line renders the status; the caller holds mu.
func (p *Progress) line() string {
	filled := 0
	if p.total > 0 {
		filled = min(barWidth, p.completed*barWidth/p.total)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s%s] %d/%d tracks, %d waypoints",
		strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled),
		p.completed, p.total, p.waypoints)
	if p.failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", p.failed)
	}
	if p.completed < p.total {
		if eta := p.eta(); eta > 0 {
			fmt.Fprintf(&b, " - ETA %s", eta)
		}
	} else {
		fmt.Fprintf(&b, " - done in %s", p.elapsed())
	}
	// Overwrite leftovers of a longer previous line
	b.WriteString("    ")
	return b.String()
}

func (p *Progress) elapsed() time.Duration {
	return time.Since(p.start).Round(time.Second)
}

// eta extrapolates the average time per finished task.
func (p *Progress) eta() time.Duration {
	if p.completed == 0 {
		return 0
	}
	per := time.Since(p.start) / time.Duration(p.completed)
	return (per * time.Duration(p.total-p.completed)).Round(time.Second)
}
