package utils

import (
	"fmt"
	"time"
)

// PerfTimer accumulates wall time over repeated Start/Stop pairs.
type PerfTimer struct {
	Label   string
	Elapsed time.Duration
	Calls   int
	started time.Time
	running bool
}

func NewPerfTimer(label string) *PerfTimer {
	return &PerfTimer{Label: label}
}

func (pt *PerfTimer) Start() {
	if pt.running {
		return
	}
	pt.started = time.Now()
	pt.running = true
}

func (pt *PerfTimer) Stop() {
	if !pt.running {
		return
	}
	pt.Elapsed += time.Since(pt.started)
	pt.Calls++
	pt.running = false
}

func (pt *PerfTimer) Reset() {
	pt.Elapsed, pt.Calls, pt.running = 0, 0, false
}

func (pt *PerfTimer) String() string {
	return fmt.Sprintf("%-24s %10.4fs %8d calls", pt.Label, pt.Elapsed.Seconds(), pt.Calls)
}
