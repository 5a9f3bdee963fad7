package sim

import (
	"sync"

	"github.com/alexanu/nautilus-trader/internal/events"
)

// ReportBuffer queues execution reports between the exchange and the
// execution engine. The exchange produces reports while the engine may
// still hold its own lock, so reports are buffered and drained by the
// kernel once the triggering command or tick has been fully handled.
// FIFO order keeps replay deterministic.
type ReportBuffer struct {
	mu      sync.Mutex
	pending []events.ExecutionReport
}

// NewReportBuffer creates an empty buffer.
func NewReportBuffer() *ReportBuffer {
	return &ReportBuffer{}
}

// Push appends a report. Safe for use as a ReportSink.
func (b *ReportBuffer) Push(r events.ExecutionReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, r)
}

// Len returns the number of queued reports.
func (b *ReportBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Drain delivers queued reports to fn in arrival order. Reports pushed
// while draining (fills triggered by fills) are picked up in the same
// call.
func (b *ReportBuffer) Drain(fn func(events.ExecutionReport)) int {
	n := 0
	for {
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.mu.Unlock()
			return n
		}
		batch := b.pending
		b.pending = nil
		b.mu.Unlock()

		for _, r := range batch {
			fn(r)
			n++
		}
	}
}
