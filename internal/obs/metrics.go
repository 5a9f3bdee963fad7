package obs

import (
	"sync/atomic"
	"time"

	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/internal/risk"
)

const (
	maxEventType  = int(events.TypeRiskDenied)
	maxRiskReason = int(risk.ReasonRateLimit)
)

// Metrics collects lightweight counters and latency stats for the
// kernel hot paths.
type Metrics struct {
	eventCounts        [maxEventType + 1]uint64
	riskReasonCounts   [maxRiskReason + 1]uint64
	invalidTransitions uint64
	unknownReports     uint64
	dataDrops          uint64

	riskEvalLatency LatencyStats
	fillLatency     LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts        map[events.Type]uint64
	RiskReasonCounts   map[risk.Reason]uint64
	InvalidTransitions uint64
	UnknownReports     uint64
	DataDrops          uint64
	RiskEvalLatency    LatencySnapshot
	FillLatency        LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts one published event by type.
func (m *Metrics) ObserveEvent(t events.Type) {
	if m == nil {
		return
	}
	idx := int(t)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
}

// IncRiskReason counts one risk denial by reason.
func (m *Metrics) IncRiskReason(reason risk.Reason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.riskReasonCounts) {
		atomic.AddUint64(&m.riskReasonCounts[idx], 1)
	}
}

// IncInvalidTransition counts a dropped inapplicable order event.
func (m *Metrics) IncInvalidTransition() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.invalidTransitions, 1)
}

// IncUnknownReport counts a dropped report for an unknown order.
func (m *Metrics) IncUnknownReport() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.unknownReports, 1)
}

// IncDataDrop counts a dropped stale or malformed market data event.
func (m *Metrics) IncDataDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.dataDrops, 1)
}

// ObserveRiskEval measures one risk evaluation.
func (m *Metrics) ObserveRiskEval(d time.Duration) {
	if m == nil {
		return
	}
	m.riskEvalLatency.Observe(d)
}

// ObserveFill measures report-to-position fill processing.
func (m *Metrics) ObserveFill(d time.Duration) {
	if m == nil {
		return
	}
	m.fillLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[events.Type]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[events.Type(i)] = v
		}
	}
	riskCounts := make(map[risk.Reason]uint64)
	for i := range m.riskReasonCounts {
		if v := atomic.LoadUint64(&m.riskReasonCounts[i]); v > 0 {
			riskCounts[risk.Reason(i)] = v
		}
	}
	return Snapshot{
		EventCounts:        eventCounts,
		RiskReasonCounts:   riskCounts,
		InvalidTransitions: atomic.LoadUint64(&m.invalidTransitions),
		UnknownReports:     atomic.LoadUint64(&m.unknownReports),
		DataDrops:          atomic.LoadUint64(&m.dataDrops),
		RiskEvalLatency:    m.riskEvalLatency.Snapshot(),
		FillLatency:        m.fillLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
