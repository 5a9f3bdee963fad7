package clock

import (
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// TimerFunc is called when a timer fires. The fire time is the
// scheduled time, not the observed time.
type TimerFunc func(name string, fireAt time.Time)

// Clock abstracts time so the same engine code runs against simulated
// time in backtests and wall time in live trading.
type Clock interface {
	// Now returns the current time in UTC.
	Now() time.Time
	// SetTime moves the clock to t. Fails on the wall clock.
	SetTime(t time.Time) error
	// AdvanceTo fires every timer due at or before t in nondecreasing
	// fire-time order, then moves the clock to t. Fails on the wall clock.
	AdvanceTo(t time.Time) error
	// SetTimer schedules fn to run at fireAt under the given name.
	SetTimer(name string, fireAt time.Time, fn TimerFunc) error
	// CancelTimer removes a pending timer. Unknown names are ignored.
	CancelTimer(name string)
	// IsVirtual reports whether the clock is simulation-driven.
	IsVirtual() bool
}

type timerEntry struct {
	name   string
	fireAt time.Time
	fn     TimerFunc
	reg    uint64
}

// Virtual is a deterministic clock driven entirely by AdvanceTo.
// Timers with equal fire times run in registration order, which keeps
// backtest replays reproducible.
type Virtual struct {
	now    time.Time
	timers []timerEntry
	regSeq uint64
}

// NewVirtual creates a virtual clock starting at t.
func NewVirtual(t time.Time) *Virtual {
	return &Virtual{now: t.UTC()}
}

// Now returns the simulated current time.
func (c *Virtual) Now() time.Time { return c.now }

// IsVirtual always reports true.
func (c *Virtual) IsVirtual() bool { return true }

// SetTime moves the clock without firing timers.
func (c *Virtual) SetTime(t time.Time) error {
	t = t.UTC()
	if t.Before(c.now) {
		return errors.Wrapf(exception.ErrClockTimeBackwards, "now: %s, requested: %s", c.now, t)
	}
	c.now = t
	return nil
}

// SetTimer schedules a timer. Names must be unique among pending timers.
func (c *Virtual) SetTimer(name string, fireAt time.Time, fn TimerFunc) error {
	if fn == nil {
		return errors.Wrap(exception.ErrInvalidArgument, "timer func is nil")
	}
	for _, t := range c.timers {
		if t.name == name {
			return errors.Wrapf(exception.ErrClockDuplicateTimer, "name: %s", name)
		}
	}
	c.regSeq++
	c.timers = append(c.timers, timerEntry{
		name:   name,
		fireAt: fireAt.UTC(),
		fn:     fn,
		reg:    c.regSeq,
	})
	return nil
}

// CancelTimer removes a pending timer by name.
func (c *Virtual) CancelTimer(name string) {
	for i, t := range c.timers {
		if t.name == name {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

// TimerCount returns the number of pending timers.
func (c *Virtual) TimerCount() int { return len(c.timers) }

// AdvanceTo fires due timers then moves the clock to t. Timer callbacks
// may schedule further timers; those are honored within the same
// advance when they are also due.
func (c *Virtual) AdvanceTo(t time.Time) error {
	t = t.UTC()
	if t.Before(c.now) {
		return errors.Wrapf(exception.ErrClockTimeBackwards, "now: %s, requested: %s", c.now, t)
	}
	for {
		idx := c.nextDue(t)
		if idx < 0 {
			break
		}
		entry := c.timers[idx]
		c.timers = append(c.timers[:idx], c.timers[idx+1:]...)
		if entry.fireAt.After(c.now) {
			c.now = entry.fireAt
		}
		entry.fn(entry.name, entry.fireAt)
	}
	c.now = t
	return nil
}

// nextDue returns the index of the earliest timer due at or before t,
// breaking fire-time ties by registration order.
func (c *Virtual) nextDue(t time.Time) int {
	best := -1
	for i, entry := range c.timers {
		if entry.fireAt.After(t) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := c.timers[best]
		if entry.fireAt.Before(b.fireAt) || (entry.fireAt.Equal(b.fireAt) && entry.reg < b.reg) {
			best = i
		}
	}
	return best
}

// PendingTimers returns pending timer names ordered by fire time.
func (c *Virtual) PendingTimers() []string {
	sorted := make([]timerEntry, len(c.timers))
	copy(sorted, c.timers)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].fireAt.Equal(sorted[j].fireAt) {
			return sorted[i].reg < sorted[j].reg
		}
		return sorted[i].fireAt.Before(sorted[j].fireAt)
	})
	names := make([]string, len(sorted))
	for i, t := range sorted {
		names[i] = t.name
	}
	return names
}

// Wall is the live clock. Timers run from real elapsed time with
// best-effort ordering.
type Wall struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWall creates a wall clock.
func NewWall() *Wall {
	return &Wall{timers: make(map[string]*time.Timer)}
}

// Now returns the current wall time in UTC.
func (c *Wall) Now() time.Time { return time.Now().UTC() }

// IsVirtual always reports false.
func (c *Wall) IsVirtual() bool { return false }

// SetTime always fails on the wall clock.
func (c *Wall) SetTime(time.Time) error {
	return errors.Wrap(exception.ErrClockNotVirtual, "set time")
}

// AdvanceTo always fails on the wall clock.
func (c *Wall) AdvanceTo(time.Time) error {
	return errors.Wrap(exception.ErrClockNotVirtual, "advance")
}

// SetTimer schedules fn after the real-time delay until fireAt.
func (c *Wall) SetTimer(name string, fireAt time.Time, fn TimerFunc) error {
	if fn == nil {
		return errors.Wrap(exception.ErrInvalidArgument, "timer func is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.timers[name]; ok {
		return errors.Wrapf(exception.ErrClockDuplicateTimer, "name: %s", name)
	}
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}
	c.timers[name] = time.AfterFunc(delay, func() {
		c.mu.Lock()
		delete(c.timers, name)
		c.mu.Unlock()
		fn(name, fireAt.UTC())
	})
	return nil
}

// CancelTimer stops a pending timer by name.
func (c *Wall) CancelTimer(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[name]; ok {
		t.Stop()
		delete(c.timers, name)
	}
}
