package clock

import (
	"sync"
	"time"
)

// WIB is Western Indonesia Time, the fixed UTC+7 offset every date comparison uses.
var WIB = time.FixedZone("WIB", 7*60*60)

// Clock is the single source of "now" for borrow lifecycle and scheduling decisions.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// New returns a Clock backed by the system time, expressed in WIB.
func New() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().In(WIB)
}

// StartOfDay returns local midnight (WIB) of the day containing t.
func StartOfDay(t time.Time) time.Time {
	t = t.In(WIB)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, WIB)
}

// EndOfDay returns the next local midnight after t. The window
// [StartOfDay(t), EndOfDay(t)) covers exactly one WIB calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// Today returns the [start, end) boundaries of the current WIB day.
func Today(c Clock) (time.Time, time.Time) {
	now := c.Now()
	return StartOfDay(now), EndOfDay(now)
}

// Fixed is a Clock that only moves when told to. Used by tests and one-off job runs.
type Fixed struct {
	mu  sync.RWMutex
	now time.Time
}

// NewFixed returns a Fixed clock pinned at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t.In(WIB)}
}

func (f *Fixed) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.In(WIB)
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Date builds a WIB instant, mostly for fixtures.
func Date(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, WIB)
}
