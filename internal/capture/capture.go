// Package capture measures the time between rotation-sensor edges against a
// free-running counter and detects standstill with an overflow watchdog.
//
// Edge is called from the edge event goroutine; everything else is called
// from the main loop. The pending period is the only value that crosses
// between them and is guarded by a single mutex.
package capture

import "sync"

// PulsePeriod is the counter delta between two consecutive edges.
type PulsePeriod struct {
	Ticks     uint64
	Frequency float64 // counter ticks per second
}

// Seconds returns the period length in seconds.
func (p PulsePeriod) Seconds() float64 {
	if p.Frequency <= 0 {
		return 0
	}
	return float64(p.Ticks) / p.Frequency
}

// Capture records pulse periods and standstill state.
type Capture struct {
	mu sync.Mutex

	frequency  float64
	wd         Watchdog
	lastEdge   uint64
	standstill bool
	pending    PulsePeriod
	hasPending bool
	edges      uint64
}

// New creates a Capture for a counter running at frequency ticks per second.
// window is the overflow watchdog length in ticks. The capture starts in
// standstill.
func New(frequency float64, window uint64) *Capture {
	c := &Capture{
		frequency:  frequency,
		standstill: true,
	}
	c.wd.Arm(window, 0)
	return c
}

// Edge records an edge observed at the given counter value.
//
// A period is produced only between two edges inside one watchdog window: the
// first edge after standstill re-arms the counter and clears standstill but
// yields no period.
func (c *Capture) Edge(counter uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.edges++
	if !c.standstill && counter > c.lastEdge {
		c.pending = PulsePeriod{Ticks: counter - c.lastEdge, Frequency: c.frequency}
		c.hasPending = true
	}
	c.lastEdge = counter
	c.standstill = false
	c.wd.Reset(counter)
}

// Overflow checks the watchdog against the current counter value and sets
// standstill when no edge arrived within the window. It returns the
// resulting standstill state.
func (c *Capture) Overflow(counter uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.standstill && c.wd.Expired(counter) {
		c.standstill = true
		c.hasPending = false
	}
	return c.standstill
}

// TakeLatestPeriod returns the pending period, if any, and clears it.
func (c *Capture) TakeLatestPeriod() (PulsePeriod, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasPending {
		return PulsePeriod{}, false
	}
	p := c.pending
	c.hasPending = false
	return p, true
}

// Standstill reports whether the wheel is considered stopped.
func (c *Capture) Standstill() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.standstill
}

// Edges returns the number of edges seen since start.
func (c *Capture) Edges() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.edges
}
