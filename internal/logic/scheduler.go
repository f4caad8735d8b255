package logic

import "time"

// TickScheduler fires once per change of the real-time clock's second field.
// Repeated observations of the same second are no-ops.
type TickScheduler struct {
	prev int
	seen bool
}

// Due reports whether second starts a new tick. The first observation
// always fires.
func (s *TickScheduler) Due(second int) bool {
	if s.seen && second == s.prev {
		return false
	}
	s.prev = second
	s.seen = true
	return true
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}

// Heartbeat tracks when the last periodic heartbeat was emitted.
type Heartbeat struct {
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewHeartbeat creates a Heartbeat counting uptime from startTime.
func NewHeartbeat(startTime time.Time) *Heartbeat {
	return &Heartbeat{startTime: startTime, lastHeartbeat: startTime}
}

// Check returns heartbeat data if the interval has elapsed since the last
// heartbeat (or startup). Returns nil if the interval has not elapsed, or if
// interval is <= 0 (disabled).
func (h *Heartbeat) Check(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(h.lastHeartbeat) < interval {
		return nil
	}
	h.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
	}
}
