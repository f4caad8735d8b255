package alarm

import "time"

// State is the sequencer's position within the current symbol.
type State int

const (
	// Idle: not yet started. The first active poll starts the current symbol.
	Idle State = iota
	// Sounding: buzzer on for a dot or dash.
	Sounding
	// Gap: buzzer off for the same length after a dot or dash.
	Gap
	// WaitingSpace: silent for the length of a letter or word space.
	WaitingSpace
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Sounding:
		return "SOUNDING"
	case Gap:
		return "GAP"
	case WaitingSpace:
		return "WAITING_SPACE"
	}
	return "UNKNOWN"
}

// Sequencer steps through a pattern while the alarm is active. When inactive
// it is frozen: position and deadline are kept so that re-activation resumes
// mid-pattern.
//
// Transition table, evaluated once the deadline has passed:
//
//	Idle, Gap, WaitingSpace -> start pattern[index]
//	    dot/dash  -> Sounding, deadline += d
//	    space     -> WaitingSpace, deadline += d, index++
//	Sounding -> Gap, deadline += d, index++
//
// Deadlines chain from the previous deadline so late polls do not stretch
// the cycle. The first start, and a poll more than one unit late (such as
// resuming after the alarm cleared), re-anchor the schedule at now.
type Sequencer struct {
	pattern  []Symbol
	unit     time.Duration
	state    State
	index    int
	deadline time.Time
}

// NewSequencer creates a sequencer for pattern with the given unit duration.
// A non-positive unit falls back to DefaultUnit.
func NewSequencer(pattern []Symbol, unit time.Duration) *Sequencer {
	if unit <= 0 {
		unit = DefaultUnit
	}
	p := make([]Symbol, len(pattern))
	copy(p, pattern)
	return &Sequencer{pattern: p, unit: unit}
}

// Poll advances the sequencer to now and returns whether the buzzer should
// be on. With active false it returns false and changes nothing.
func (s *Sequencer) Poll(now time.Time, active bool) bool {
	if !active || len(s.pattern) == 0 {
		return false
	}

	switch s.state {
	case Idle:
		s.startSymbol(now)
	case Sounding:
		if !now.Before(s.deadline) {
			s.state = Gap
			s.deadline = s.base(now).Add(s.duration(s.pattern[s.index]))
			s.advance()
		}
	case Gap, WaitingSpace:
		if !now.Before(s.deadline) {
			s.startSymbol(now)
		}
	}
	return s.state == Sounding
}

func (s *Sequencer) startSymbol(now time.Time) {
	sym := s.pattern[s.index]
	s.deadline = s.base(now).Add(s.duration(sym))
	if sym.Tone() {
		s.state = Sounding
		return
	}
	s.state = WaitingSpace
	s.advance()
}

// base returns the time the next state starts from.
func (s *Sequencer) base(now time.Time) time.Time {
	if s.deadline.IsZero() || now.Sub(s.deadline) > s.unit {
		return now
	}
	return s.deadline
}

func (s *Sequencer) advance() {
	s.index = (s.index + 1) % len(s.pattern)
}

func (s *Sequencer) duration(sym Symbol) time.Duration {
	return time.Duration(sym.Units()) * s.unit
}

// State returns the current state.
func (s *Sequencer) State() State { return s.state }

// Index returns the index of the next symbol to start, or of the symbol
// sounding now.
func (s *Sequencer) Index() int { return s.index }

// Deadline returns when the current state ends.
func (s *Sequencer) Deadline() time.Time { return s.deadline }

// Unit returns the base unit duration.
func (s *Sequencer) Unit() time.Duration { return s.unit }

// CycleDuration returns the length of one full pass through the pattern.
func (s *Sequencer) CycleDuration() time.Duration {
	var total time.Duration
	for _, sym := range s.pattern {
		d := s.duration(sym)
		if sym.Tone() {
			d *= 2
		}
		total += d
	}
	return total
}
