package logic

import (
	"testing"
	"time"
)

func TestTickSchedulerFiresOncePerSecond(t *testing.T) {
	var s TickScheduler

	seconds := []int{10, 10, 10, 11, 11, 12, 12, 12, 12, 13}
	fired := 0
	for _, sec := range seconds {
		if s.Due(sec) {
			fired++
		}
	}
	if fired != 4 {
		t.Errorf("fired %d times, want 4", fired)
	}
}

func TestTickSchedulerFirstObservationFires(t *testing.T) {
	var s TickScheduler
	if !s.Due(0) {
		t.Error("first observation should fire, even at second 0")
	}
	if s.Due(0) {
		t.Error("same second should not fire twice")
	}
}

func TestTickSchedulerWrap(t *testing.T) {
	var s TickScheduler
	s.Due(59)
	if !s.Due(0) {
		t.Error("minute wrap should fire")
	}
}

func TestTickSchedulerSkippedSecond(t *testing.T) {
	var s TickScheduler
	s.Due(5)
	if !s.Due(7) {
		t.Error("a skipped second still fires exactly once")
	}
	if s.Due(7) {
		t.Error("should not fire again")
	}
}

func TestHeartbeat(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(start)

	if hb := h.Check(start.Add(14*time.Minute), 15*time.Minute); hb != nil {
		t.Error("heartbeat before interval")
	}
	hb := h.Check(start.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", hb.Uptime)
	}
	if hb := h.Check(start.Add(16*time.Minute), 15*time.Minute); hb != nil {
		t.Error("heartbeat should restart from last emission")
	}
	if hb := h.Check(start.Add(30*time.Minute), 15*time.Minute); hb == nil {
		t.Error("expected second heartbeat")
	}
}

func TestHeartbeatDisabled(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(start)
	if hb := h.Check(start.Add(24*time.Hour), 0); hb != nil {
		t.Error("zero interval should disable heartbeat")
	}
}
