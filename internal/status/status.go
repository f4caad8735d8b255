// Package status provides a thread-safe status tracker for the ev-telemetry
// daemon. The main loop writes it once per tick; HTTP handlers read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/ev-telemetry/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs       int64
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
	MorsePattern string
	MorseUnitMs  int64
	MinTempC     float64
	MaxTempC     float64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Metrics       logic.Metrics
	HaveMetrics   bool
	AlarmState    string
	Edges         uint64
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:  startTime,
			AlarmState: "IDLE",
			Config:     cfg,
		},
	}
}

// Update stores the metrics of the latest tick and the edge count.
func (t *Tracker) Update(m logic.Metrics, edges uint64) {
	t.mu.Lock()
	t.snap.Metrics = m
	t.snap.HaveMetrics = true
	t.snap.Edges = edges
	t.mu.Unlock()
}

// SetAlarmState records the sequencer state name.
func (t *Tracker) SetAlarmState(state string) {
	t.mu.Lock()
	t.snap.AlarmState = state
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
