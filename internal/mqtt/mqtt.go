// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/ev-telemetry/internal/logic"
	"github.com/sweeney/ev-telemetry/internal/status"
)

// TopicMetrics receives one telemetry message per tick.
const TopicMetrics = "ev/telemetry/metrics"

// TopicAlarm receives battery alarm transitions.
const TopicAlarm = "ev/telemetry/alarm"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "ev/telemetry/system"

// Publisher publishes telemetry to MQTT.
type Publisher interface {
	// PublishMetrics sends one tick's metrics.
	// Returns error if publishing fails (should not crash the process).
	PublishMetrics(m logic.Metrics) error

	// PublishAlarm sends a battery alarm transition.
	PublishAlarm(event AlarmEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "TRIP_RESET"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// AlarmEvent is emitted when the battery temperature alarm changes state.
type AlarmEvent struct {
	Timestamp    time.Time
	Active       bool
	TemperatureC float64
	MinC         float64
	MaxC         float64
}

// MetricsPayload wraps the shared telemetry shape.
type MetricsPayload struct {
	Telemetry status.TelemetryJSON `json:"telemetry"`
}

// FormatMetricsPayload creates the JSON payload for one tick.
func FormatMetricsPayload(m logic.Metrics) ([]byte, error) {
	return json.Marshal(MetricsPayload{Telemetry: status.NewTelemetryJSON(m)})
}

// AlarmPayload represents the MQTT message payload for alarm transitions.
type AlarmPayload struct {
	Alarm AlarmPayloadInner `json:"alarm"`
}

// AlarmPayloadInner contains the alarm details.
type AlarmPayloadInner struct {
	Timestamp    string  `json:"timestamp"`
	State        string  `json:"state"`
	TemperatureC float64 `json:"temperature_c"`
	MinC         float64 `json:"min_c"`
	MaxC         float64 `json:"max_c"`
}

// FormatAlarmPayload creates the JSON payload for an alarm transition.
func FormatAlarmPayload(event AlarmEvent) ([]byte, error) {
	state := "CLEAR"
	if event.Active {
		state = "ACTIVE"
	}
	return json.Marshal(AlarmPayload{
		Alarm: AlarmPayloadInner{
			Timestamp:    event.Timestamp.UTC().Format(time.RFC3339),
			State:        state,
			TemperatureC: event.TemperatureC,
			MinC:         event.MinC,
			MaxC:         event.MaxC,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
