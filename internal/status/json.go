package status

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/ev-telemetry/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Ready         bool           `json:"ready"`
	Alarm         string         `json:"alarm"`
	Edges         uint64         `json:"edges"`
	Ticks         int64          `json:"ticks"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Telemetry     *TelemetryJSON `json:"telemetry,omitempty"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// TelemetryJSON is the wire shape of logic.Metrics shared by every sink:
// the status page, the websocket feed and the MQTT metrics topic.
type TelemetryJSON struct {
	Timestamp string      `json:"timestamp"`
	Trip      TripJSON    `json:"trip"`
	Motion    MotionJSON  `json:"motion"`
	Power     PowerJSON   `json:"power"`
	Battery   BatteryJSON `json:"battery"`
}

// TripJSON carries the running totals of the current trip.
type TripJSON struct {
	ID             string  `json:"id"`
	Start          string  `json:"start"`
	DistanceKm     float64 `json:"distance_km"`
	RuntimeSeconds int64   `json:"runtime_seconds"`
	Efficiency     float64 `json:"efficiency_km_per_ah"`
}

// MotionJSON carries wheel speed values.
type MotionJSON struct {
	Standstill  bool    `json:"standstill"`
	RPM         float64 `json:"rpm"`
	SpeedKmh    float64 `json:"speed_kmh"`
	AvgSpeedKmh float64 `json:"avg_speed_kmh"`
	MaxSpeedKmh float64 `json:"max_speed_kmh"`
}

// PowerJSON carries current and power values.
type PowerJSON struct {
	Amperes    float64 `json:"amperes"`
	AvgAmperes float64 `json:"avg_amperes"`
	MaxAmperes float64 `json:"max_amperes"`
	AmpHours   float64 `json:"amp_hours"`
	Watts      float64 `json:"watts"`
	AvgWatts   float64 `json:"avg_watts"`
	MaxWatts   float64 `json:"max_watts"`
	WattHours  float64 `json:"watt_hours"`
}

// BatteryJSON carries pack voltage and temperature.
type BatteryJSON struct {
	Voltage      float64 `json:"voltage"`
	Percentage   float64 `json:"percentage"`
	TemperatureC float64 `json:"temperature_c"`
	Alarm        bool    `json:"alarm"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs       int64   `json:"poll_ms"`
	HeartbeatMs  int64   `json:"heartbeat_ms"`
	Broker       string  `json:"broker"`
	HTTPAddr     string  `json:"http_addr"`
	MorsePattern string  `json:"morse_pattern"`
	MorseUnitMs  int64   `json:"morse_unit_ms"`
	MinTempC     float64 `json:"min_temp_c"`
	MaxTempC     float64 `json:"max_temp_c"`
}

// round keeps the published values readable; NaN and Inf are not
// representable in JSON and become 0.
func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// NewTelemetryJSON converts metrics to their wire shape.
func NewTelemetryJSON(m logic.Metrics) TelemetryJSON {
	return TelemetryJSON{
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
		Trip: TripJSON{
			ID:             m.TripID,
			Start:          m.TripStart.UTC().Format(time.RFC3339),
			DistanceKm:     round(m.DistanceKm, 3),
			RuntimeSeconds: m.RuntimeSeconds,
			Efficiency:     round(m.Efficiency, 3),
		},
		Motion: MotionJSON{
			Standstill:  m.Standstill,
			RPM:         round(m.RPM, 1),
			SpeedKmh:    round(m.SpeedKmh, 2),
			AvgSpeedKmh: round(m.AvgSpeedKmh, 2),
			MaxSpeedKmh: round(m.MaxSpeedKmh, 2),
		},
		Power: PowerJSON{
			Amperes:    round(m.Amperes, 2),
			AvgAmperes: round(m.AvgAmperes, 2),
			MaxAmperes: round(m.MaxAmperes, 2),
			AmpHours:   round(m.AmpHours, 4),
			Watts:      round(m.Watts, 1),
			AvgWatts:   round(m.AvgWatts, 1),
			MaxWatts:   round(m.MaxWatts, 1),
			WattHours:  round(m.WattHours, 3),
		},
		Battery: BatteryJSON{
			Voltage:      round(m.Voltage, 2),
			Percentage:   round(m.Percentage, 1),
			TemperatureC: round(m.TemperatureC, 2),
			Alarm:        m.AlarmActive,
		},
	}
}

// FormatTelemetry returns the compact JSON for one tick's metrics.
func FormatTelemetry(m logic.Metrics) []byte {
	data, _ := json.Marshal(NewTelemetryJSON(m))
	return data
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.HaveMetrics,
		Alarm:         snap.AlarmState,
		Edges:         snap.Edges,
		Ticks:         snap.Metrics.Ticks,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:       snap.Config.PollMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			MorsePattern: snap.Config.MorsePattern,
			MorseUnitMs:  snap.Config.MorseUnitMs,
			MinTempC:     snap.Config.MinTempC,
			MaxTempC:     snap.Config.MaxTempC,
		},
	}
	if inner.Alarm == "" {
		inner.Alarm = "UNKNOWN"
	}
	if snap.HaveMetrics {
		tj := NewTelemetryJSON(snap.Metrics)
		inner.Telemetry = &tj
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
