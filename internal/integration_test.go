package internal

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sweeney/ev-telemetry/internal/alarm"
	"github.com/sweeney/ev-telemetry/internal/capture"
	"github.com/sweeney/ev-telemetry/internal/gpio"
	"github.com/sweeney/ev-telemetry/internal/logic"
	"github.com/sweeney/ev-telemetry/internal/mqtt"
	"github.com/sweeney/ev-telemetry/internal/status"
)

const ms = uint64(time.Millisecond)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// rig wires a fake rotation sensor through capture and analytics to a fake
// publisher, the way the daemon's main loop does.
type rig struct {
	capture   *capture.Capture
	edges     *gpio.FakeEdgeSource
	analytics *logic.Context
	publisher *mqtt.FakePublisher
	start     time.Time
}

func newRig(t *testing.T) *rig {
	t.Helper()
	cal := logic.DefaultCalibration()
	c := capture.New(cal.TickFrequency, cal.WatchdogTicks())
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return &rig{
		capture:   c,
		edges:     gpio.NewFakeEdgeSource(c.Edge),
		analytics: logic.NewContext(cal, "trip-1", start),
		publisher: mqtt.NewFakePublisher(),
		start:     start,
	}
}

// tick runs one 1 s recomputation at counter value now (ns) and publishes.
func (r *rig) tick(t *testing.T, n int, now uint64) logic.Metrics {
	t.Helper()
	r.capture.Overflow(now)
	period, fresh := r.capture.TakeLatestPeriod()
	r.analytics.UpdateMotion(r.capture.Standstill(), period, fresh)
	m := r.analytics.Metrics(r.start.Add(time.Duration(n) * time.Second))
	if err := r.publisher.PublishMetrics(m); err != nil {
		t.Fatalf("tick %d: publish error: %v", n, err)
	}
	return m
}

// TestIntegrationFullFlow tests the complete flow from edges to MQTT using fakes.
func TestIntegrationFullFlow(t *testing.T) {
	r := newRig(t)

	// Wheel turning at 240 rpm: one edge every 250 ms.
	for _, c := range []uint64{0, 250 * ms, 500 * ms, 750 * ms} {
		r.edges.Fire(c)
	}
	m := r.tick(t, 1, 1000*ms)
	if m.Standstill {
		t.Fatal("expected moving after edges")
	}
	if !approx(m.RPM, 240) {
		t.Errorf("RPM: got %v, want 240", m.RPM)
	}
	if !approx(m.SpeedKmh, 240*1.276*60/1000) {
		t.Errorf("SpeedKmh: got %v", m.SpeedKmh)
	}

	// No more edges: the watchdog window runs out before the next tick.
	m = r.tick(t, 2, 2000*ms)
	if !m.Standstill || m.SpeedKmh != 0 {
		t.Errorf("expected standstill, got %+v", m)
	}
	if m.RuntimeSeconds != 1 {
		t.Errorf("RuntimeSeconds: got %d, want 1", m.RuntimeSeconds)
	}
	if !approx(m.DistanceKm, 240.0/60*1.276/1000) {
		t.Errorf("DistanceKm: got %v", m.DistanceKm)
	}

	if len(r.publisher.Metrics) != 2 {
		t.Fatalf("expected 2 published metrics, got %d", len(r.publisher.Metrics))
	}
}

// TestIntegrationNoMotionAtStartup verifies a stationary wheel publishes standstill.
func TestIntegrationNoMotionAtStartup(t *testing.T) {
	r := newRig(t)

	for i := 1; i <= 3; i++ {
		m := r.tick(t, i, uint64(i)*1000*ms)
		if !m.Standstill || m.DistanceKm != 0 {
			t.Errorf("tick %d: expected standstill with no distance, got %+v", i, m)
		}
	}
}

// TestIntegrationFirstEdgeYieldsNoPeriod verifies the first edge after standstill
// clears standstill without producing a speed.
func TestIntegrationFirstEdgeYieldsNoPeriod(t *testing.T) {
	r := newRig(t)

	r.edges.Fire(100 * ms)
	m := r.tick(t, 1, 500*ms)
	if m.Standstill {
		t.Fatal("a single edge should clear standstill")
	}
	if m.RPM != 0 {
		t.Errorf("RPM: got %v, want 0 without a period", m.RPM)
	}
	if m.RuntimeSeconds != 1 {
		t.Errorf("RuntimeSeconds: got %d, want 1", m.RuntimeSeconds)
	}
}

// TestIntegrationPeriodReusedBetweenEdges verifies a tick with no fresh edge keeps
// the last speed while the wheel is still inside the window.
func TestIntegrationPeriodReusedBetweenEdges(t *testing.T) {
	r := newRig(t)

	r.edges.Fire(0)
	r.edges.Fire(500 * ms)
	first := r.tick(t, 1, 600*ms)

	r.edges.Fire(1100 * ms) // fresh period of 600 ms
	second := r.tick(t, 2, 1200*ms)
	third := r.tick(t, 3, 1900*ms) // no edge, still inside the window

	if !approx(first.RPM, 120) {
		t.Errorf("first RPM: got %v, want 120", first.RPM)
	}
	if !approx(second.RPM, 100) {
		t.Errorf("second RPM: got %v, want 100", second.RPM)
	}
	if !approx(third.RPM, 100) {
		t.Errorf("third RPM should reuse the last period, got %v", third.RPM)
	}
}

// TestIntegrationPublishFailureDoesNotCrash verifies analytics continue when
// the broker rejects messages.
func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	r := newRig(t)
	r.publisher.PublishError = errors.New("mqtt connection failed")

	r.edges.Fire(0)
	r.edges.Fire(500 * ms)
	r.capture.Overflow(600 * ms)
	period, fresh := r.capture.TakeLatestPeriod()
	r.analytics.UpdateMotion(r.capture.Standstill(), period, fresh)

	err := r.publisher.PublishMetrics(r.analytics.Metrics(r.start))
	if err == nil {
		t.Error("expected publish error")
	}
	if r.analytics.Totals.DistanceKm == 0 {
		t.Error("distance should accumulate despite publish failure")
	}
	if len(r.publisher.Metrics) != 0 {
		t.Errorf("failed publishes should not be recorded, got %d", len(r.publisher.Metrics))
	}
}

// TestIntegrationPayloadFormat verifies the published metrics JSON shape.
func TestIntegrationPayloadFormat(t *testing.T) {
	r := newRig(t)
	r.analytics.UpdateVoltage(24000) // 49.5 V
	r.analytics.UpdateTemperature(30)
	r.edges.Fire(0)
	r.edges.Fire(500 * ms)
	r.tick(t, 1, 600*ms)

	var parsed map[string]map[string]map[string]interface{}
	if err := json.Unmarshal(r.publisher.MetricsPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	tel, ok := parsed["telemetry"]
	if !ok {
		t.Fatal("missing telemetry envelope")
	}
	for _, section := range []string{"trip", "motion", "power", "battery"} {
		if _, ok := tel[section]; !ok {
			t.Errorf("missing %q section", section)
		}
	}
	if tel["trip"]["id"] != "trip-1" {
		t.Errorf("trip id: got %v", tel["trip"]["id"])
	}
	if tel["motion"]["rpm"] != 120.0 {
		t.Errorf("rpm: got %v", tel["motion"]["rpm"])
	}
	if tel["battery"]["voltage"] != 49.5 {
		t.Errorf("voltage: got %v", tel["battery"]["voltage"])
	}
	if tel["battery"]["alarm"] != false {
		t.Errorf("alarm: got %v", tel["battery"]["alarm"])
	}
}

// TestIntegrationStatusMatchesMQTT verifies the status page and the MQTT feed
// carry the same telemetry for a tick.
func TestIntegrationStatusMatchesMQTT(t *testing.T) {
	r := newRig(t)
	tracker := status.NewTracker(r.start, status.Config{})

	r.edges.Fire(0)
	r.edges.Fire(250 * ms)
	m := r.tick(t, 1, 300*ms)
	tracker.Update(m, r.capture.Edges())

	var fromMQTT mqtt.MetricsPayload
	if err := json.Unmarshal(r.publisher.MetricsPayloads[0], &fromMQTT); err != nil {
		t.Fatalf("invalid metrics JSON: %v", err)
	}
	var fromStatus status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(tracker.Snapshot()), &fromStatus); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}

	if fromStatus.Status.Telemetry == nil {
		t.Fatal("status should carry telemetry after the first tick")
	}
	if *fromStatus.Status.Telemetry != fromMQTT.Telemetry {
		t.Errorf("telemetry differs:\nstatus: %+v\nmqtt:   %+v", *fromStatus.Status.Telemetry, fromMQTT.Telemetry)
	}
	if fromStatus.Status.Edges != 2 {
		t.Errorf("edges: got %d, want 2", fromStatus.Status.Edges)
	}
}

// TestIntegrationTripReset verifies totals restart under a new trip id.
func TestIntegrationTripReset(t *testing.T) {
	r := newRig(t)

	r.edges.Fire(0)
	r.edges.Fire(500 * ms)
	before := r.tick(t, 1, 600*ms)
	if before.DistanceKm == 0 {
		t.Fatal("expected distance before reset")
	}

	r.analytics.ResetTrip("trip-2", r.start.Add(time.Second))
	r.publisher.Reset()

	r.edges.Fire(1000 * ms)
	after := r.tick(t, 2, 1100*ms)
	if after.TripID != "trip-2" {
		t.Errorf("trip id: got %q, want trip-2", after.TripID)
	}
	if after.RuntimeSeconds != 1 {
		t.Errorf("runtime should restart, got %d", after.RuntimeSeconds)
	}
	if !approx(after.DistanceKm, before.DistanceKm) {
		t.Errorf("distance after reset: got %v, want one tick's worth %v", after.DistanceKm, before.DistanceKm)
	}
	if len(r.publisher.Metrics) != 1 {
		t.Errorf("expected 1 metrics after reset, got %d", len(r.publisher.Metrics))
	}
}

// TestIntegrationAlarmDrivesBuzzer runs one full SOS cycle at 10 ms polls and
// checks the buzzer output.
func TestIntegrationAlarmDrivesBuzzer(t *testing.T) {
	r := newRig(t)
	r.analytics.UpdateTemperature(50)
	if !r.analytics.Battery.AlarmActive {
		t.Fatal("expected alarm above the maximum temperature")
	}

	buzzer := gpio.NewFakeOutput()
	seq := alarm.NewSequencer(alarm.SOS, 80*time.Millisecond)
	on := false
	poll := func(now time.Time) {
		want := seq.Poll(now, r.analytics.Battery.AlarmActive)
		if want != on {
			if err := buzzer.Set(want); err != nil {
				t.Fatalf("buzzer: %v", err)
			}
			on = want
		}
	}

	cycle := seq.CycleDuration()
	if cycle != 5280*time.Millisecond {
		t.Fatalf("cycle: got %v, want 5.28s", cycle)
	}
	for d := time.Duration(0); d < cycle; d += 10 * time.Millisecond {
		poll(r.start.Add(d))
	}

	var tones int
	for _, v := range buzzer.Values() {
		if v {
			tones++
		}
	}
	if tones != 9 {
		t.Errorf("tones per cycle: got %d, want 9", tones)
	}

	// Cooling down silences the buzzer on the next poll.
	r.analytics.UpdateTemperature(20)
	poll(r.start.Add(cycle))
	if buzzer.Last() {
		t.Error("buzzer should be off once the alarm clears")
	}
}

// TestIntegrationAlarmPayload verifies alarm transitions reach the publisher.
func TestIntegrationAlarmPayload(t *testing.T) {
	r := newRig(t)
	cal := r.analytics.Cal

	shown := false
	for i, c := range []float64{20, 46, 47, 30, -1} {
		r.analytics.UpdateTemperature(c)
		if r.analytics.Battery.AlarmActive == shown {
			continue
		}
		shown = r.analytics.Battery.AlarmActive
		event := mqtt.AlarmEvent{
			Timestamp:    r.start.Add(time.Duration(i) * time.Second),
			Active:       shown,
			TemperatureC: c,
			MinC:         cal.MinTemperatureC,
			MaxC:         cal.MaxTemperatureC,
		}
		if err := r.publisher.PublishAlarm(event); err != nil {
			t.Fatalf("publish alarm: %v", err)
		}
	}

	var states []bool
	for _, a := range r.publisher.Alarms {
		states = append(states, a.Active)
	}
	want := []bool{true, false, true}
	if len(states) != len(want) {
		t.Fatalf("alarm transitions: got %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("transition %d: got %v, want %v", i, states[i], want[i])
		}
	}

	payload, err := mqtt.FormatAlarmPayload(r.publisher.Alarms[2])
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	var parsed mqtt.AlarmPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Alarm.State != "ACTIVE" || parsed.Alarm.TemperatureC != -1 {
		t.Errorf("payload: %+v", parsed.Alarm)
	}
}

// TestIntegrationStartupThenShutdown verifies the system event sequence.
func TestIntegrationStartupThenShutdown(t *testing.T) {
	publisher := mqtt.NewFakePublisher()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker := status.NewTracker(start, status.Config{Broker: "tcp://localhost:1883"})
	tracker.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "10.0.0.5", Status: "connected"})

	snap := tracker.Snapshot()
	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  start,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}); err != nil {
		t.Fatalf("startup: %v", err)
	}
	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  start.Add(time.Minute),
		Event:      "SHUTDOWN",
		Reason:     "SIGTERM",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", "SIGTERM"),
	}); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if len(publisher.SystemPayloads) != 2 {
		t.Fatalf("expected 2 system payloads, got %d", len(publisher.SystemPayloads))
	}

	var startup, shutdown status.StatusJSON
	if err := json.Unmarshal(publisher.SystemPayloads[0], &startup); err != nil {
		t.Fatalf("startup JSON: %v", err)
	}
	if err := json.Unmarshal(publisher.SystemPayloads[1], &shutdown); err != nil {
		t.Fatalf("shutdown JSON: %v", err)
	}

	if startup.Status.Event != "STARTUP" || startup.Status.Reason != "" {
		t.Errorf("startup: %+v", startup.Status)
	}
	if startup.Status.Network == nil || startup.Status.Network.IP != "10.0.0.5" {
		t.Errorf("startup network: %+v", startup.Status.Network)
	}
	if shutdown.Status.Event != "SHUTDOWN" || shutdown.Status.Reason != "SIGTERM" {
		t.Errorf("shutdown: %+v", shutdown.Status)
	}
	if shutdown.Status.Telemetry != nil {
		t.Error("no telemetry expected before the first tick")
	}
}
