package logic

import (
	"math"
	"testing"
	"time"

	"github.com/sweeney/ev-telemetry/internal/capture"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func testCal() Calibration {
	cal := DefaultCalibration()
	cal.WheelCircumferenceM = 2.0
	cal.PulsesPerRevolution = 1
	cal.TickFrequency = 1e6
	return cal
}

func newTestContext() *Context {
	return NewContext(testCal(), "trip-1", time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
}

func period(ticks uint64) capture.PulsePeriod {
	return capture.PulsePeriod{Ticks: ticks, Frequency: 1e6}
}

func TestRPMFormula(t *testing.T) {
	tests := []struct {
		name  string
		ticks uint64
		freq  float64
		ppr   float64
		want  float64
	}{
		{"one pulse per rev", 250_000, 1e6, 1, 240},
		{"two pulses per rev", 250_000, 1e6, 2, 120},
		{"one second period", 62_500, 62_500, 1, 60},
		{"zero period", 0, 1e6, 1, 0},
		{"zero ppr treated as one", 500_000, 1e6, 0, 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RPM(capture.PulsePeriod{Ticks: tt.ticks, Frequency: tt.freq}, tt.ppr)
			if !approx(got, tt.want) {
				t.Errorf("RPM: got %v, want %v", got, tt.want)
			}
			if tt.ticks > 0 && tt.ppr > 0 {
				formula := 60 * tt.freq / (float64(tt.ticks) * tt.ppr)
				if !approx(got, formula) {
					t.Errorf("RPM %v does not match 60*F/(P*N) = %v", got, formula)
				}
			}
		})
	}
}

func TestSpeedAndDistanceScaleLinearly(t *testing.T) {
	base := SpeedKmh(100, 2)
	if !approx(SpeedKmh(200, 2), 2*base) {
		t.Error("speed should double with rpm")
	}
	if !approx(SpeedKmh(100, 4), 2*base) {
		t.Error("speed should double with circumference")
	}
	// 100 rpm * 2 m = 200 m/min = 12 km/h
	if !approx(base, 12) {
		t.Errorf("SpeedKmh(100, 2): got %v, want 12", base)
	}
	// 100 rpm for one second on 2 m = 3.333 m
	if !approx(DistanceKm(100, 2), 100.0/60*2/1000) {
		t.Errorf("DistanceKm(100, 2): got %v", DistanceKm(100, 2))
	}
	if !approx(DistanceKm(200, 2), 2*DistanceKm(100, 2)) {
		t.Error("distance should double with rpm")
	}
}

func TestUpdateMotionStandstill(t *testing.T) {
	c := newTestContext()

	moving := c.UpdateMotion(true, period(250_000), true)
	if moving {
		t.Error("standstill should not report moving")
	}
	if c.Motion.SpeedKmh != 0 || c.Motion.RPM != 0 {
		t.Errorf("standstill speed/rpm: got %v/%v, want 0", c.Motion.SpeedKmh, c.Motion.RPM)
	}
	if c.Totals.DistanceKm != 0 {
		t.Errorf("distance at standstill: got %v, want 0", c.Totals.DistanceKm)
	}
	if c.Totals.RuntimeSeconds != 0 {
		t.Errorf("runtime at standstill: got %d, want 0", c.Totals.RuntimeSeconds)
	}
	if c.Ticks != 1 {
		t.Errorf("Ticks: got %d, want 1", c.Ticks)
	}
	if m := c.Metrics(time.Time{}); m.Ticks != 1 {
		t.Errorf("Metrics.Ticks: got %d, want 1", m.Ticks)
	}
}

func TestUpdateMotionMoving(t *testing.T) {
	c := newTestContext()

	// 240 rpm on 2 m = 28.8 km/h
	if !c.UpdateMotion(false, period(250_000), true) {
		t.Fatal("expected moving")
	}
	if !approx(c.Motion.RPM, 240) {
		t.Errorf("RPM: got %v, want 240", c.Motion.RPM)
	}
	if !approx(c.Motion.SpeedKmh, 28.8) {
		t.Errorf("SpeedKmh: got %v, want 28.8", c.Motion.SpeedKmh)
	}
	if !approx(c.Totals.DistanceKm, 0.008) {
		t.Errorf("DistanceKm: got %v, want 0.008", c.Totals.DistanceKm)
	}

	// No fresh period: last one is reused.
	c.UpdateMotion(false, capture.PulsePeriod{}, false)
	if !approx(c.Motion.SpeedKmh, 28.8) {
		t.Errorf("reused SpeedKmh: got %v, want 28.8", c.Motion.SpeedKmh)
	}

	// Slower
	c.UpdateMotion(false, period(500_000), true)
	if !approx(c.Motion.SpeedKmh, 14.4) {
		t.Errorf("SpeedKmh: got %v, want 14.4", c.Motion.SpeedKmh)
	}

	if c.Totals.RuntimeSeconds != 3 {
		t.Errorf("RuntimeSeconds: got %d, want 3", c.Totals.RuntimeSeconds)
	}
	if !approx(c.Totals.MaxSpeedKmh, 28.8) {
		t.Errorf("MaxSpeedKmh: got %v, want 28.8", c.Totals.MaxSpeedKmh)
	}
	if !approx(c.AverageSpeedKmh(), (28.8+28.8+14.4)/3) {
		t.Errorf("AverageSpeedKmh: got %v", c.AverageSpeedKmh())
	}
	if !approx(c.Totals.DistanceKm, 0.008+0.008+0.004) {
		t.Errorf("DistanceKm: got %v, want 0.02", c.Totals.DistanceKm)
	}
}

func TestUpdateMotionNoPeriodYet(t *testing.T) {
	c := newTestContext()

	// Wheel just started: not standstill, but only one edge so far.
	if !c.UpdateMotion(false, capture.PulsePeriod{}, false) {
		t.Error("expected moving")
	}
	if c.Motion.SpeedKmh != 0 {
		t.Errorf("SpeedKmh without period: got %v, want 0", c.Motion.SpeedKmh)
	}
	if c.Totals.RuntimeSeconds != 1 {
		t.Errorf("RuntimeSeconds: got %d, want 1", c.Totals.RuntimeSeconds)
	}
}

func TestStandstillForgetsLastPeriod(t *testing.T) {
	c := newTestContext()
	c.UpdateMotion(false, period(250_000), true)
	c.UpdateMotion(true, capture.PulsePeriod{}, false)
	c.UpdateMotion(false, capture.PulsePeriod{}, false)

	if c.Motion.SpeedKmh != 0 {
		t.Errorf("stale period reused after standstill: speed %v", c.Motion.SpeedKmh)
	}
}

func TestAverageSpeedZeroRuntime(t *testing.T) {
	c := newTestContext()
	c.Totals.SumOfSpeedSamples = 123.4
	c.Totals.RuntimeSeconds = 0

	got := c.AverageSpeedKmh()
	if got != 0 || math.IsNaN(got) {
		t.Errorf("AverageSpeedKmh with zero runtime: got %v, want 0", got)
	}
	if c.AverageAmperes() != 0 || c.AverageWatts() != 0 {
		t.Error("averages with zero runtime should be 0")
	}
}

func TestEfficiency(t *testing.T) {
	tests := []struct {
		distance, ah, want float64
	}{
		{0, 0, 0},
		{0, 1.5, 0},
		{10, 0, 0},
		{10, 2.5, 4},
	}
	for _, tt := range tests {
		got := Efficiency(tt.distance, tt.ah)
		if got != tt.want || math.IsNaN(got) || math.IsInf(got, 0) {
			t.Errorf("Efficiency(%v, %v) = %v, want %v", tt.distance, tt.ah, got, tt.want)
		}
	}
}

func TestAmperesAtCalibrationPoints(t *testing.T) {
	if got := Amperes(2150, 2150, 40); got != 0 {
		t.Errorf("Amperes at zero point: got %v, want 0", got)
	}
	if got := Amperes(2190, 2150, 40); !approx(got, 1.0) {
		t.Errorf("Amperes at 2190 mV: got %v, want 1.0", got)
	}
	if got := Amperes(2190, 2150, 0); got != 0 {
		t.Errorf("Amperes with zero scale: got %v, want 0", got)
	}
}

func TestMillivolts(t *testing.T) {
	if got := Millivolts(1024, 4.798, 1024); !approx(got, 4798) {
		t.Errorf("full scale: got %v, want 4798", got)
	}
	if got := Millivolts(512, 5, 0); got != 0 {
		t.Errorf("zero resolution: got %v, want 0", got)
	}
}

func TestUpdatePowerFromRawReading(t *testing.T) {
	c := newTestContext()
	c.Cal.ADCReferenceVoltage = 4.798
	c.Cal.ADCResolution = 1024
	c.Cal.MillivoltsPerAmpere = 40
	c.Cal.ZeroCurrentMv = 2150

	raw := 2190.0 * 1024 / 4798 // produces 2190 mV
	c.UpdatePower(raw)
	if !approx(c.Power.Amperes, 1.0) {
		t.Errorf("Amperes: got %v, want 1.0", c.Power.Amperes)
	}

	raw = 2150.0 * 1024 / 4798
	c.UpdatePower(raw)
	if math.Abs(c.Power.Amperes) > 1e-9 {
		t.Errorf("Amperes at zero point: got %v, want 0", c.Power.Amperes)
	}
}

func TestUpdatePowerAccumulatesOnlyWhileMoving(t *testing.T) {
	c := newTestContext()
	c.Cal.ADCReferenceVoltage = 1
	c.Cal.ADCResolution = 1000 // raw == mV
	c.Cal.ZeroCurrentMv = 0
	c.Cal.MillivoltsPerAmpere = 1 // raw == amperes
	c.Battery.Voltage = 48

	// Stopped: maxima update, totals don't.
	c.UpdateMotion(true, capture.PulsePeriod{}, false)
	c.UpdatePower(10)
	if c.Totals.AmpHours != 0 || c.Totals.TotalAmpereSamples != 0 || c.Totals.TotalWattSamples != 0 {
		t.Error("totals should not accumulate at standstill")
	}
	if !approx(c.Totals.MaxAmperes, 10) {
		t.Errorf("MaxAmperes: got %v, want 10", c.Totals.MaxAmperes)
	}
	if !approx(c.Totals.MaxWatts, 480) {
		t.Errorf("MaxWatts: got %v, want 480", c.Totals.MaxWatts)
	}

	// Moving for two ticks at 36 A then 18 A.
	c.UpdateMotion(false, period(250_000), true)
	c.UpdatePower(36)
	c.UpdateMotion(false, capture.PulsePeriod{}, false)
	c.UpdatePower(18)

	if !approx(c.Totals.AmpHours, (36.0+18.0)/3600) {
		t.Errorf("AmpHours: got %v", c.Totals.AmpHours)
	}
	if !approx(c.AverageAmperes(), 27) {
		t.Errorf("AverageAmperes: got %v, want 27", c.AverageAmperes())
	}
	if !approx(c.AverageWatts(), 27*48) {
		t.Errorf("AverageWatts: got %v, want %v", c.AverageWatts(), 27*48)
	}
	if !approx(c.Totals.MaxWatts, 36*48) {
		t.Errorf("MaxWatts: got %v, want %v", c.Totals.MaxWatts, 36*48)
	}
	if !approx(c.Totals.WattHours, (36.0+18.0)*48/3600) {
		t.Errorf("WattHours: got %v", c.Totals.WattHours)
	}
	if !approx(c.EfficiencyKmPerAh(), c.Totals.DistanceKm/c.Totals.AmpHours) {
		t.Errorf("Efficiency: got %v", c.EfficiencyKmPerAh())
	}
}

func TestPercentageInvertedAndUnclamped(t *testing.T) {
	tests := []struct {
		v, want float64
	}{
		{54.6, 0},
		{39.0, 100},
		{46.8, 50},
		{58.5, -25}, // above max
		{35.1, 125}, // below min
	}
	for _, tt := range tests {
		got := Percentage(tt.v, 39.0, 54.6)
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("Percentage(%v): got %v, want %v", tt.v, got, tt.want)
		}
	}
	if Percentage(40, 40, 40) != 0 {
		t.Error("degenerate range should yield 0")
	}
}

func TestUpdateVoltage(t *testing.T) {
	c := newTestContext()
	c.Cal.VoltageMultiplier = 0.01
	c.Cal.MinVoltage = 40
	c.Cal.MaxVoltage = 50

	c.UpdateVoltage(6000) // 60 V
	if !approx(c.Battery.Voltage, 60) {
		t.Errorf("Voltage: got %v, want 60", c.Battery.Voltage)
	}
	if !approx(c.Battery.Percentage, -100) {
		t.Errorf("unclamped Percentage: got %v, want -100", c.Battery.Percentage)
	}

	c.Cal.ClampPercentage = true
	c.UpdateVoltage(6000)
	if c.Battery.Percentage != 0 {
		t.Errorf("clamped Percentage: got %v, want 0", c.Battery.Percentage)
	}
}

func TestTemperatureAlarm(t *testing.T) {
	c := newTestContext()
	c.Cal.MinTemperatureC = 0
	c.Cal.MaxTemperatureC = 45

	tests := []struct {
		temp float64
		want bool
	}{
		{-0.5, true},
		{0, false},
		{25, false},
		{45, false},
		{45.1, true},
	}
	for _, tt := range tests {
		c.UpdateTemperature(tt.temp)
		if c.Battery.AlarmActive != tt.want {
			t.Errorf("temp %v: AlarmActive got %v, want %v", tt.temp, c.Battery.AlarmActive, tt.want)
		}
		if c.Battery.TemperatureC != tt.temp {
			t.Errorf("TemperatureC: got %v, want %v", c.Battery.TemperatureC, tt.temp)
		}
	}
}

func TestResetTrip(t *testing.T) {
	c := newTestContext()
	c.Battery.Voltage = 48
	c.UpdateMotion(false, period(250_000), true)
	c.UpdatePower(500)

	later := time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)
	c.ResetTrip("trip-2", later)

	if c.Totals != (RunningTotals{}) {
		t.Errorf("totals not cleared: %+v", c.Totals)
	}
	if c.TripID != "trip-2" {
		t.Errorf("TripID: got %q, want trip-2", c.TripID)
	}
	if !c.TripStart.Equal(later) {
		t.Errorf("TripStart: got %v, want %v", c.TripStart, later)
	}
	if c.Battery.Voltage != 48 {
		t.Error("instantaneous battery state should survive a trip reset")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	c := newTestContext()
	c.UpdateMotion(false, period(250_000), true)
	c.UpdateTemperature(50)

	now := time.Date(2026, 1, 1, 12, 0, 1, 0, time.UTC)
	m := c.Metrics(now)
	if !m.Timestamp.Equal(now) {
		t.Errorf("Timestamp: got %v", m.Timestamp)
	}
	if m.TripID != "trip-1" {
		t.Errorf("TripID: got %q", m.TripID)
	}
	if m.Standstill {
		t.Error("expected moving")
	}
	if !approx(m.SpeedKmh, 28.8) || !approx(m.AvgSpeedKmh, 28.8) {
		t.Errorf("speed: got %v avg %v", m.SpeedKmh, m.AvgSpeedKmh)
	}
	if !m.AlarmActive {
		t.Error("expected AlarmActive")
	}
	if m.RuntimeSeconds != 1 {
		t.Errorf("RuntimeSeconds: got %d", m.RuntimeSeconds)
	}
}

func TestWatchdogTicks(t *testing.T) {
	cal := Calibration{TickFrequency: 1e6, WatchdogWindow: 2 * time.Second}
	if cal.WatchdogTicks() != 2_000_000 {
		t.Errorf("WatchdogTicks: got %d, want 2000000", cal.WatchdogTicks())
	}
	cal.TickFrequency = 0
	if cal.WatchdogTicks() != 0 {
		t.Error("zero frequency should disable the watchdog")
	}
}
