package logic

import (
	"time"

	"github.com/sweeney/ev-telemetry/internal/capture"
	"github.com/sweeney/ev-telemetry/internal/mathx"
)

// MotionState is the wheel state as of the last tick.
type MotionState struct {
	Standstill bool
	RPM        float64
	SpeedKmh   float64
}

// PowerState is the current draw as of the last tick.
type PowerState struct {
	Millivolts float64
	Amperes    float64
	Watts      float64
}

// BatteryState is recomputed every tick from fresh samples.
type BatteryState struct {
	Voltage      float64
	Percentage   float64
	TemperatureC float64
	AlarmActive  bool
}

// RunningTotals only grow during a trip. They are cleared by ResetTrip.
type RunningTotals struct {
	DistanceKm         float64
	SumOfSpeedSamples  float64
	MaxSpeedKmh        float64
	TotalAmpereSamples float64
	AmpHours           float64
	MaxAmperes         float64
	TotalWattSamples   float64
	WattHours          float64
	MaxWatts           float64
	RuntimeSeconds     int64 // ticks spent moving
}

// Context owns all analytics state. It is not safe for concurrent use; the
// main loop is its only caller.
type Context struct {
	Cal Calibration

	Motion  MotionState
	Power   PowerState
	Battery BatteryState
	Totals  RunningTotals

	TripID    string
	TripStart time.Time
	Ticks     int64 // recomputations since start

	lastPeriod capture.PulsePeriod
	havePeriod bool
}

// NewContext creates a context starting a trip with the given id at start.
func NewContext(cal Calibration, tripID string, start time.Time) *Context {
	return &Context{
		Cal:       cal,
		Motion:    MotionState{Standstill: true},
		TripID:    tripID,
		TripStart: start,
	}
}

// ResetTrip clears the running totals and maxima and starts a new trip.
// Instantaneous motion, power and battery readings are kept.
func (c *Context) ResetTrip(tripID string, now time.Time) {
	c.Totals = RunningTotals{}
	c.TripID = tripID
	c.TripStart = now
}

// AverageSpeedKmh is the mean speed over moving ticks, 0 before any.
func (c *Context) AverageSpeedKmh() float64 {
	return mathx.SafeDiv(c.Totals.SumOfSpeedSamples, float64(c.Totals.RuntimeSeconds))
}

// AverageAmperes is the mean current over moving ticks, 0 before any.
func (c *Context) AverageAmperes() float64 {
	return mathx.SafeDiv(c.Totals.TotalAmpereSamples, float64(c.Totals.RuntimeSeconds))
}

// AverageWatts is the mean power over moving ticks, 0 before any.
func (c *Context) AverageWatts() float64 {
	return mathx.SafeDiv(c.Totals.TotalWattSamples, float64(c.Totals.RuntimeSeconds))
}

// EfficiencyKmPerAh is distance per amp-hour, 0 when either is zero.
func (c *Context) EfficiencyKmPerAh() float64 {
	return Efficiency(c.Totals.DistanceKm, c.Totals.AmpHours)
}

// Efficiency returns distance/ampHours, or 0 when either operand is zero.
func Efficiency(distance, ampHours float64) float64 {
	if distance == 0 || ampHours == 0 {
		return 0
	}
	return distance / ampHours
}

// Metrics is a value snapshot of everything a display sink renders.
type Metrics struct {
	Timestamp time.Time
	TripID    string
	TripStart time.Time

	Standstill     bool
	RPM            float64
	SpeedKmh       float64
	AvgSpeedKmh    float64
	MaxSpeedKmh    float64
	DistanceKm     float64
	RuntimeSeconds int64
	Ticks          int64 // recomputations since start

	Amperes    float64
	AvgAmperes float64
	MaxAmperes float64
	AmpHours   float64
	Watts      float64
	AvgWatts   float64
	MaxWatts   float64
	WattHours  float64
	Efficiency float64 // km per Ah

	Voltage      float64
	Percentage   float64
	TemperatureC float64
	AlarmActive  bool
}

// Metrics returns the current snapshot stamped with now.
func (c *Context) Metrics(now time.Time) Metrics {
	return Metrics{
		Timestamp:      now,
		TripID:         c.TripID,
		TripStart:      c.TripStart,
		Standstill:     c.Motion.Standstill,
		RPM:            c.Motion.RPM,
		SpeedKmh:       c.Motion.SpeedKmh,
		AvgSpeedKmh:    c.AverageSpeedKmh(),
		MaxSpeedKmh:    c.Totals.MaxSpeedKmh,
		DistanceKm:     c.Totals.DistanceKm,
		RuntimeSeconds: c.Totals.RuntimeSeconds,
		Ticks:          c.Ticks,
		Amperes:        c.Power.Amperes,
		AvgAmperes:     c.AverageAmperes(),
		MaxAmperes:     c.Totals.MaxAmperes,
		AmpHours:       c.Totals.AmpHours,
		Watts:          c.Power.Watts,
		AvgWatts:       c.AverageWatts(),
		MaxWatts:       c.Totals.MaxWatts,
		WattHours:      c.Totals.WattHours,
		Efficiency:     c.EfficiencyKmPerAh(),
		Voltage:        c.Battery.Voltage,
		Percentage:     c.Battery.Percentage,
		TemperatureC:   c.Battery.TemperatureC,
		AlarmActive:    c.Battery.AlarmActive,
	}
}
