package logic

import (
	"github.com/sweeney/ev-telemetry/internal/capture"
	"github.com/sweeney/ev-telemetry/internal/mathx"
)

// RPM converts a pulse period into wheel revolutions per minute.
// A zero or unset period yields 0, never "infinitely fast".
func RPM(p capture.PulsePeriod, pulsesPerRev float64) float64 {
	s := p.Seconds()
	if s <= 0 {
		return 0
	}
	if pulsesPerRev <= 0 {
		pulsesPerRev = 1
	}
	return 60 / s / pulsesPerRev
}

// SpeedKmh converts wheel rpm into road speed.
func SpeedKmh(rpm, circumferenceM float64) float64 {
	return rpm * circumferenceM * 60 / 1000
}

// DistanceKm is the distance covered in one 1 s tick at the given rpm.
func DistanceKm(rpm, circumferenceM float64) float64 {
	return rpm / 60 * circumferenceM / 1000
}

// UpdateMotion recomputes the motion state for one tick. period is the
// freshly captured period when fresh is true; otherwise the last period
// seen since the wheel started turning is reused.
//
// It reports whether the wheel is turning, which drives the turning
// indicator pulse.
func (c *Context) UpdateMotion(standstill bool, period capture.PulsePeriod, fresh bool) bool {
	c.Ticks++

	if standstill {
		c.Motion = MotionState{Standstill: true}
		c.havePeriod = false
		return false
	}

	if fresh {
		c.lastPeriod = period
		c.havePeriod = true
	}

	var rpm float64
	if c.havePeriod {
		rpm = RPM(c.lastPeriod, c.Cal.PulsesPerRevolution)
	}
	speed := SpeedKmh(rpm, c.Cal.WheelCircumferenceM)

	c.Motion = MotionState{RPM: rpm, SpeedKmh: speed}
	c.Totals.RuntimeSeconds++
	c.Totals.DistanceKm += DistanceKm(rpm, c.Cal.WheelCircumferenceM)
	c.Totals.SumOfSpeedSamples += speed
	c.Totals.MaxSpeedKmh = mathx.Max(c.Totals.MaxSpeedKmh, speed)
	return true
}

// Moving reports whether the last motion update saw the wheel turning.
func (c *Context) Moving() bool {
	return !c.Motion.Standstill
}
