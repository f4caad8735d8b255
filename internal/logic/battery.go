package logic

import "github.com/sweeney/ev-telemetry/internal/mathx"

// Percentage maps a pack voltage onto the configured range as
// (max - v) / (max - min) * 100. The result is not clamped.
func Percentage(voltage, minVoltage, maxVoltage float64) float64 {
	if maxVoltage == minVoltage {
		return 0
	}
	return (maxVoltage - voltage) / (maxVoltage - minVoltage) * 100
}

// TemperatureAlarm reports whether t is outside [min, max].
func TemperatureAlarm(t, minC, maxC float64) bool {
	return t < minC || t > maxC
}

// UpdateVoltage recomputes voltage and state of charge from a raw reading.
func (c *Context) UpdateVoltage(raw float64) {
	v := raw * c.Cal.VoltageMultiplier
	pct := Percentage(v, c.Cal.MinVoltage, c.Cal.MaxVoltage)
	if c.Cal.ClampPercentage {
		pct = mathx.Clamp(pct, 0, 100)
	}
	c.Battery.Voltage = v
	c.Battery.Percentage = pct
}

// UpdateTemperature records the pack temperature and re-evaluates the alarm.
func (c *Context) UpdateTemperature(celsius float64) {
	c.Battery.TemperatureC = celsius
	c.Battery.AlarmActive = TemperatureAlarm(celsius, c.Cal.MinTemperatureC, c.Cal.MaxTemperatureC)
}

// UpdateBattery is UpdateVoltage followed by UpdateTemperature.
func (c *Context) UpdateBattery(rawVoltage, celsius float64) {
	c.UpdateVoltage(rawVoltage)
	c.UpdateTemperature(celsius)
}
