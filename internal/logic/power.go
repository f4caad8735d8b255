package logic

import "github.com/sweeney/ev-telemetry/internal/mathx"

// Millivolts converts an averaged raw ADC reading to millivolts.
func Millivolts(raw, referenceVoltage, resolution float64) float64 {
	if resolution <= 0 {
		return 0
	}
	return raw * referenceVoltage * 1000 / resolution
}

// Amperes converts the current sensor output to amperes.
func Amperes(millivolts, zeroMv, mvPerAmpere float64) float64 {
	if mvPerAmpere == 0 {
		return 0
	}
	return (millivolts - zeroMv) / mvPerAmpere
}

// UpdatePower recomputes current and power from an averaged raw current
// reading. Power uses the battery voltage from the previous battery update.
// Ticks are 1 s apart, so each sample integrates as 1/3600 h.
func (c *Context) UpdatePower(rawAverage float64) {
	mv := Millivolts(rawAverage, c.Cal.ADCReferenceVoltage, c.Cal.ADCResolution)
	amps := Amperes(mv, c.Cal.ZeroCurrentMv, c.Cal.MillivoltsPerAmpere)
	watts := c.Battery.Voltage * amps

	c.Power = PowerState{Millivolts: mv, Amperes: amps, Watts: watts}
	c.Totals.MaxAmperes = mathx.Max(c.Totals.MaxAmperes, amps)
	c.Totals.MaxWatts = mathx.Max(c.Totals.MaxWatts, watts)

	if !c.Moving() {
		return
	}
	c.Totals.TotalAmpereSamples += amps
	c.Totals.AmpHours += amps / 3600
	c.Totals.TotalWattSamples += watts
	c.Totals.WattHours += watts / 3600
}
