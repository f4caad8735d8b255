package logic

import "time"

// Calibration holds the vehicle and sensor constants the analytics depend on.
// None of these are derived at runtime; they come from configuration.
type Calibration struct {
	WheelCircumferenceM float64 // metres travelled per wheel revolution
	PulsesPerRevolution float64 // sensor edges per wheel revolution
	TickFrequency       float64 // edge counter ticks per second
	WatchdogWindow      time.Duration

	ADCReferenceVoltage float64 // volts at full scale
	ADCResolution       float64 // counts at full scale
	MillivoltsPerAmpere float64
	ZeroCurrentMv       float64 // sensor output at 0 A
	CurrentSamples      int
	CurrentSampleDelay  time.Duration

	VoltageMultiplier float64 // raw ADC count to pack volts, divider included
	MinVoltage        float64
	MaxVoltage        float64
	MinTemperatureC   float64
	MaxTemperatureC   float64
	ClampPercentage   bool
}

// DefaultCalibration returns the constants of the reference build: a 16 inch
// wheel with one magnet, an ACS758-style hall sensor on a 10-bit 4.798 V ADC
// and a 13S lithium pack behind an 11:1 divider. The voltage multiplier is
// 11 × 0.1875 mV, one ADS1115 count at ±6.144 V. config.Default moves the
// current conversion onto the same ADS1115 scale.
func DefaultCalibration() Calibration {
	return Calibration{
		WheelCircumferenceM: 1.276,
		PulsesPerRevolution: 1,
		TickFrequency:       1e9,
		// One 16-bit overflow of a 62.5 kHz counter.
		WatchdogWindow: 1048576 * time.Microsecond,

		ADCReferenceVoltage: 4.798,
		ADCResolution:       1024,
		MillivoltsPerAmpere: 40,
		ZeroCurrentMv:       2150,
		CurrentSamples:      10,
		CurrentSampleDelay:  2 * time.Millisecond,

		VoltageMultiplier: 0.0020625,
		MinVoltage:        39.0,
		MaxVoltage:        54.6,
		MinTemperatureC:   0,
		MaxTemperatureC:   45,
	}
}

// WatchdogTicks returns the standstill window expressed in counter ticks.
func (c Calibration) WatchdogTicks() uint64 {
	if c.WatchdogWindow <= 0 || c.TickFrequency <= 0 {
		return 0
	}
	return uint64(c.WatchdogWindow.Seconds() * c.TickFrequency)
}
