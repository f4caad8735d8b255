// Package config loads daemon settings from an optional .env file and the
// environment. Every calibration constant can be changed without a rebuild.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sweeney/ev-telemetry/internal/alarm"
	"github.com/sweeney/ev-telemetry/internal/gpio"
	"github.com/sweeney/ev-telemetry/internal/logic"
	"github.com/sweeney/ev-telemetry/internal/sensor"
)

const (
	defaultBroker    = "tcp://localhost:1883"
	defaultClientID  = "ev-telemetry"
	defaultHTTPAddr  = ":80"
	defaultHeartbeat = 15 * time.Minute
	defaultPoll      = 10 * time.Millisecond
	defaultLEDPulse  = 50 * time.Millisecond
	defaultPattern   = "... --- .../"

	// ADS1115 at Gain6V144: 32768 counts span 6.144 V, 0.1875 mV per count.
	adsReferenceV = 6.144
	adsResolution = 32768
)

// Config holds runtime configuration for the daemon.
type Config struct {
	Cal logic.Calibration

	GPIOChip    string
	PinRotation int
	PinBuzzer   int
	PinLED      int
	LEDPulse    time.Duration

	I2CBus         int
	ADSAddress     uint16
	ADSGain        sensor.Gain
	CurrentChannel int
	VoltageChannel int
	RTCAddress     uint16
	UseRTC         bool

	W1Devices      string
	TempResolution int

	Broker       string
	ClientID     string
	MQTTUsername string
	MQTTPassword string
	HTTPAddr     string

	Heartbeat    time.Duration
	Poll         time.Duration
	MorsePattern string
	MorseUnit    time.Duration
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	cal := logic.DefaultCalibration()
	cal.ADCReferenceVoltage = adsReferenceV
	cal.ADCResolution = adsResolution

	return Config{
		Cal:            cal,
		GPIOChip:       gpio.DefaultChip,
		PinRotation:    gpio.DefaultPinRotation,
		PinBuzzer:      gpio.DefaultPinBuzzer,
		PinLED:         gpio.DefaultPinLED,
		LEDPulse:       defaultLEDPulse,
		I2CBus:         1,
		ADSAddress:     sensor.ADS1115Address,
		ADSGain:        sensor.Gain6V144,
		CurrentChannel: 0,
		VoltageChannel: 1,
		RTCAddress:     sensor.DS3231Address,
		UseRTC:         true,
		W1Devices:      sensor.W1Devices,
		TempResolution: 12,
		Broker:         defaultBroker,
		ClientID:       defaultClientID,
		HTTPAddr:       defaultHTTPAddr,
		Heartbeat:      defaultHeartbeat,
		Poll:           defaultPoll,
		MorsePattern:   defaultPattern,
		MorseUnit:      alarm.DefaultUnit,
	}
}

// Load reads envFile (a missing file is not an error) and then the
// environment. A variable that is set but malformed is an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	p := parser{}

	p.float("WHEEL_CIRCUMFERENCE_M", &cfg.Cal.WheelCircumferenceM)
	p.float("PULSES_PER_REV", &cfg.Cal.PulsesPerRevolution)
	p.duration("WATCHDOG_WINDOW", &cfg.Cal.WatchdogWindow)
	p.float("ADC_REFERENCE_V", &cfg.Cal.ADCReferenceVoltage)
	p.float("ADC_RESOLUTION", &cfg.Cal.ADCResolution)
	p.float("CURRENT_MV_PER_A", &cfg.Cal.MillivoltsPerAmpere)
	p.float("CURRENT_ZERO_MV", &cfg.Cal.ZeroCurrentMv)
	p.int("CURRENT_SAMPLES", &cfg.Cal.CurrentSamples)
	p.duration("CURRENT_SAMPLE_DELAY", &cfg.Cal.CurrentSampleDelay)
	p.float("VOLTAGE_MULTIPLIER", &cfg.Cal.VoltageMultiplier)
	p.float("BATTERY_MIN_V", &cfg.Cal.MinVoltage)
	p.float("BATTERY_MAX_V", &cfg.Cal.MaxVoltage)
	p.float("BATTERY_MIN_TEMP_C", &cfg.Cal.MinTemperatureC)
	p.float("BATTERY_MAX_TEMP_C", &cfg.Cal.MaxTemperatureC)
	p.bool("BATTERY_PERCENT_CLAMP", &cfg.Cal.ClampPercentage)

	p.string("GPIO_CHIP", &cfg.GPIOChip)
	p.int("PIN_ROTATION", &cfg.PinRotation)
	p.int("PIN_BUZZER", &cfg.PinBuzzer)
	p.int("PIN_LED", &cfg.PinLED)
	p.duration("LED_PULSE", &cfg.LEDPulse)

	p.int("I2C_BUS", &cfg.I2CBus)
	p.addr("ADS1115_ADDR", &cfg.ADSAddress)
	p.gain("ADS1115_GAIN", &cfg.ADSGain)
	p.int("CURRENT_CHANNEL", &cfg.CurrentChannel)
	p.int("VOLTAGE_CHANNEL", &cfg.VoltageChannel)
	p.addr("DS3231_ADDR", &cfg.RTCAddress)
	p.bool("USE_RTC", &cfg.UseRTC)

	p.string("W1_DEVICES", &cfg.W1Devices)
	p.int("TEMP_RESOLUTION", &cfg.TempResolution)

	p.string("MQTT_BROKER", &cfg.Broker)
	p.string("MQTT_CLIENT_ID", &cfg.ClientID)
	p.string("MQTT_USERNAME", &cfg.MQTTUsername)
	p.string("MQTT_PASSWORD", &cfg.MQTTPassword)
	p.string("HTTP_ADDR", &cfg.HTTPAddr)

	p.duration("HEARTBEAT_INTERVAL", &cfg.Heartbeat)
	p.duration("POLL_INTERVAL", &cfg.Poll)
	p.string("MORSE_PATTERN", &cfg.MorsePattern)
	p.duration("MORSE_UNIT", &cfg.MorseUnit)

	if p.err != nil {
		return cfg, p.err
	}
	return cfg, nil
}

// Validate rejects settings that would make the analytics divide by zero
// or the alarm meaningless.
func (c Config) Validate() error {
	switch {
	case c.Cal.WheelCircumferenceM <= 0:
		return errors.New("WHEEL_CIRCUMFERENCE_M must be positive")
	case c.Cal.PulsesPerRevolution <= 0:
		return errors.New("PULSES_PER_REV must be positive")
	case c.Cal.TickFrequency <= 0:
		return errors.New("tick frequency must be positive")
	case c.Cal.MillivoltsPerAmpere <= 0:
		return errors.New("CURRENT_MV_PER_A must be positive")
	case c.Cal.ADCResolution <= 0:
		return errors.New("ADC_RESOLUTION must be positive")
	case c.Cal.CurrentSamples <= 0:
		return errors.New("CURRENT_SAMPLES must be positive")
	case c.Cal.MaxVoltage == c.Cal.MinVoltage:
		return errors.New("BATTERY_MAX_V must differ from BATTERY_MIN_V")
	case c.Cal.MinTemperatureC > c.Cal.MaxTemperatureC:
		return errors.New("BATTERY_MIN_TEMP_C must not exceed BATTERY_MAX_TEMP_C")
	case c.MorseUnit <= 0:
		return errors.New("MORSE_UNIT must be positive")
	case c.Poll <= 0:
		return errors.New("POLL_INTERVAL must be positive")
	case c.Poll >= time.Second:
		return errors.New("POLL_INTERVAL must be under one second")
	case c.Heartbeat < 0:
		return errors.New("HEARTBEAT_INTERVAL must not be negative")
	}
	if c.CurrentChannel < 0 || c.CurrentChannel > 3 {
		return fmt.Errorf("CURRENT_CHANNEL %d out of range 0-3", c.CurrentChannel)
	}
	if c.VoltageChannel < 0 || c.VoltageChannel > 3 {
		return fmt.Errorf("VOLTAGE_CHANNEL %d out of range 0-3", c.VoltageChannel)
	}
	if _, err := alarm.ParsePattern(c.MorsePattern); err != nil {
		return fmt.Errorf("invalid MORSE_PATTERN: %w", err)
	}
	return nil
}

// Pattern returns the parsed alarm pattern. Call Validate first.
func (c Config) Pattern() []alarm.Symbol {
	p, err := alarm.ParsePattern(c.MorsePattern)
	if err != nil {
		return alarm.SOS
	}
	return p
}

// parser reads typed variables and keeps the first error.
type parser struct {
	err error
}

func (p *parser) lookup(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) string(key string, dst *string) {
	if v, ok := p.lookup(key); ok {
		*dst = v
	}
}

func (p *parser) float(key string, dst *float64) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
		return
	}
	*dst = f
}

func (p *parser) int(key string, dst *int) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
		return
	}
	*dst = n
}

func (p *parser) bool(key string, dst *bool) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
		return
	}
	*dst = b
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
		return
	}
	*dst = d
}

// addr accepts decimal or 0x-prefixed hex I2C addresses.
func (p *parser) addr(key string, dst *uint16) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.ParseUint(v, 0, 7)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
		return
	}
	*dst = uint16(n)
}

// gain accepts the full-scale range in millivolts, e.g. 4096.
func (p *parser) gain(key string, dst *sensor.Gain) {
	var mv int
	p.int(key, &mv)
	if p.err != nil || mv == 0 {
		return
	}
	g, err := sensor.GainForFullScale(mv)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
		return
	}
	*dst = g
}
