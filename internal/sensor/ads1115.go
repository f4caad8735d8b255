package sensor

import (
	"errors"
	"fmt"
	"time"

	"tinygo.org/x/drivers"
)

// ADS1115 I2C address with ADDR tied to GND.
const ADS1115Address = 0x48

const (
	regConversion = 0x00
	regConfig     = 0x01

	cfgOSSingle    = 0x8000 // write: start conversion; read: 1 = idle
	cfgMuxSingle0  = 0x4000 // AIN0 vs GND; AINn adds n<<12
	cfgModeSingle  = 0x0100
	cfgRate128SPS  = 0x0080
	cfgCompDisable = 0x0003
)

// Gain selects the programmable gain amplifier full-scale range.
type Gain uint16

const (
	Gain6V144 Gain = 0x0000
	Gain4V096 Gain = 0x0200
	Gain2V048 Gain = 0x0400
	Gain1V024 Gain = 0x0600
	Gain0V512 Gain = 0x0800
	Gain0V256 Gain = 0x0A00
)

// GainForFullScale maps a full-scale range in millivolts to its Gain.
func GainForFullScale(mv int) (Gain, error) {
	switch mv {
	case 6144:
		return Gain6V144, nil
	case 4096:
		return Gain4V096, nil
	case 2048:
		return Gain2V048, nil
	case 1024:
		return Gain1V024, nil
	case 512:
		return Gain0V512, nil
	case 256:
		return Gain0V256, nil
	}
	return 0, fmt.Errorf("ads1115: no gain for %d mV full scale", mv)
}

// Errors returned by the ADS1115 driver.
var (
	ErrADSTimeout = errors.New("ads1115: conversion timeout")
	ErrADSChannel = errors.New("ads1115: channel out of range")
)

// ADS1115Config controls the conversion. Zero fields take defaults.
type ADS1115Config struct {
	// Address defaults to 0x48.
	Address uint16
	// Gain defaults to ±6.144 V (the zero value).
	Gain Gain
	// PollInterval between ready checks. Default 1 ms.
	PollInterval time.Duration
	// Timeout bounds one conversion. Default 50 ms.
	Timeout time.Duration
}

// ADS1115 is a 16-bit I2C ADC used in single-shot mode.
type ADS1115 struct {
	bus drivers.I2C
	cfg ADS1115Config
	buf [3]byte
}

// NewADS1115 creates a driver on an already configured bus. It does not
// touch the device.
func NewADS1115(bus drivers.I2C, cfg ADS1115Config) *ADS1115 {
	if cfg.Address == 0 {
		cfg.Address = ADS1115Address
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 50 * time.Millisecond
	}
	return &ADS1115{bus: bus, cfg: cfg}
}

// ReadChannel runs one single-ended conversion on channel 0..3 and returns
// the signed 16-bit result.
func (d *ADS1115) ReadChannel(channel int) (int16, error) {
	if channel < 0 || channel > 3 {
		return 0, ErrADSChannel
	}

	cfg := uint16(cfgOSSingle|cfgMuxSingle0|cfgModeSingle|cfgRate128SPS|cfgCompDisable) |
		uint16(channel)<<12 | uint16(d.cfg.Gain)
	d.buf[0] = regConfig
	d.buf[1] = byte(cfg >> 8)
	d.buf[2] = byte(cfg)
	if err := d.bus.Tx(d.cfg.Address, d.buf[:3], nil); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(d.cfg.Timeout)
	for {
		ready, err := d.ready()
		if err != nil {
			return 0, err
		}
		if ready {
			break
		}
		if time.Now().After(deadline) {
			return 0, ErrADSTimeout
		}
		time.Sleep(d.cfg.PollInterval)
	}

	d.buf[0] = regConversion
	if err := d.bus.Tx(d.cfg.Address, d.buf[:1], d.buf[1:3]); err != nil {
		return 0, err
	}
	return int16(uint16(d.buf[1])<<8 | uint16(d.buf[2])), nil
}

func (d *ADS1115) ready() (bool, error) {
	d.buf[0] = regConfig
	if err := d.bus.Tx(d.cfg.Address, d.buf[:1], d.buf[1:3]); err != nil {
		return false, err
	}
	return d.buf[1]&0x80 != 0, nil
}

// Channel returns an ADC bound to one input.
func (d *ADS1115) Channel(channel int) ADC {
	return ads1115Channel{dev: d, channel: channel}
}

type ads1115Channel struct {
	dev     *ADS1115
	channel int
}

func (c ads1115Channel) ReadRaw() (int, error) {
	v, err := c.dev.ReadChannel(c.channel)
	return int(v), err
}
