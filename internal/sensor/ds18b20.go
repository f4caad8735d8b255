package sensor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// W1Devices is where the kernel exposes one-wire slaves.
const W1Devices = "/sys/bus/w1/devices"

// ErrNoSensor is returned when no DS18B20 is present on the bus.
var ErrNoSensor = errors.New("ds18b20: no sensor found")

// ErrCRC is returned when the legacy w1_slave read fails its CRC check.
var ErrCRC = errors.New("ds18b20: crc check failed")

// DS18B20 reads a one-wire temperature sensor through the kernel w1-therm
// sysfs interface.
type DS18B20 struct {
	dir    string // device directory, e.g. /sys/bus/w1/devices/28-0316a2795aff
	master string // bus master directory holding therm_bulk_read
}

// FindDS18B20 returns the first family-28 device under base.
func FindDS18B20(base string) (*DS18B20, error) {
	matches, err := filepath.Glob(filepath.Join(base, "28-*"))
	if err != nil {
		return nil, fmt.Errorf("glob w1 devices: %w", err)
	}
	if len(matches) == 0 {
		return nil, ErrNoSensor
	}
	return &DS18B20{
		dir:    matches[0],
		master: filepath.Join(base, "w1_bus_master1"),
	}, nil
}

// SetResolution writes the conversion resolution in bits (9..12) where the
// kernel supports it.
func (d *DS18B20) SetResolution(bits int) error {
	if bits < 9 || bits > 12 {
		return fmt.Errorf("ds18b20: resolution %d out of range", bits)
	}
	path := filepath.Join(d.dir, "resolution")
	if err := os.WriteFile(path, []byte(strconv.Itoa(bits)), 0o644); err != nil {
		return fmt.Errorf("set resolution: %w", err)
	}
	return nil
}

// RequestTemperature starts a conversion on all sensors of the bus. Kernels
// without bulk conversion convert on read instead, so a missing control file
// is not an error.
func (d *DS18B20) RequestTemperature() error {
	path := filepath.Join(d.master, "therm_bulk_read")
	err := os.WriteFile(path, []byte("trigger\n"), 0o644)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("request conversion: %w", err)
	}
	return nil
}

// ReadTemperature returns the last converted temperature in Celsius.
func (d *DS18B20) ReadTemperature() (float64, error) {
	data, err := os.ReadFile(filepath.Join(d.dir, "temperature"))
	if err == nil {
		milli, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			return 0, fmt.Errorf("parse temperature: %w", err)
		}
		return float64(milli) / 1000, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read temperature: %w", err)
	}

	data, err = os.ReadFile(filepath.Join(d.dir, "w1_slave"))
	if err != nil {
		return 0, fmt.Errorf("read w1_slave: %w", err)
	}
	return parseW1Slave(string(data))
}

// parseW1Slave parses the legacy two-line format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(s string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("ds18b20: short w1_slave output")
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, ErrCRC
	}
	i := strings.LastIndex(lines[1], "t=")
	if i < 0 {
		return 0, fmt.Errorf("ds18b20: no temperature in w1_slave output")
	}
	milli, err := strconv.Atoi(strings.TrimSpace(lines[1][i+2:]))
	if err != nil {
		return 0, fmt.Errorf("parse temperature: %w", err)
	}
	return float64(milli) / 1000, nil
}
