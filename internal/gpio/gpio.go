// Package gpio provides the rotation edge source and the buzzer/LED outputs
// with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// EdgeHandler receives the counter value, in nanoseconds of CLOCK_MONOTONIC,
// at which an edge occurred. It runs on the event goroutine and must not
// block.
type EdgeHandler func(counter uint64)

// EdgeSource delivers rotation sensor edges to an EdgeHandler until closed.
type EdgeSource interface {
	Close() error
}

// Output drives a digital output line.
type Output interface {
	Set(on bool) error
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinRotation = 17 // hall sensor, active low
	DefaultPinBuzzer   = 18
	DefaultPinLED      = 27
)

// DefaultChip is the GPIO character device of the Raspberry Pi header.
const DefaultChip = "gpiochip0"

// CounterFrequency is the tick rate of Monotonic and of edge timestamps.
const CounterFrequency = 1e9
