//go:build linux

package gpio

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// RealEdgeSource watches a GPIO line for falling edges using the kernel's
// edge detection. Event timestamps come from CLOCK_MONOTONIC.
type RealEdgeSource struct {
	line *gpiocdev.Line
}

// NewRealEdgeSource requests pin on chip as an input with pull-up and
// falling-edge events delivered to handler. No debounce is configured.
func NewRealEdgeSource(chip string, pin int, handler EdgeHandler) (*RealEdgeSource, error) {
	line, err := gpiocdev.RequestLine(chip, pin,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			handler(uint64(evt.Timestamp))
		}),
		gpiocdev.WithConsumer("ev-telemetry"),
	)
	if err != nil {
		return nil, fmt.Errorf("request rotation pin %d: %w", pin, err)
	}
	return &RealEdgeSource{line: line}, nil
}

// Close stops edge delivery and returns the line to an input with pull-down
// (matching Pi boot defaults).
func (s *RealEdgeSource) Close() error {
	var errs []error
	if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure rotation pin: %w", err))
	}
	if err := s.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close rotation pin: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealOutput drives a GPIO output line.
type RealOutput struct {
	line *gpiocdev.Line
	pin  int
}

// NewRealOutput requests pin on chip as an output, initially low.
func NewRealOutput(chip string, pin int) (*RealOutput, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("ev-telemetry"))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return &RealOutput{line: line, pin: pin}, nil
}

// Set drives the line high (on) or low.
func (o *RealOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", o.pin, err)
	}
	return nil
}

// Close drives the line low and reconfigures it to input with pull-down
// before releasing it, so that external hardware is left quiet across a
// reboot.
func (o *RealOutput) Close() error {
	var errs []error
	if err := o.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("clear pin %d: %w", o.pin, err))
	}
	if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", o.pin, err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", o.pin, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

var monotonic = newMonoClock(unix.ClockGettime)

// Monotonic returns CLOCK_MONOTONIC in nanoseconds, the time base of edge
// event timestamps.
func Monotonic() uint64 {
	return monotonic.now()
}

// monoClock reads CLOCK_MONOTONIC. If a read fails it extrapolates from the
// last good reading with the Go monotonic clock, so the value keeps
// advancing in the kernel's time base.
type monoClock struct {
	read func(clockid int32, ts *unix.Timespec) error

	mu     sync.Mutex
	last   uint64
	at     time.Time
	failed bool
}

func newMonoClock(read func(clockid int32, ts *unix.Timespec) error) *monoClock {
	return &monoClock{read: read, at: time.Now()}
}

func (m *monoClock) now() uint64 {
	var ts unix.Timespec
	err := m.read(unix.CLOCK_MONOTONIC, &ts)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if !m.failed {
			log.Printf("gpio: monotonic clock read error, extrapolating: %v", err)
			m.failed = true
		}
		return m.last + uint64(time.Since(m.at))
	}
	if m.failed {
		log.Printf("gpio: monotonic clock recovered")
		m.failed = false
	}
	m.last = uint64(ts.Nano())
	m.at = time.Now()
	return m.last
}
