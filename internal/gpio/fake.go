package gpio

import (
	"errors"
	"sync"
)

// FakeEdgeSource lets tests fire edges at chosen counter values.
type FakeEdgeSource struct {
	handler EdgeHandler

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeEdgeSource creates a FakeEdgeSource delivering to handler.
func NewFakeEdgeSource(handler EdgeHandler) *FakeEdgeSource {
	return &FakeEdgeSource{handler: handler}
}

// Fire delivers an edge at counter, as the event goroutine would.
func (f *FakeEdgeSource) Fire(counter uint64) {
	if f.Closed {
		return
	}
	f.handler(counter)
}

// Close marks the source as closed; later Fire calls are dropped.
func (f *FakeEdgeSource) Close() error {
	f.Closed = true
	return nil
}

// FakeOutput records every value written. Safe for concurrent use since
// pulses are cleared from timer goroutines.
type FakeOutput struct {
	mu     sync.Mutex
	values []bool
	closed bool

	// SetError, if set, will be returned by Set()
	SetError error
}

// NewFakeOutput creates a FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the value.
func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	if f.closed {
		return errors.New("output closed")
	}
	f.values = append(f.values, on)
	return nil
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Values returns a copy of all values written.
func (f *FakeOutput) Values() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.values...)
}

// Last returns the last value written, false if none.
func (f *FakeOutput) Last() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.values) == 0 {
		return false
	}
	return f.values[len(f.values)-1]
}

// IsClosed reports whether Close was called.
func (f *FakeOutput) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
