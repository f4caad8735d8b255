package mqtt

import (
	"github.com/sweeney/ev-telemetry/internal/logic"
)

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Metrics contains all metrics that were published.
	Metrics []logic.Metrics

	// MetricsPayloads contains the JSON payloads for metrics.
	MetricsPayloads [][]byte

	// Alarms contains all alarm transitions that were published.
	Alarms []AlarmEvent

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishMetrics and PublishAlarm.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishMetrics records the metrics.
func (f *FakePublisher) PublishMetrics(m logic.Metrics) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatMetricsPayload(m)
	if err != nil {
		return err
	}
	f.Metrics = append(f.Metrics, m)
	f.MetricsPayloads = append(f.MetricsPayloads, payload)
	return nil
}

// PublishAlarm records the alarm transition.
func (f *FakePublisher) PublishAlarm(event AlarmEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Alarms = append(f.Alarms, event)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
