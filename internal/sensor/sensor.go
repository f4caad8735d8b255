// Package sensor provides the raw sensor collaborators of the telemetry
// core: analog channels, the battery thermometer and the real-time clock.
// Real implementations talk to hardware; fakes return scripted values.
package sensor

import (
	"fmt"
	"time"
)

// ADC reads one raw sample from a single analog channel.
type ADC interface {
	ReadRaw() (int, error)
}

// Thermometer follows a request/read protocol: RequestTemperature starts a
// conversion, ReadTemperature returns the converted value in Celsius.
type Thermometer interface {
	RequestTemperature() error
	ReadTemperature() (float64, error)
}

// Timestamp is a wall-clock reading as delivered by the real-time clock.
type Timestamp struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// Time converts the timestamp to a time.Time in loc.
func (ts Timestamp) Time(loc *time.Location) time.Time {
	return time.Date(ts.Year, time.Month(ts.Month), ts.Day, ts.Hour, ts.Minute, ts.Second, 0, loc)
}

func (ts Timestamp) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", ts.Year, ts.Month, ts.Day, ts.Hour, ts.Minute, ts.Second)
}

// Clock reads the real-time clock.
type Clock interface {
	Now() (Timestamp, error)
}

// FromTime converts t to a Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// SystemClock reads the host clock. Used when no RTC is fitted.
type SystemClock struct{}

// Now returns the current host time.
func (SystemClock) Now() (Timestamp, error) {
	return FromTime(time.Now()), nil
}

// Averager takes Samples successive readings from ADC with Delay between
// them and returns their mean. It blocks for (Samples-1)*Delay.
type Averager struct {
	ADC     ADC
	Samples int
	Delay   time.Duration

	// Sleep defaults to time.Sleep; tests replace it.
	Sleep func(time.Duration)
}

// Read returns the mean of the samples.
func (a *Averager) Read() (float64, error) {
	n := a.Samples
	if n <= 0 {
		n = 1
	}
	sleep := a.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var sum int
	for i := 0; i < n; i++ {
		if i > 0 && a.Delay > 0 {
			sleep(a.Delay)
		}
		v, err := a.ADC.ReadRaw()
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, err)
		}
		sum += v
	}
	return float64(sum) / float64(n), nil
}
