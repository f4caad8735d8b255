package sensor

import "errors"

// FakeADC returns scripted raw samples. Each call to ReadRaw consumes the
// next sample; when exhausted the last sample repeats.
type FakeADC struct {
	Samples   []int
	ReadError error
	Reads     int

	index int
}

// NewFakeADC creates a FakeADC with the given samples.
func NewFakeADC(samples ...int) *FakeADC {
	return &FakeADC{Samples: samples}
}

// ReadRaw returns the next scripted sample.
func (f *FakeADC) ReadRaw() (int, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	f.Reads++
	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return v, nil
}

// FakeThermometer returns a fixed temperature and counts requests.
type FakeThermometer struct {
	Celsius      float64
	Requests     int
	RequestError error
	ReadError    error
}

// RequestTemperature records the request.
func (f *FakeThermometer) RequestTemperature() error {
	if f.RequestError != nil {
		return f.RequestError
	}
	f.Requests++
	return nil
}

// ReadTemperature returns Celsius.
func (f *FakeThermometer) ReadTemperature() (float64, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.Celsius, nil
}

// FakeClock returns scripted timestamps, repeating the last one.
type FakeClock struct {
	Times     []Timestamp
	ReadError error

	index int
}

// Now returns the next scripted timestamp.
func (f *FakeClock) Now() (Timestamp, error) {
	if f.ReadError != nil {
		return Timestamp{}, f.ReadError
	}
	if len(f.Times) == 0 {
		return Timestamp{}, errors.New("no times configured")
	}
	ts := f.Times[f.index]
	if f.index < len(f.Times)-1 {
		f.index++
	}
	return ts, nil
}
