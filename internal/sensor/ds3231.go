package sensor

import (
	"errors"

	"tinygo.org/x/drivers"
)

// DS3231 I2C address.
const DS3231Address = 0x68

// ErrRTCInvalid is returned when the clock registers hold out-of-range BCD.
var ErrRTCInvalid = errors.New("ds3231: invalid time registers")

// DS3231 reads the time from a DS3231 real-time clock.
type DS3231 struct {
	bus     drivers.I2C
	Address uint16
	buf     [7]byte
}

// NewDS3231 creates a driver on an already configured bus.
func NewDS3231(bus drivers.I2C) *DS3231 {
	return &DS3231{bus: bus, Address: DS3231Address}
}

// Now reads the seven time registers starting at 0x00.
func (d *DS3231) Now() (Timestamp, error) {
	if err := d.bus.Tx(d.Address, []byte{0x00}, d.buf[:]); err != nil {
		return Timestamp{}, err
	}
	b := d.buf

	hour := fromBCD(b[2] & 0x3F)
	if b[2]&0x40 != 0 { // 12 hour mode
		hour = fromBCD(b[2] & 0x1F)
		pm := b[2]&0x20 != 0
		if hour == 12 {
			hour = 0
		}
		if pm {
			hour += 12
		}
	}

	year := 2000 + fromBCD(b[6])
	if b[5]&0x80 != 0 {
		year += 100
	}

	ts := Timestamp{
		Year:   year,
		Month:  fromBCD(b[5] & 0x1F),
		Day:    fromBCD(b[4] & 0x3F),
		Hour:   hour,
		Minute: fromBCD(b[1] & 0x7F),
		Second: fromBCD(b[0] & 0x7F),
	}
	if ts.Second > 59 || ts.Minute > 59 || ts.Hour > 23 ||
		ts.Month < 1 || ts.Month > 12 || ts.Day < 1 || ts.Day > 31 {
		return Timestamp{}, ErrRTCInvalid
	}
	return ts, nil
}

func fromBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}
