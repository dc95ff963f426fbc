// ABOUTME: DS3231 backup clock over I2C via periph.io, with GPIO power rail
// ABOUTME: BCD datetime block, signed aging register, 1/256 degree temperature
package rtc

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
)

const (
	ds3231Addr = 0x68

	regDateTime    = 0x00 // 7 bytes: sec min hour wday mday month year, BCD
	regAging       = 0x10 // signed two's complement, ~1 ppm per LSB
	regTemperature = 0x11 // 2 bytes, 1/256 degree C steps
)

// DS3231 talks to the real chip. It satisfies Device; wrap it in a Guard so
// the rail is only up during transactions.
type DS3231 struct {
	dev i2c.Dev
}

// NewDS3231 binds the driver to an I2C bus.
func NewDS3231(bus i2c.Bus) *DS3231 {
	return &DS3231{dev: i2c.Dev{Bus: bus, Addr: ds3231Addr}}
}

func bcdToDec(b byte) int { return int(b>>4)*10 + int(b&0x0F) }
func decToBCD(v int) byte { return byte(v/10)<<4 | byte(v%10) }

// ReadTime reads the 7-byte datetime block. The chip stores no century; years
// are interpreted as 2000..2099.
func (d *DS3231) ReadTime() (time.Time, error) {
	buf := make([]byte, 7)
	if err := d.dev.Tx([]byte{regDateTime}, buf); err != nil {
		return time.Time{}, fmt.Errorf("rtc: read datetime: %w", err)
	}
	sec := bcdToDec(buf[0] & 0x7F)
	min := bcdToDec(buf[1] & 0x7F)
	hour := bcdToDec(buf[2] & 0x3F) // 24-hour mode assumed
	mday := bcdToDec(buf[4] & 0x3F)
	month := bcdToDec(buf[5] & 0x1F)
	year := 2000 + bcdToDec(buf[6])
	return time.Date(year, time.Month(month), mday, hour, min, sec, 0, time.UTC), nil
}

// WriteTime writes the full datetime block in 24-hour mode. The chip keeps
// the calendar fields as given; timezone is the caller's concern.
func (d *DS3231) WriteTime(t time.Time) error {
	buf := []byte{
		regDateTime,
		decToBCD(t.Second()),
		decToBCD(t.Minute()),
		decToBCD(t.Hour()),
		byte(t.Weekday()) + 1, // chip weekday is 1..7
		decToBCD(t.Day()),
		decToBCD(int(t.Month())),
		decToBCD(t.Year() % 100),
	}
	if err := d.dev.Tx(buf, nil); err != nil {
		return fmt.Errorf("rtc: write datetime: %w", err)
	}
	return nil
}

// ReadAging reads the trim register and decodes two's complement.
func (d *DS3231) ReadAging() (int, error) {
	buf := make([]byte, 1)
	if err := d.dev.Tx([]byte{regAging}, buf); err != nil {
		return 0, fmt.Errorf("rtc: read aging: %w", err)
	}
	v := int(buf[0])
	if v > 127 {
		v -= 256
	}
	return v, nil
}

// WriteAging encodes two's complement into the trim register.
func (d *DS3231) WriteAging(v int) error {
	v = ClampAging(v)
	if err := d.dev.Tx([]byte{regAging, byte(v)}, nil); err != nil {
		return fmt.Errorf("rtc: write aging: %w", err)
	}
	return nil
}

// ReadTemperature reads the die temperature in degrees Celsius.
func (d *DS3231) ReadTemperature() (float64, error) {
	buf := make([]byte, 2)
	if err := d.dev.Tx([]byte{regTemperature}, buf); err != nil {
		return 0, fmt.Errorf("rtc: read temperature: %w", err)
	}
	whole := int(int8(buf[0]))
	frac := float64(buf[1]>>6) * 0.25
	if whole < 0 {
		return float64(whole) - frac, nil
	}
	return float64(whole) + frac, nil
}

// PinPower drives the clock's supply rail from a GPIO pin.
type PinPower struct {
	Pin gpio.PinOut
}

func (p PinPower) PowerOn() error  { return p.Pin.Out(gpio.High) }
func (p PinPower) PowerOff() error { return p.Pin.Out(gpio.Low) }
