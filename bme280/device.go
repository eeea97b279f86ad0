// Package bme280 binds a Bosch BME280 driver core to an I2C bus.
//
// The driver core owns the measurement state machine and compensation. This
// package only opens the bus, selects one of the two sensor addresses and
// hands the core a Bus with three register-level callbacks:
//
//	a := bme280.NewAdapter(&i2c.Devfs{})
//	var dev bme280.Device
//	if err := a.Init(ctx, 1, &dev); err != nil { ... }
//	defer a.Close()
package bme280

import (
	"context"
	"errors"
	"fmt"
)

// I2C addresses of the sensor, selected by the level of the SDO pin.
const (
	AddrPrimary   byte = 0x76
	AddrSecondary byte = 0x77
)

var (
	// ErrCommFail covers every open, bind and transfer failure.
	ErrCommFail = errors.New("bme280: communication failure")
	// ErrNotOpen is returned for bus operations before Setup or after Close.
	ErrNotOpen = errors.New("bme280: bus not open")
	// ErrDeviceNotFound is returned when the chip id does not match a BME280.
	ErrDeviceNotFound = errors.New("bme280: device not found")
)

// Intf tags the physical interface the driver core talks through.
type Intf uint8

const (
	IntfSPI Intf = iota
	IntfI2C
)

func (i Intf) String() string {
	switch i {
	case IntfSPI:
		return "spi"
	case IntfI2C:
		return "i2c"
	default:
		return fmt.Sprintf("Intf(%d)", uint8(i))
	}
}

// Bus is the register-level contract the driver core calls into.
type Bus interface {
	// Read fills buf starting at register reg.
	Read(ctx context.Context, id byte, reg byte, buf []byte) error
	// Write writes buf starting at register reg.
	Write(ctx context.Context, id byte, reg byte, buf []byte) error
	// Delay blocks for ms milliseconds.
	Delay(ctx context.Context, ms uint32)
}

// Device is the handle shared with the driver core. Init fills it in;
// everything after that belongs to the core.
type Device struct {
	ID   byte
	Intf Intf
	Bus  Bus
}

// DriverInit is the driver core's initialization entry point.
type DriverInit func(ctx context.Context, dev *Device) error

// Status mirrors the int8 result codes of the vendor driver.
type Status int8

const (
	StatusOK          Status = 0
	StatusDevNotFound Status = -2
	StatusCommFail    Status = -4
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusDevNotFound:
		return "DEV_NOT_FOUND"
	case StatusCommFail:
		return "COMM_FAIL"
	default:
		return fmt.Sprintf("Status(%d)", int8(s))
	}
}

// StatusOf maps an error returned by this package to a vendor result code.
// Errors this package does not know about map to StatusCommFail.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrDeviceNotFound):
		return StatusDevNotFound
	default:
		return StatusCommFail
	}
}
