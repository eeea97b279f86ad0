package bme280

import (
	"context"
	"fmt"
)

const (
	regChipID    byte = 0xD0
	regSoftReset byte = 0xE0

	chipID       byte = 0x60
	cmdSoftReset byte = 0xB6
)

const (
	identifyAttempts = 5
	// chip id read retry interval and power-on-reset settle time, in ms
	identifyRetryDelay = 1
	startupDelay       = 2
)

// ChipID reads the chip identification register through the device callbacks.
func ChipID(ctx context.Context, dev *Device) (byte, error) {
	buf := make([]byte, 1)
	if err := dev.Bus.Read(ctx, dev.ID, regChipID, buf); err != nil {
		return 0, fmt.Errorf("could not read chip id: %w", err)
	}
	return buf[0], nil
}

// Identify is the default DriverInit. It checks the chip id, retrying a few
// times while the sensor comes out of power-on reset, and soft-resets the
// sensor. Calibration data is left to the driver core.
func Identify(ctx context.Context, dev *Device) error {
	var id byte
	var err error
	for attempt := range identifyAttempts {
		if attempt > 0 {
			dev.Bus.Delay(ctx, identifyRetryDelay)
		}
		id, err = ChipID(ctx, dev)
		if err == nil && id == chipID {
			break
		}
	}
	if err != nil {
		return err
	}
	if id != chipID {
		return fmt.Errorf("%w: unexpected chip id %#x at %#x", ErrDeviceNotFound, id, dev.ID)
	}
	err = dev.Bus.Write(ctx, dev.ID, regSoftReset, []byte{cmdSoftReset})
	if err != nil {
		return fmt.Errorf("could not reset device: %w", err)
	}
	dev.Bus.Delay(ctx, startupDelay)
	return nil
}
