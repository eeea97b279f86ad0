// Package i2c provides tempsense.Opener implementations for the buses a
// sensor can hang off: the Linux i2c-dev interface (directly or through
// d2r2/go-i2c), periph.io and gobot host drivers, buses that address the
// peripheral on every transfer (USB bridges) and an in-memory simulator.
package i2c
