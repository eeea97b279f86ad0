package i2c

import (
	"fmt"
	"sync"

	d2r2 "github.com/d2r2/go-i2c"
	logger "github.com/d2r2/go-logger"

	"github.com/mklimuk/tempsense"
)

var _ tempsense.Opener = &D2R2{}

var quietD2R2 sync.Once

// D2R2 opens i2c-dev buses through github.com/d2r2/go-i2c.
type D2R2 struct {
	// Debug keeps the library's own per-transfer logging on.
	Debug bool
}

func (d *D2R2) Open(bus int, addr byte) (tempsense.Transport, error) {
	if !d.Debug {
		quietD2R2.Do(func() {
			_ = logger.ChangePackageLogLevel("i2c", logger.InfoLevel)
		})
	}
	c, err := d2r2.NewI2C(addr, bus)
	if err != nil {
		return nil, fmt.Errorf("could not open bus %d at %#x: %w", bus, addr, err)
	}
	return &d2r2Conn{c: c}, nil
}

type d2r2Conn struct {
	c *d2r2.I2C
}

func (c *d2r2Conn) Read(p []byte) (int, error) {
	return c.c.ReadBytes(p)
}

func (c *d2r2Conn) Write(p []byte) (int, error) {
	return c.c.WriteBytes(p)
}

func (c *d2r2Conn) Probe() error {
	n, err := c.c.ReadBytes(make([]byte, 1))
	if err != nil {
		return fmt.Errorf("%w: %w", tempsense.ErrNoDevice, err)
	}
	if n != 1 {
		return tempsense.ErrNoDevice
	}
	return nil
}

func (c *d2r2Conn) Close() error {
	return c.c.Close()
}
