package i2c

import (
	"fmt"
	"log/slog"
	"strconv"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/tempsense"
)

var _ tempsense.Opener = &Periph{}

// Periph opens buses registered by the periph.io host drivers.
type Periph struct {
	// Speed sets the bus clock when non-zero.
	Speed physic.Frequency
}

func (p *Periph) Open(bus int, addr byte) (tempsense.Transport, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("periph driver loaded", "driver", driver.String())
	}
	b, err := i2creg.Open(strconv.Itoa(bus))
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus %d: %w", bus, err)
	}
	if p.Speed != 0 {
		if err := b.SetSpeed(p.Speed); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("could not set bus %d speed to %s: %w", bus, p.Speed, err)
		}
	}
	return &periphConn{bus: b, dev: &i2c.Dev{Bus: b, Addr: uint16(addr)}}, nil
}

type periphConn struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

func (c *periphConn) Write(p []byte) (int, error) {
	return c.dev.Write(p)
}

func (c *periphConn) Read(p []byte) (int, error) {
	if err := c.dev.Tx(nil, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *periphConn) Probe() error {
	if err := c.dev.Tx(nil, make([]byte, 1)); err != nil {
		return fmt.Errorf("%w: %w", tempsense.ErrNoDevice, err)
	}
	return nil
}

func (c *periphConn) Close() error {
	return c.bus.Close()
}
