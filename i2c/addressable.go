package i2c

import (
	"context"
	"fmt"

	"github.com/mklimuk/tempsense"
)

var _ tempsense.Opener = &Addressable{}

// Addressable binds a bus that addresses the peripheral on every transfer,
// such as an MCP2221 bridge, to a single address. Bridges expose one bus so
// the bus number passed to Open is ignored.
type Addressable struct {
	Bus tempsense.I2CBus
	// Context is used for every transfer; defaults to context.Background().
	Context context.Context
}

func (a *Addressable) Open(bus int, addr byte) (tempsense.Transport, error) {
	if a.Bus == nil {
		return nil, fmt.Errorf("no bus to bind %#x on", addr)
	}
	ctx := a.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &addressableConn{ctx: ctx, bus: a.Bus, addr: addr}, nil
}

type addressableConn struct {
	ctx  context.Context
	bus  tempsense.I2CBus
	addr byte
}

func (c *addressableConn) Read(p []byte) (int, error) {
	if err := c.bus.ReadFromAddr(c.ctx, c.addr, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *addressableConn) Write(p []byte) (int, error) {
	if err := c.bus.WriteToAddr(c.ctx, c.addr, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Probe reads one byte; only an acknowledging peripheral completes it.
func (c *addressableConn) Probe() error {
	if err := c.bus.ReadFromAddr(c.ctx, c.addr, make([]byte, 1)); err != nil {
		return fmt.Errorf("%w: %w", tempsense.ErrNoDevice, err)
	}
	return nil
}

func (c *addressableConn) Close() error {
	return c.bus.Release(c.ctx)
}
