package i2c

import (
	"fmt"

	gobot "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/tempsense"
)

var _ tempsense.Opener = &Gobot{}

// Gobot opens connections through a gobot platform adaptor, e.g. the NanoPi
// NEO adaptor. The adaptor must be connected before Open is called.
type Gobot struct {
	Connector gobot.Connector
}

func (g *Gobot) Open(bus int, addr byte) (tempsense.Transport, error) {
	conn, err := g.Connector.GetI2cConnection(int(addr), bus)
	if err != nil {
		return nil, fmt.Errorf("could not get connection to %#x on bus %d: %w", addr, bus, err)
	}
	return &gobotConn{Connection: conn}, nil
}

type gobotConn struct {
	gobot.Connection
}

func (c *gobotConn) Probe() error {
	if _, err := c.ReadByte(); err != nil {
		return fmt.Errorf("%w: %w", tempsense.ErrNoDevice, err)
	}
	return nil
}
