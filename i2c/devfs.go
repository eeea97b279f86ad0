package i2c

import (
	"fmt"

	"github.com/mklimuk/tempsense"
)

// DefaultDevicePath is the i2c-dev node format for a bus number.
const DefaultDevicePath = "/dev/i2c-%d"

var _ tempsense.Opener = &Devfs{}

// Devfs talks to the kernel i2c-dev character device. The i2c-dev module
// must be loaded.
type Devfs struct {
	// PathFormat overrides DefaultDevicePath.
	PathFormat string
}

func (d *Devfs) path(bus int) string {
	format := d.PathFormat
	if format == "" {
		format = DefaultDevicePath
	}
	return fmt.Sprintf(format, bus)
}
