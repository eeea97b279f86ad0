//go:build !linux

package i2c

import (
	"errors"

	"github.com/mklimuk/tempsense"
)

var errNoDevfs = errors.New("i2c-dev is only available on linux")

func (d *Devfs) Open(bus int, addr byte) (tempsense.Transport, error) {
	return nil, errNoDevfs
}
