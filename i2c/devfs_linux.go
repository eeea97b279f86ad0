//go:build linux

package i2c

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/mklimuk/tempsense"
)

// i2c-dev ioctl selecting the peripheral address for subsequent read/write
const i2cSlave = 0x0703

// Open opens the bus device node read/write and binds addr to it.
func (d *Devfs) Open(bus int, addr byte) (tempsense.Transport, error) {
	path := d.path(bus)
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	if err := unix.IoctlSetInt(fd, i2cSlave, int(addr)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("could not bind address %#x on %s: %w", addr, path, err)
	}
	return &devfsConn{fd: fd, path: path}, nil
}

type devfsConn struct {
	fd   int
	path string
}

func (c *devfsConn) Read(p []byte) (int, error) {
	if c.fd == -1 {
		return 0, unix.EBADF
	}
	n, err := unix.Read(c.fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *devfsConn) Write(p []byte) (int, error) {
	if c.fd == -1 {
		return 0, unix.EBADF
	}
	n, err := unix.Write(c.fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Probe reads a single byte, the same check i2cdetect -r performs.
func (c *devfsConn) Probe() error {
	n, err := c.Read(make([]byte, 1))
	if err != nil {
		return fmt.Errorf("%w: %w", tempsense.ErrNoDevice, err)
	}
	if n != 1 {
		return tempsense.ErrNoDevice
	}
	return nil
}

func (c *devfsConn) Close() error {
	if c.fd == -1 {
		return unix.EBADF
	}
	if err := unix.Close(c.fd); err != nil {
		return err
	}
	c.fd = -1
	return nil
}
