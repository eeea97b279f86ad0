package i2c

import (
	"fmt"
	"os"
	"sync"

	"github.com/mklimuk/tempsense"
)

var _ tempsense.Opener = &Sim{}

// Sim is an in-memory peripheral with a 256 byte register file and an
// auto-incrementing register pointer, the access model of most I2C sensors.
// It answers at a single address on any bus and records every frame written
// to it. It can be used to exercise drivers without hardware.
//
//	sim := NewSim(0x77)
//	sim.SetRegister(0xD0, 0x60)
type Sim struct {
	mx     sync.Mutex
	addr   byte
	regs   [256]byte
	ptr    byte
	frames [][]byte
	opens  []byte
}

func NewSim(addr byte) *Sim {
	return &Sim{addr: addr}
}

func (s *Sim) SetRegister(reg, value byte) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.regs[reg] = value
}

func (s *Sim) Register(reg byte) byte {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.regs[reg]
}

// Frames returns copies of the frames written so far, in order.
func (s *Sim) Frames() [][]byte {
	s.mx.Lock()
	defer s.mx.Unlock()
	res := make([][]byte, len(s.frames))
	for i, f := range s.frames {
		res[i] = append([]byte(nil), f...)
	}
	return res
}

// Opens returns the addresses Open was called with, in order.
func (s *Sim) Opens() []byte {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]byte(nil), s.opens...)
}

// Open always binds, like the i2c-dev ioctl does; transfers to an address the
// simulator does not answer at fail.
func (s *Sim) Open(bus int, addr byte) (tempsense.Transport, error) {
	s.mx.Lock()
	s.opens = append(s.opens, addr)
	s.mx.Unlock()
	return &simConn{sim: s, addr: addr}, nil
}

type simConn struct {
	sim    *Sim
	addr   byte
	closed bool
}

func (c *simConn) check() error {
	if c.closed {
		return os.ErrClosed
	}
	if c.addr != c.sim.addr {
		return fmt.Errorf("%w: %#x", tempsense.ErrNoDevice, c.addr)
	}
	return nil
}

func (c *simConn) Write(p []byte) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	s := c.sim
	s.mx.Lock()
	defer s.mx.Unlock()
	s.frames = append(s.frames, append([]byte(nil), p...))
	if len(p) == 0 {
		return 0, nil
	}
	s.ptr = p[0]
	for _, b := range p[1:] {
		s.regs[s.ptr] = b
		s.ptr++
	}
	return len(p), nil
}

func (c *simConn) Read(p []byte) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	s := c.sim
	s.mx.Lock()
	defer s.mx.Unlock()
	for i := range p {
		p[i] = s.regs[s.ptr]
		s.ptr++
	}
	return len(p), nil
}

func (c *simConn) Probe() error {
	return c.check()
}

func (c *simConn) Close() error {
	if c.closed {
		return os.ErrClosed
	}
	c.closed = true
	return nil
}
