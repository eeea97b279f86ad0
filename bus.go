package tempsense

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// ErrNoDevice is returned when nothing acknowledges at the requested address.
var ErrNoDevice = errors.New("no device at address")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is a bus that addresses the peripheral on every transfer
// (USB bridges, periph buses).
type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// Transport is a byte stream bound to a single peripheral address.
// Read and Write report the number of bytes actually transferred.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// Opener opens bus number bus and binds it to the 7-bit address addr.
type Opener interface {
	Open(bus int, addr byte) (Transport, error)
}

// Prober is implemented by transports that can check whether a peripheral
// acknowledges at the bound address.
type Prober interface {
	Probe() error
}
