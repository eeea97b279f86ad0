package bme280

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/mklimuk/tempsense"
	"github.com/mklimuk/tempsense/busctx"
)

// State is the lifecycle state of an Adapter.
type State int

const (
	StateUnopened State = iota
	StateOpened
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpened:
		return "opened"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type AdapterOpts struct {
	Primary    byte
	Secondary  byte
	Probe      bool
	DriverInit DriverInit
	Clock      clock.Clock
	Logger     *slog.Logger
}

type AdapterOpt func(*AdapterOpts)

// WithDriverInit sets the routine Init hands the populated device to.
// A nil routine makes Init stop after wiring the device.
func WithDriverInit(fn DriverInit) AdapterOpt {
	return func(o *AdapterOpts) {
		o.DriverInit = fn
	}
}

// WithProbe makes Setup check that the peripheral acknowledges after binding,
// for transports that support it.
func WithProbe(probe bool) AdapterOpt {
	return func(o *AdapterOpts) {
		o.Probe = probe
	}
}

func WithAddresses(primary, secondary byte) AdapterOpt {
	return func(o *AdapterOpts) {
		o.Primary = primary
		o.Secondary = secondary
	}
}

func WithClock(c clock.Clock) AdapterOpt {
	return func(o *AdapterOpts) {
		o.Clock = c
	}
}

func WithLogger(l *slog.Logger) AdapterOpt {
	return func(o *AdapterOpts) {
		o.Logger = l
	}
}

// Adapter owns one bus handle and implements Bus on top of it.
//
// An Adapter is not safe for concurrent use. The handle is plain state with
// no locking, so callers must serialize every call (including the ones the
// driver core makes through Bus) themselves.
type Adapter struct {
	config AdapterOpts

	opener    tempsense.Opener
	transport tempsense.Transport
	bus       int
	addr      byte
	state     State
}

var _ Bus = &Adapter{}

func NewAdapter(opener tempsense.Opener, opts ...AdapterOpt) *Adapter {
	config := AdapterOpts{
		Primary:    AddrPrimary,
		Secondary:  AddrSecondary,
		DriverInit: Identify,
		Clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Adapter{
		config: config,
		opener: opener,
	}
}

// State returns the lifecycle state of the bus handle.
func (a *Adapter) State() State {
	return a.state
}

// Address returns the bound address, or 0 when no handle is held.
func (a *Adapter) Address() byte {
	return a.addr
}

// Setup opens bus and binds addr. A handle held from an earlier Setup is
// closed first. There are no retries; the caller picks the fallback.
func (a *Adapter) Setup(ctx context.Context, bus int, addr byte) error {
	if a.transport != nil {
		if err := a.transport.Close(); err != nil {
			a.logger().Warn("could not close previous bus handle", "bus", a.bus, "error", err)
		}
		a.transport = nil
		a.addr = 0
		a.state = StateClosed
	}
	t, err := a.opener.Open(bus, addr)
	if err != nil {
		return fmt.Errorf("%w: could not open bus %d at %#x: %w", ErrCommFail, bus, addr, err)
	}
	if a.config.Probe {
		if p, ok := t.(tempsense.Prober); ok {
			if err := p.Probe(); err != nil {
				_ = t.Close()
				return fmt.Errorf("%w: no answer at %#x on bus %d: %w", ErrCommFail, addr, bus, err)
			}
		}
	}
	a.transport = t
	a.bus = bus
	a.addr = addr
	a.state = StateOpened
	a.logger().DebugContext(ctx, "bus opened", "bus", bus, "addr", fmt.Sprintf("%#x", addr))
	return nil
}

// Read selects register reg with a one byte write and reads len(buf) bytes
// into buf. Both transfers must complete in full. id is unused; the adapter
// talks to the address bound by Setup.
func (a *Adapter) Read(ctx context.Context, id byte, reg byte, buf []byte) error {
	t, err := a.bound(ctx)
	if err != nil {
		return err
	}
	n, err := t.Write([]byte{reg})
	if err != nil {
		return fmt.Errorf("%w: could not select register %#x: %w", ErrCommFail, reg, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: could not select register %#x: short write %d of 1", ErrCommFail, reg, n)
	}
	n, err = t.Read(buf)
	if err != nil {
		return fmt.Errorf("%w: could not read register %#x: %w", ErrCommFail, reg, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: could not read register %#x: short read %d of %d", ErrCommFail, reg, n, len(buf))
	}
	a.trace(ctx, "read", reg, buf)
	return nil
}

// Write sends reg followed by buf as a single transfer of len(buf)+1 bytes.
func (a *Adapter) Write(ctx context.Context, id byte, reg byte, buf []byte) error {
	t, err := a.bound(ctx)
	if err != nil {
		return err
	}
	frame := make([]byte, len(buf)+1)
	frame[0] = reg
	copy(frame[1:], buf)
	n, err := t.Write(frame)
	if err != nil {
		return fmt.Errorf("%w: could not write register %#x: %w", ErrCommFail, reg, err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: could not write register %#x: short write %d of %d", ErrCommFail, reg, n, len(frame))
	}
	a.trace(ctx, "write", reg, buf)
	return nil
}

// Delay blocks for ms milliseconds or until ctx is done.
func (a *Adapter) Delay(ctx context.Context, ms uint32) {
	d := time.Duration(ms/1000)*time.Second + time.Duration(ms%1000)*time.Millisecond
	timer := a.config.Clock.Timer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Init binds the sensor at the primary address, falling back to the
// secondary one, wires dev to the adapter and runs the driver init.
// The driver init result is returned as is.
func (a *Adapter) Init(ctx context.Context, bus int, dev *Device) error {
	if dev == nil {
		return errors.New("bme280: nil device")
	}
	addr := a.config.Primary
	errPrim := a.Setup(ctx, bus, addr)
	if errPrim != nil {
		a.logger().DebugContext(ctx, "primary address failed, trying secondary",
			"bus", bus, "addr", fmt.Sprintf("%#x", a.config.Secondary), "error", errPrim)
		addr = a.config.Secondary
		errSec := a.Setup(ctx, bus, addr)
		if errSec != nil {
			return fmt.Errorf("%w: no sensor on bus %d: %w", ErrCommFail, bus, multierr.Append(errPrim, errSec))
		}
	}
	dev.ID = addr
	dev.Intf = IntfI2C
	dev.Bus = a
	if a.config.DriverInit == nil {
		return nil
	}
	return a.config.DriverInit(ctx, dev)
}

// Close releases the bus handle and returns the transport's close error
// unchanged.
func (a *Adapter) Close() error {
	if a.transport == nil {
		return ErrNotOpen
	}
	err := a.transport.Close()
	a.transport = nil
	a.addr = 0
	a.state = StateClosed
	return err
}

func (a *Adapter) bound(ctx context.Context) (tempsense.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCommFail, err)
	}
	if a.state != StateOpened {
		return nil, fmt.Errorf("%w: %w", ErrCommFail, ErrNotOpen)
	}
	return a.transport, nil
}

func (a *Adapter) trace(ctx context.Context, op string, reg byte, data []byte) {
	if !busctx.IsVerbose(ctx) {
		return
	}
	args := []any{"op", op, "addr", fmt.Sprintf("%#x", a.addr), "reg", fmt.Sprintf("%#x", reg), "data", hex.EncodeToString(data)}
	if name := busctx.DeviceName(ctx); name != "" {
		args = append(args, "device", name)
	}
	a.logger().DebugContext(ctx, "bus transfer", args...)
}

func (a *Adapter) logger() *slog.Logger {
	if a.config.Logger != nil {
		return a.config.Logger
	}
	return slog.Default()
}
