package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/tempsense"
	"github.com/mklimuk/tempsense/busctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const reportSize = 64

// MCP2221 HID commands
const (
	cmdStatus        = 0x10
	cmdI2CWrite      = 0x90
	cmdI2CRead       = 0x91
	cmdI2CGetData    = 0x40
	statusCancelI2C  = 0x10
	respBusy         = 0x01
	respReadError    = 0x41
	respInvalidCount = 127
	// I2C engine state (status byte 8) after an address was not acknowledged
	stateAddrNack = 0x25
)

var ErrCommandFailed = errors.New("command failed")
var ErrNotFound = errors.New("MCP2221 device not found")

// ErrAddrNack is returned when no peripheral acknowledged the address.
var ErrAddrNack = errors.New("address not acknowledged")

var _ tempsense.I2CBus = &MCP2221{}

// MCP2221 is a Microchip MCP2221 USB to I2C bridge. Every call opens the HID
// device, sends one 64 byte report and reads one back.
type MCP2221 struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	I2CState               int    `yaml:"i2c_state"`
	ReadPending            int    `yaml:"read_pending"`
}

func NewMCP2221() *MCP2221 {
	return &MCP2221{
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 50 * time.Millisecond,
	}
}

// Init checks that exactly one bridge is attached.
func (d *MCP2221) Init() error {
	devs := hid.Enumerate(VendorID, ProductID)
	switch len(devs) {
	case 0:
		return ErrNotFound
	case 1:
		return nil
	default:
		return fmt.Errorf("ambiguous device identification: %d bridges attached", len(devs))
	}
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CWrite
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	if d.response[1] == respBusy {
		slog.DebugContext(ctx, "adapter busy", "addr", fmt.Sprintf("%#x", address))
		return tempsense.ErrBusBusy
	}
	// the write command is answered when the transfer starts, the status
	// tells whether the address was acknowledged
	d.resetBuffers()
	d.request[0] = cmdStatus
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("could not check write to %x: %w", address, err)
	}
	return checkWriteStatus(address, bufferToStatus(d.response))
}

func checkWriteStatus(address byte, status *MCP2221Status) error {
	if status.I2CState == stateAddrNack {
		return fmt.Errorf("write to %#x failed: %w: %w", address, ErrAddrNack, tempsense.ErrNoDevice)
	}
	return nil
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CRead
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	d.request[0] = cmdI2CGetData
	resetBuffer(d.response)
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == respReadError {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine")
	}
	if d.response[3] == respInvalidCount || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		I2CState:             int(buffer[8]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

// Release cancels the current I2C transfer and frees the bus.
func (d *MCP2221) Release(ctx context.Context) error {
	_, err := d.ReleaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = statusCancelI2C
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) send(ctx context.Context) error {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) > 1 {
		return fmt.Errorf("ambiguous device identification")
	}
	if len(devs) == 0 {
		return ErrNotFound
	}
	dev, err := devs[0].Open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.WarnContext(ctx, "could not close bridge", "error", err)
		}
	}()
	verbose := busctx.IsVerbose(ctx)
	if verbose {
		slog.DebugContext(ctx, "sending message to adapter", "report", hex.EncodeToString(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	timer := time.NewTimer(d.responseWait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		slog.DebugContext(ctx, "read message from adapter", "report", hex.EncodeToString(d.response))
	}
	if d.response[0] != d.request[0] {
		return fmt.Errorf("%w: response to %#x echoes %#x", ErrCommandFailed, d.request[0], d.response[0])
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}
