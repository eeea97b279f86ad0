package bme280

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/tempsense"
	"github.com/mklimuk/tempsense/busctx"
	"github.com/mklimuk/tempsense/i2c"
)

// MockTransport is a mock implementation of tempsense.Transport using testify/mock
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Write(p []byte) (int, error) {
	args := m.Called(append([]byte(nil), p...))
	return args.Int(0), args.Error(1)
}

func (m *MockTransport) Read(p []byte) (int, error) {
	args := m.Called(len(p))
	if data, ok := args.Get(0).([]byte); ok {
		copy(p, data)
	}
	return args.Int(1), args.Error(2)
}

func (m *MockTransport) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockProbingTransport struct {
	MockTransport
}

func (m *MockProbingTransport) Probe() error {
	args := m.Called()
	return args.Error(0)
}

type MockOpener struct {
	mock.Mock
}

func (m *MockOpener) Open(bus int, addr byte) (tempsense.Transport, error) {
	args := m.Called(bus, addr)
	t, _ := args.Get(0).(tempsense.Transport)
	return t, args.Error(1)
}

func openedAdapter(t *testing.T, opts ...AdapterOpt) (*Adapter, *MockTransport) {
	t.Helper()
	trans := new(MockTransport)
	opener := new(MockOpener)
	opener.On("Open", 1, AddrPrimary).Return(trans, nil).Once()
	a := NewAdapter(opener, opts...)
	require.NoError(t, a.Setup(context.Background(), 1, AddrPrimary))
	require.Equal(t, StateOpened, a.State())
	return a, trans
}

func TestAdapter_WriteFrame(t *testing.T) {
	a, trans := openedAdapter(t)
	trans.On("Write", []byte{0xF4, 0x27}).Return(2, nil).Once()

	err := a.Write(context.Background(), AddrPrimary, 0xF4, []byte{0x27})
	assert.NoError(t, err)
	trans.AssertExpectations(t)
	trans.AssertNumberOfCalls(t, "Write", 1)
}

func TestAdapter_WriteFrameLength(t *testing.T) {
	for _, length := range []int{0, 1, 2, 8, 32} {
		t.Run(fmt.Sprintf("len=%d", length), func(t *testing.T) {
			a, trans := openedAdapter(t)
			payload := make([]byte, length)
			for i := range payload {
				payload[i] = byte(i + 1)
			}
			expected := append([]byte{0xE0}, payload...)
			trans.On("Write", expected).Return(length+1, nil).Once()

			assert.NoError(t, a.Write(context.Background(), 0, 0xE0, payload))
			trans.AssertExpectations(t)
		})
	}
}

func TestAdapter_Read(t *testing.T) {
	a, trans := openedAdapter(t)
	trans.On("Write", []byte{0x88}).Return(1, nil).Once()
	trans.On("Read", 4).Return([]byte{0x01, 0x02, 0x03, 0x04}, 4, nil).Once()

	buf := make([]byte, 4)
	err := a.Read(context.Background(), AddrPrimary, 0x88, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf)
	trans.AssertExpectations(t)
	trans.AssertNumberOfCalls(t, "Write", 1)
	trans.AssertNumberOfCalls(t, "Read", 1)
}

func TestAdapter_ReadTrace(t *testing.T) {
	a, trans := openedAdapter(t)
	trans.On("Write", []byte{0xD0}).Return(1, nil).Once()
	trans.On("Read", 1).Return([]byte{0x60}, 1, nil).Once()

	ctx := busctx.SetDeviceName(busctx.SetVerbose(context.Background(), true), "test")
	buf := make([]byte, 1)
	require.NoError(t, a.Read(ctx, 0, 0xD0, buf))
	assert.Equal(t, byte(0x60), buf[0])
}

func TestAdapter_TransferFailures(t *testing.T) {
	ioErr := errors.New("remote I/O error")
	tests := []struct {
		name  string
		setup func(trans *MockTransport)
		call  func(a *Adapter) error
	}{
		{
			name: "short register select",
			setup: func(trans *MockTransport) {
				trans.On("Write", []byte{0xD0}).Return(0, nil).Once()
			},
			call: func(a *Adapter) error { return a.Read(context.Background(), 0, 0xD0, make([]byte, 1)) },
		},
		{
			name: "register select error",
			setup: func(trans *MockTransport) {
				trans.On("Write", []byte{0xD0}).Return(0, ioErr).Once()
			},
			call: func(a *Adapter) error { return a.Read(context.Background(), 0, 0xD0, make([]byte, 1)) },
		},
		{
			name: "short read",
			setup: func(trans *MockTransport) {
				trans.On("Write", []byte{0x88}).Return(1, nil).Once()
				trans.On("Read", 26).Return(nil, 25, nil).Once()
			},
			call: func(a *Adapter) error { return a.Read(context.Background(), 0, 0x88, make([]byte, 26)) },
		},
		{
			name: "read error",
			setup: func(trans *MockTransport) {
				trans.On("Write", []byte{0x88}).Return(1, nil).Once()
				trans.On("Read", 2).Return(nil, 0, ioErr).Once()
			},
			call: func(a *Adapter) error { return a.Read(context.Background(), 0, 0x88, make([]byte, 2)) },
		},
		{
			name: "short write",
			setup: func(trans *MockTransport) {
				trans.On("Write", []byte{0xF4, 0x27}).Return(1, nil).Once()
			},
			call: func(a *Adapter) error { return a.Write(context.Background(), 0, 0xF4, []byte{0x27}) },
		},
		{
			name: "write error",
			setup: func(trans *MockTransport) {
				trans.On("Write", []byte{0xF4, 0x27}).Return(0, ioErr).Once()
			},
			call: func(a *Adapter) error { return a.Write(context.Background(), 0, 0xF4, []byte{0x27}) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, trans := openedAdapter(t)
			tt.setup(trans)
			err := tt.call(a)
			assert.ErrorIs(t, err, ErrCommFail)
			assert.Equal(t, StatusCommFail, StatusOf(err))
			trans.AssertExpectations(t)
		})
	}
}

func TestAdapter_RegisterSelectFailureSkipsRead(t *testing.T) {
	a, trans := openedAdapter(t)
	trans.On("Write", []byte{0xD0}).Return(0, errors.New("nack")).Once()

	err := a.Read(context.Background(), 0, 0xD0, make([]byte, 1))
	assert.ErrorIs(t, err, ErrCommFail)
	trans.AssertNotCalled(t, "Read", mock.Anything)
}

func TestAdapter_NotOpen(t *testing.T) {
	a := NewAdapter(new(MockOpener))
	assert.Equal(t, StateUnopened, a.State())

	err := a.Read(context.Background(), 0, 0xD0, make([]byte, 1))
	assert.ErrorIs(t, err, ErrCommFail)
	assert.ErrorIs(t, err, ErrNotOpen)
	err = a.Write(context.Background(), 0, 0xF4, []byte{0x27})
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, a.Close(), ErrNotOpen)
}

func TestAdapter_Close(t *testing.T) {
	a, trans := openedAdapter(t)
	trans.On("Close").Return(nil).Once()
	require.NoError(t, a.Close())
	assert.Equal(t, StateClosed, a.State())
	assert.Zero(t, a.Address())

	err := a.Write(context.Background(), 0, 0xF4, []byte{0x27})
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, a.Close(), ErrNotOpen)
	trans.AssertExpectations(t)
}

func TestAdapter_ClosePropagatesOSError(t *testing.T) {
	a, trans := openedAdapter(t)
	trans.On("Close").Return(os.ErrClosed).Once()

	err := a.Close()
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NotErrorIs(t, err, ErrCommFail)
	assert.Equal(t, StateClosed, a.State())
}

func TestAdapter_CancelledContext(t *testing.T) {
	a, trans := openedAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Read(ctx, 0, 0xD0, make([]byte, 1))
	assert.ErrorIs(t, err, ErrCommFail)
	assert.ErrorIs(t, err, context.Canceled)
	trans.AssertNotCalled(t, "Write", mock.Anything)
}

func TestAdapter_SetupOpenFailure(t *testing.T) {
	opener := new(MockOpener)
	opener.On("Open", 3, AddrPrimary).Return(nil, os.ErrNotExist).Once()
	a := NewAdapter(opener)

	err := a.Setup(context.Background(), 3, AddrPrimary)
	assert.ErrorIs(t, err, ErrCommFail)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, StateUnopened, a.State())
	opener.AssertExpectations(t)
}

func TestAdapter_SetupProbeFailureClosesHandle(t *testing.T) {
	trans := new(MockProbingTransport)
	trans.On("Probe").Return(tempsense.ErrNoDevice).Once()
	trans.On("Close").Return(nil).Once()
	opener := new(MockOpener)
	opener.On("Open", 1, AddrPrimary).Return(trans, nil).Once()
	a := NewAdapter(opener, WithProbe(true))

	err := a.Setup(context.Background(), 1, AddrPrimary)
	assert.ErrorIs(t, err, ErrCommFail)
	assert.ErrorIs(t, err, tempsense.ErrNoDevice)
	assert.Equal(t, StateUnopened, a.State())
	trans.AssertExpectations(t)
}

func TestAdapter_SetupWithoutProbeIgnoresProber(t *testing.T) {
	trans := new(MockProbingTransport)
	opener := new(MockOpener)
	opener.On("Open", 1, AddrPrimary).Return(trans, nil).Once()
	a := NewAdapter(opener)

	require.NoError(t, a.Setup(context.Background(), 1, AddrPrimary))
	trans.AssertNotCalled(t, "Probe")
}

func TestAdapter_SetupReplacesHandle(t *testing.T) {
	first := new(MockTransport)
	first.On("Close").Return(nil).Once()
	second := new(MockTransport)
	opener := new(MockOpener)
	opener.On("Open", 1, AddrPrimary).Return(first, nil).Once()
	opener.On("Open", 1, AddrSecondary).Return(second, nil).Once()
	a := NewAdapter(opener)

	require.NoError(t, a.Setup(context.Background(), 1, AddrPrimary))
	require.NoError(t, a.Setup(context.Background(), 1, AddrSecondary))
	assert.Equal(t, AddrSecondary, a.Address())
	first.AssertExpectations(t)
}

func TestAdapter_FailedResetupClearsAddress(t *testing.T) {
	first := new(MockTransport)
	first.On("Close").Return(nil).Once()
	opener := new(MockOpener)
	opener.On("Open", 1, AddrPrimary).Return(first, nil).Once()
	opener.On("Open", 1, AddrSecondary).Return(nil, errors.New("busy")).Once()
	a := NewAdapter(opener)

	require.NoError(t, a.Setup(context.Background(), 1, AddrPrimary))
	err := a.Setup(context.Background(), 1, AddrSecondary)
	assert.ErrorIs(t, err, ErrCommFail)
	assert.Equal(t, StateClosed, a.State())
	assert.Zero(t, a.Address())
	first.AssertExpectations(t)
}

func TestAdapter_InitPrimary(t *testing.T) {
	trans := new(MockTransport)
	opener := new(MockOpener)
	opener.On("Open", 1, AddrPrimary).Return(trans, nil).Once()
	driverErr := errors.New("calibration read failed")
	var got *Device
	a := NewAdapter(opener, WithDriverInit(func(ctx context.Context, dev *Device) error {
		got = dev
		return driverErr
	}))

	var dev Device
	err := a.Init(context.Background(), 1, &dev)
	assert.Same(t, driverErr, err, "driver init result must be returned unchanged")
	assert.Same(t, &dev, got)
	assert.Equal(t, AddrPrimary, dev.ID)
	assert.Equal(t, IntfI2C, dev.Intf)
	assert.Same(t, a, dev.Bus)
	opener.AssertExpectations(t)
	opener.AssertNotCalled(t, "Open", 1, AddrSecondary)
}

func TestAdapter_InitFallsBackToSecondary(t *testing.T) {
	sim := i2c.NewSim(AddrSecondary)
	sim.SetRegister(regChipID, chipID)
	a := NewAdapter(sim, WithProbe(true))

	var dev Device
	require.NoError(t, a.Init(context.Background(), 1, &dev))
	assert.Equal(t, AddrSecondary, dev.ID)
	assert.Equal(t, AddrSecondary, a.Address())
	assert.Equal(t, []byte{AddrPrimary, AddrSecondary}, sim.Opens())
	assert.Equal(t, [][]byte{{regChipID}, {regSoftReset, cmdSoftReset}}, sim.Frames())
	require.NoError(t, a.Close())
}

func TestAdapter_InitBothAddressesFail(t *testing.T) {
	opener := new(MockOpener)
	opener.On("Open", 1, AddrPrimary).Return(nil, errors.New("device or resource busy")).Once()
	opener.On("Open", 1, AddrSecondary).Return(nil, errors.New("device or resource busy")).Once()
	called := false
	a := NewAdapter(opener, WithDriverInit(func(ctx context.Context, dev *Device) error {
		called = true
		return nil
	}))

	var dev Device
	err := a.Init(context.Background(), 1, &dev)
	assert.ErrorIs(t, err, ErrCommFail)
	assert.Equal(t, StatusCommFail, StatusOf(err))
	assert.False(t, called, "driver init must not run without a bound bus")
	assert.Nil(t, dev.Bus)
	opener.AssertExpectations(t)
}

func TestAdapter_InitCustomAddresses(t *testing.T) {
	sim := i2c.NewSim(0x40)
	a := NewAdapter(sim, WithProbe(true), WithAddresses(0x40, 0x41), WithDriverInit(nil))

	var dev Device
	require.NoError(t, a.Init(context.Background(), 0, &dev))
	assert.Equal(t, byte(0x40), dev.ID)
	assert.Equal(t, []byte{0x40}, sim.Opens())
}

func TestAdapter_InitNilDevice(t *testing.T) {
	a := NewAdapter(new(MockOpener))
	assert.Error(t, a.Init(context.Background(), 1, nil))
}

func TestAdapter_Delay(t *testing.T) {
	tests := []struct {
		name string
		ms   uint32
	}{
		{name: "zero", ms: 0},
		{name: "short", ms: 5},
		{name: "medium", ms: 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(new(MockOpener))
			start := time.Now()
			a.Delay(context.Background(), tt.ms)
			assert.GreaterOrEqual(t, time.Since(start), time.Duration(tt.ms)*time.Millisecond)
		})
	}
}

func TestAdapter_DelaySecondsAndMillis(t *testing.T) {
	mc := clock.NewMock()
	a := NewAdapter(new(MockOpener), WithClock(mc))
	start := mc.Now()
	done := make(chan struct{})
	go func() {
		a.Delay(context.Background(), 1500)
		close(done)
	}()

	fired := false
	for range 400 {
		select {
		case <-done:
			fired = true
		default:
			mc.Add(10 * time.Millisecond)
		}
		if fired {
			break
		}
	}
	require.True(t, fired, "delay never returned")
	assert.GreaterOrEqual(t, mc.Now().Sub(start), 1500*time.Millisecond)
}

func TestAdapter_DelayCancelled(t *testing.T) {
	a := NewAdapter(new(MockOpener), WithClock(clock.NewMock()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	// the mock clock never advances, only the context can end the delay
	a.Delay(ctx, 60_000)
	assert.Less(t, time.Since(start), 5*time.Second)
}
