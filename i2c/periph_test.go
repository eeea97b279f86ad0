package i2c

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/mklimuk/tempsense"
)

func playbackConn(ops ...i2ctest.IO) (*periphConn, *i2ctest.Playback) {
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}
	return &periphConn{bus: bus, dev: &i2c.Dev{Bus: bus, Addr: 0x76}}, bus
}

func TestPeriphConn_Transfers(t *testing.T) {
	conn, bus := playbackConn(
		i2ctest.IO{Addr: 0x76, W: []byte{0xF4, 0x27}},
		i2ctest.IO{Addr: 0x76, W: []byte{0xFA}},
		i2ctest.IO{Addr: 0x76, R: []byte{0x80, 0x01, 0x02}},
	)

	n, err := conn.Write([]byte{0xF4, 0x27})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = conn.Write([]byte{0xFA})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	buf := make([]byte, 3)
	n, err = conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{0x80, 0x01, 0x02}, buf)

	assert.Empty(t, bus.Ops)
	assert.NoError(t, conn.Close())
}

func TestPeriphConn_ReadFailure(t *testing.T) {
	conn, _ := playbackConn()
	n, err := conn.Read(make([]byte, 2))
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestPeriphConn_Probe(t *testing.T) {
	conn, bus := playbackConn(i2ctest.IO{Addr: 0x76, R: []byte{0x60}})
	require.NoError(t, conn.Probe())
	assert.Empty(t, bus.Ops)

	// nothing left to answer, the bus reports the address as not acknowledged
	assert.ErrorIs(t, conn.Probe(), tempsense.ErrNoDevice)
}
