package gobotbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/chirp/soil"
)

// fakeConn implements only what Bus uses; other methods panic via the nil embed.
type fakeConn struct {
	i2c.Connection
	writes [][]byte
	blocks []byte
	resp   []byte
	err    error
	closed bool
}

func (c *fakeConn) Write(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.writes = append(c.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (c *fakeConn) Read(b []byte) (int, error) {
	return copy(b, c.resp), c.err
}

func (c *fakeConn) ReadBlockData(reg uint8, b []byte) error {
	if c.err != nil {
		return c.err
	}
	c.blocks = append(c.blocks, reg)
	copy(b, c.resp)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeConnector struct {
	i2c.Connector
	conns map[int]*fakeConn
	buses []int
}

func (f *fakeConnector) GetI2cConnection(address int, busNr int) (i2c.Connection, error) {
	f.buses = append(f.buses, busNr)
	conn, ok := f.conns[address]
	if !ok {
		return nil, errors.New("no such device")
	}
	return conn, nil
}

func (f *fakeConnector) DefaultI2cBus() int {
	return 1
}

func TestBus_ChirpOperations(t *testing.T) {
	conn := &fakeConn{resp: []byte{0x01, 0x2C}}
	connector := &fakeConnector{conns: map[int]*fakeConn{0x20: conn}}
	bus := New(connector, -1)
	ctx := context.Background()
	s := soil.NewChirp(bus)

	require.NoError(t, s.TriggerMeasurement(ctx))
	capacitance, err := s.ReadCapacitance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(300), capacitance)

	assert.Equal(t, [][]byte{{0x03}}, conn.writes)
	assert.Equal(t, []byte{0x00}, conn.blocks)
	// connection is opened once on the default bus and reused
	assert.Equal(t, []int{1}, connector.buses)

	require.NoError(t, bus.Close())
	assert.True(t, conn.closed)
}

func TestBus_MissingDevice(t *testing.T) {
	bus := New(&fakeConnector{conns: map[int]*fakeConn{}}, 2)
	err := bus.WriteToAddr(context.Background(), 0x21, []byte{0x06})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bus 2")
}

func TestBus_ErrorsPropagate(t *testing.T) {
	busErr := errors.New("remote I/O error")
	conn := &fakeConn{err: busErr}
	bus := New(&fakeConnector{conns: map[int]*fakeConn{0x20: conn}}, 0)
	s := soil.NewChirp(bus)

	_, err := s.ReadVersion(context.Background())
	assert.ErrorIs(t, err, busErr)
	err = s.Reset(context.Background())
	assert.ErrorIs(t, err, busErr)
}

func TestBus_MultiByteWriteRead(t *testing.T) {
	conn := &fakeConn{resp: []byte{0xAA}}
	bus := New(&fakeConnector{conns: map[int]*fakeConn{0x20: conn}}, 0)
	r := make([]byte, 1)
	require.NoError(t, bus.WriteReadAddr(context.Background(), 0x20, []byte{0x01, 0x02}, r))
	assert.Equal(t, byte(0xAA), r[0])
	assert.Equal(t, [][]byte{{0x01, 0x02}}, conn.writes)
	assert.Empty(t, conn.blocks)
}
