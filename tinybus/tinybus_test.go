package tinybus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers"

	"github.com/mklimuk/chirp/snsctx"
)

var _ drivers.I2C = (*fakeI2C)(nil)

type tx struct {
	addr uint16
	w    []byte
	rlen int
}

// Records every transaction and answers reads with resp.
type fakeI2C struct {
	txs  []tx
	resp []byte
	err  error
}

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	f.txs = append(f.txs, tx{addr: addr, w: append([]byte(nil), w...), rlen: len(r)})
	if f.err != nil {
		return f.err
	}
	copy(r, f.resp)
	return nil
}

func TestBus_Transactions(t *testing.T) {
	fake := &fakeI2C{resp: []byte{0x01, 0x2C}}
	bus := New(fake)
	ctx := snsctx.SetVerbose(context.Background(), true)

	require.NoError(t, bus.WriteToAddr(ctx, 0x20, []byte{0x06}))
	r := make([]byte, 2)
	require.NoError(t, bus.WriteReadAddr(ctx, 0x20, []byte{0x00}, r))
	assert.Equal(t, []byte{0x01, 0x2C}, r)
	r = make([]byte, 1)
	require.NoError(t, bus.ReadFromAddr(ctx, 0x21, r))
	assert.Equal(t, byte(0x01), r[0])
	assert.NoError(t, bus.Release(ctx))

	assert.Equal(t, []tx{
		{addr: 0x20, w: []byte{0x06}, rlen: 0},
		{addr: 0x20, w: []byte{0x00}, rlen: 2},
		{addr: 0x21, w: nil, rlen: 1},
	}, fake.txs)
}

func TestBus_Error(t *testing.T) {
	busErr := errors.New("nack")
	bus := New(&fakeI2C{err: busErr})
	err := bus.WriteToAddr(context.Background(), 0x20, []byte{0x06})
	assert.ErrorIs(t, err, busErr)
	assert.Contains(t, err.Error(), "0x20")
}

func TestBus_CancelledContext(t *testing.T) {
	fake := &fakeI2C{}
	bus := New(fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := bus.WriteToAddr(ctx, 0x20, []byte{0x06})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.txs)
}
