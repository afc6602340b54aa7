package i2c

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/chirp/soil"
)

func TestGenericBus_ChirpCycle(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x20, W: []byte{0x06}},
			{Addr: 0x20, W: []byte{0x07}, R: []byte{0x26}},
			{Addr: 0x20, W: []byte{0x03}},
			{Addr: 0x20, W: []byte{0x09}, R: []byte{0x00}},
			{Addr: 0x20, W: []byte{0x05}, R: []byte{0x00, 0xE6}},
			{Addr: 0x20, W: []byte{0x00}, R: []byte{0x01, 0x2C}},
			{Addr: 0x20, W: []byte{0x04}, R: []byte{0x03, 0xE8}},
		},
	}
	bus := newGenericBus(playback)
	ctx := context.Background()
	s := soil.NewChirp(bus)

	require.NoError(t, s.Reset(ctx))
	ver, err := s.ReadVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.6", ver.String())

	require.NoError(t, s.TriggerMeasurement(ctx))
	busy, err := s.IsBusy(ctx)
	require.NoError(t, err)
	assert.False(t, busy)

	temp, err := s.ReadTemperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, float32(23.0), temp)
	capacitance, err := s.ReadCapacitance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(300), capacitance)
	light, err := s.ReadLight(ctx)
	require.NoError(t, err)
	assert.Equal(t, float32(100.0), light)

	assert.Same(t, bus, s.Release())
	assert.NoError(t, bus.Close())
}

func TestGenericBus_TxError(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x20, W: []byte{0x06}},
		},
		DontPanic: true,
	}
	bus := newGenericBus(playback)
	err := bus.WriteToAddr(context.Background(), 0x21, []byte{0x06})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "0x21")
}

func TestGenericBus_SetSpeed(t *testing.T) {
	bus := newGenericBus(&i2ctest.Playback{})
	assert.NoError(t, bus.SetSpeed(100*physic.KiloHertz))
	assert.NoError(t, bus.Close())
}
