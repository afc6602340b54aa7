// Package tinybus adapts a tinygo.org/x/drivers I2C bus to chirp.I2CBus.
//
// drivers.I2C is implemented by machine.I2C on microcontrollers and, having the
// same Tx signature, by periph.io i2c.Bus on Linux hosts. The adapter therefore
// lets the soil driver run unchanged on both.
//
// Tx MUST perform a write followed by a repeated-start read when both w and r are
// provided.
package tinybus

import (
	"context"
	"encoding/hex"
	"fmt"

	"tinygo.org/x/drivers"

	"github.com/mklimuk/chirp"
	"github.com/mklimuk/chirp/snsctx"
)

var _ chirp.I2CBus = &Bus{}

type Bus struct {
	bus drivers.I2C
}

func New(bus drivers.I2C) *Bus {
	return &Bus{bus: bus}
}

func (b *Bus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.tx(ctx, address, nil, buffer)
}

func (b *Bus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.tx(ctx, address, buffer, nil)
}

func (b *Bus) WriteReadAddr(ctx context.Context, address byte, w, r []byte) error {
	return b.tx(ctx, address, w, r)
}

// Release is a no-op; drivers.I2C has no notion of a stuck transfer.
func (b *Bus) Release(ctx context.Context) error {
	return nil
}

func (b *Bus) tx(ctx context.Context, address byte, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.bus.Tx(uint16(address), w, r)
	if err != nil {
		return fmt.Errorf("i2c transaction with %#x failed: %w", address, err)
	}
	snsctx.DumpFrame(ctx, "i2c transaction", w, "addr", fmt.Sprintf("%#x", address), "r", hex.EncodeToString(r))
	return nil
}
