// Package gobotbus exposes a gobot I2C connector (NanoPi, Raspberry Pi, Tinker
// Board and other gobot platforms) as a chirp.I2CBus.
//
// Example usage:
//
//	npi := nanopi.NewNeoAdaptor()
//	if err := npi.I2cBusAdaptor.Connect(); err != nil { ... }
//	defer npi.I2cBusAdaptor.Finalize()
//	bus := gobotbus.New(npi, 0)
//	defer bus.Close()
package gobotbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/chirp"
)

var _ chirp.I2CBus = &Bus{}

// Bus keeps one gobot connection per device address on a single bus.
type Bus struct {
	mx        sync.Mutex
	connector i2c.Connector
	busNr     int
	conns     map[byte]i2c.Connection
}

// New binds to bus number busNr of connector. A negative busNr selects the
// platform default bus.
func New(connector i2c.Connector, busNr int) *Bus {
	if busNr < 0 {
		busNr = connector.DefaultI2cBus()
	}
	return &Bus{
		connector: connector,
		busNr:     busNr,
		conns:     make(map[byte]i2c.Connection),
	}
}

func (b *Bus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	n, err := conn.Write(buffer)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short write to %x: %d of %d bytes", address, n, len(buffer))
	}
	return nil
}

func (b *Bus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	n, err := conn.Read(buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short read from %x: %d of %d bytes", address, n, len(buffer))
	}
	return nil
}

// WriteReadAddr maps a single register byte onto an SMBus I2C block read, which
// gobot performs as write plus repeated-start read. Longer writes fall back to
// two separate transfers.
func (b *Bus) WriteReadAddr(ctx context.Context, address byte, w, r []byte) error {
	if len(w) != 1 {
		if err := b.WriteToAddr(ctx, address, w); err != nil {
			return err
		}
		return b.ReadFromAddr(ctx, address, r)
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	err = conn.ReadBlockData(w[0], r)
	if err != nil {
		return fmt.Errorf("could not read register %#x from i2c bus %x: %w", w[0], address, err)
	}
	return nil
}

// Release is a no-op, the kernel driver recovers stuck transfers itself.
func (b *Bus) Release(ctx context.Context) error {
	return nil
}

// Close closes every connection opened so far.
func (b *Bus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var errs []error
	for addr, conn := range b.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("could not close connection to %x: %w", addr, err))
		}
		delete(b.conns, addr)
	}
	return errors.Join(errs...)
}

func (b *Bus) connection(address byte) (i2c.Connection, error) {
	if conn, ok := b.conns[address]; ok {
		return conn, nil
	}
	conn, err := b.connector.GetI2cConnection(int(address), b.busNr)
	if err != nil {
		return nil, fmt.Errorf("could not open connection to %x on bus %d: %w", address, b.busNr, err)
	}
	b.conns[address] = conn
	return conn, nil
}
