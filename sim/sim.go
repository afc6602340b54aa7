// Package sim provides a simulated Chirp sensor sitting behind a
// tinygo.org/x/drivers I2C bus. It follows the firmware register protocol
// closely enough to exercise the soil driver without hardware:
//
//   - a measurement cycle started with the measure command keeps the busy flag
//     set for the configured settle time,
//   - until the cycle completes, reads return the previous (stale) values,
//   - an address change only takes effect after a reset,
//   - faults can be injected per register.
//
// Example usage:
//
//	dev := sim.New(sim.WithEnvironment(func() sim.Environment {
//		return sim.Environment{Temperature: 21.5, Capacitance: 410, Light: 120}
//	}))
//	s := soil.NewChirp(tinybus.New(dev))
package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"github.com/mklimuk/chirp/soil"
)

var _ drivers.I2C = &Device{}

var ErrNoDevice = errors.New("sim: no device at address (nack)")
var ErrProtocol = errors.New("sim: malformed transaction")

// Environment is what the simulated probe measures in the soil.
type Environment struct {
	Temperature float32
	Capacitance uint16
	Light       float32
}

// EnvironmentFunc is called once per measurement cycle.
type EnvironmentFunc func() Environment

type Opts struct {
	Address     byte
	Version     byte
	Settle      time.Duration
	Environment EnvironmentFunc
	Clock       func() time.Time
}

type Opt func(*Opts)

func WithAddress(address byte) Opt {
	return func(o *Opts) {
		o.Address = address
	}
}

func WithVersion(version byte) Opt {
	return func(o *Opts) {
		o.Version = version
	}
}

func WithSettle(settle time.Duration) Opt {
	return func(o *Opts) {
		o.Settle = settle
	}
}

func WithEnvironment(env EnvironmentFunc) Opt {
	return func(o *Opts) {
		o.Environment = env
	}
}

func WithClock(clock func() time.Time) Opt {
	return func(o *Opts) {
		o.Clock = clock
	}
}

type Device struct {
	mx     sync.Mutex
	config Opts

	address        byte
	pendingAddress int // -1 when no change is pending
	asleep         bool

	busyUntil time.Time
	measuring bool
	next      Environment
	current   Environment

	faults map[soil.Register]error
	txs    int
}

// New creates a simulated sensor. The power-on reading is taken from the
// environment right away so early reads return sensible values.
func New(opts ...Opt) *Device {
	config := Opts{
		Address: soil.DefaultAddress,
		Version: 0x26,
		Settle:  time.Second,
		Environment: func() Environment {
			return Environment{Temperature: 21.0, Capacitance: 330, Light: 250}
		},
		Clock: time.Now,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Device{
		config:         config,
		address:        config.Address,
		pendingAddress: -1,
		current:        config.Environment(),
		faults:         make(map[soil.Register]error),
	}
}

// Address returns the address the device currently answers on.
func (d *Device) Address() byte {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.address
}

// Asleep reports whether the last command put the device to sleep.
func (d *Device) Asleep() bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.asleep
}

// Transactions returns the number of transactions the device acknowledged.
func (d *Device) Transactions() int {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.txs
}

// FailNext makes the next transaction addressed to reg fail with err.
func (d *Device) FailNext(reg soil.Register, err error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.faults[reg] = err
}

func (d *Device) Tx(addr uint16, w, r []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if addr != uint16(d.address) {
		return fmt.Errorf("%w %#x", ErrNoDevice, addr)
	}
	if len(w) == 0 {
		return fmt.Errorf("%w: missing register byte", ErrProtocol)
	}
	reg := soil.Register(w[0])
	if !reg.Known() {
		return fmt.Errorf("%w: unknown register %#x", ErrProtocol, w[0])
	}
	if len(w)-1 != reg.PayloadLen() || len(r) != reg.ResultLen() {
		return fmt.Errorf("%w: %s expects %d payload and %d result bytes, got %d and %d",
			ErrProtocol, reg, reg.PayloadLen(), reg.ResultLen(), len(w)-1, len(r))
	}
	if err, ok := d.faults[reg]; ok {
		delete(d.faults, reg)
		return err
	}
	d.txs++
	d.asleep = false
	d.latch()

	switch reg {
	case soil.RegSetAddress:
		if w[1] > soil.MaxAddress {
			return fmt.Errorf("%w: address %#x", ErrProtocol, w[1])
		}
		d.pendingAddress = int(w[1])
	case soil.RegReset:
		if d.pendingAddress >= 0 {
			d.address = byte(d.pendingAddress)
			d.pendingAddress = -1
		}
		d.measuring = false
	case soil.RegMeasureLight:
		d.next = d.config.Environment()
		d.measuring = true
		d.busyUntil = d.config.Clock().Add(d.config.Settle)
		d.latch()
	case soil.RegSleep:
		d.asleep = true
	case soil.RegBusy:
		r[0] = 0
		if d.measuring {
			r[0] = 1
		}
	case soil.RegVersion:
		r[0] = d.config.Version
	case soil.RegGetAddress:
		r[0] = d.address
	case soil.RegTemperature:
		putUint16(r, uint16(int16(math.Round(float64(d.current.Temperature)*10))))
	case soil.RegCapacitance:
		putUint16(r, d.current.Capacitance)
	case soil.RegLight:
		putUint16(r, uint16(math.Round(float64(d.current.Light)*10)))
	}
	return nil
}

// latch completes a running measurement cycle once the settle time has passed.
func (d *Device) latch() {
	if !d.measuring || d.config.Clock().Before(d.busyUntil) {
		return
	}
	d.current = d.next
	d.measuring = false
}

func putUint16(r []byte, v uint16) {
	r[0] = byte(v >> 8)
	r[1] = byte(v)
}
