package soil

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mklimuk/chirp"
)

// Transport is what the driver needs from a bus: a plain write and a write
// followed by a repeated-start read. Every chirp.I2CBus satisfies it.
type Transport interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	chirp.AddressableTransceiver
}

var _ Transport = chirp.I2CBus(nil)

// DefaultAddress is the factory address of a Chirp sensor.
const DefaultAddress = 0x20

// MaxAddress is the highest 7-bit bus address.
const MaxAddress = 0x7F

var ErrInvalidAddress = errors.New("chirp: address out of 7-bit range")
var ErrReleased = errors.New("chirp: transport already released")
var ErrMalformed = errors.New("chirp: malformed command")

// Chirp represents the Catnip Electronics Chirp! capacitive soil moisture sensor
// (I2C firmware, also sold as "I2C soil moisture sensor v2.6").
// See: https://github.com/Apollon77/I2CSoilMoistureSensor
//
// The driver only encodes register transactions. It never sleeps: a measurement
// started with TriggerMeasurement is current once IsBusy reports false (or after
// roughly 1-3 s). Reading earlier is not an error, the sensor returns the result
// of the previous cycle. See Measure for the complete sequence.
//
// Chirp is not safe for concurrent use.
type Chirp struct {
	transport Transport
	address   byte
	buf       [2]byte
}

type ChirpConfig struct {
	Address byte
}

type ChirpConfigOption func(*ChirpConfig)

func WithAddress(address byte) ChirpConfigOption {
	return func(c *ChirpConfig) {
		c.Address = address
	}
}

// NewChirp creates a driver bound to trans. No bus I/O is performed.
// Without options the factory address 0x20 is used.
func NewChirp(trans Transport, opts ...ChirpConfigOption) *Chirp {
	config := &ChirpConfig{
		Address: DefaultAddress,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &Chirp{transport: trans, address: config.Address}
}

// Address returns the bus address the driver currently talks to.
func (s *Chirp) Address() byte {
	return s.address
}

// Release hands the transport back to the caller. The driver must not be used
// afterwards; every operation returns ErrReleased.
func (s *Chirp) Release() Transport {
	trans := s.transport
	s.transport = nil
	return trans
}

// Reset restarts the sensor firmware.
func (s *Chirp) Reset(ctx context.Context) error {
	return s.command(ctx, RegReset)
}

// TriggerMeasurement starts a conversion cycle and returns immediately.
func (s *Chirp) TriggerMeasurement(ctx context.Context) error {
	return s.command(ctx, RegMeasureLight)
}

// Sleep puts the sensor into low power mode; the next transaction wakes it up.
func (s *Chirp) Sleep(ctx context.Context) error {
	return s.command(ctx, RegSleep)
}

// SetAddress moves the sensor to address. The firmware only picks the new address
// up after a reset, so the reset is issued to the old address right away. The
// driver keeps the old address unless both writes succeed.
func (s *Chirp) SetAddress(ctx context.Context, address byte) error {
	if address > MaxAddress {
		return fmt.Errorf("%w: %#x", ErrInvalidAddress, address)
	}
	if err := s.command(ctx, RegSetAddress, address); err != nil {
		return err
	}
	if err := s.Reset(ctx); err != nil {
		return err
	}
	s.address = address
	return nil
}

// IsBusy reports whether a measurement cycle is still running.
func (s *Chirp) IsBusy(ctx context.Context) (bool, error) {
	resp, err := s.query(ctx, RegBusy)
	if err != nil {
		return false, err
	}
	return resp[0] != 0, nil
}

// ReadVersion returns the firmware version byte, major in the high nibble.
func (s *Chirp) ReadVersion(ctx context.Context) (Version, error) {
	resp, err := s.query(ctx, RegVersion)
	if err != nil {
		return 0, err
	}
	return Version(resp[0]), nil
}

// ReadAddress returns the address stored in the sensor firmware.
func (s *Chirp) ReadAddress(ctx context.Context) (byte, error) {
	resp, err := s.query(ctx, RegGetAddress)
	if err != nil {
		return 0, err
	}
	return resp[0], nil
}

// ReadTemperature returns the temperature in degrees Celsius.
func (s *Chirp) ReadTemperature(ctx context.Context) (float32, error) {
	resp, err := s.query(ctx, RegTemperature)
	if err != nil {
		return 0, err
	}
	return convertTemperature(resp), nil
}

// ReadCapacitance returns the raw moisture reading. Higher means wetter.
func (s *Chirp) ReadCapacitance(ctx context.Context) (uint16, error) {
	resp, err := s.query(ctx, RegCapacitance)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(resp), nil
}

// ReadLight returns the light reading of the last measurement cycle.
// Higher means darker.
func (s *Chirp) ReadLight(ctx context.Context) (float32, error) {
	resp, err := s.query(ctx, RegLight)
	if err != nil {
		return 0, err
	}
	return convertLight(resp), nil
}

func (s *Chirp) command(ctx context.Context, reg Register, payload ...byte) error {
	if s.transport == nil {
		return ErrReleased
	}
	if len(payload) != reg.PayloadLen() || reg.IsQuery() {
		return fmt.Errorf("%w: %s takes %d payload bytes, got %d", ErrMalformed, reg, reg.PayloadLen(), len(payload))
	}
	frame := make([]byte, 0, 1+len(payload))
	frame = append(frame, byte(reg))
	frame = append(frame, payload...)
	return s.transport.WriteToAddr(ctx, s.address, frame)
}

func (s *Chirp) query(ctx context.Context, reg Register) ([]byte, error) {
	if s.transport == nil {
		return nil, ErrReleased
	}
	resp := s.buf[:reg.ResultLen()]
	err := s.transport.WriteReadAddr(ctx, s.address, []byte{byte(reg)}, resp)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// high byte first, two's complement, tenths of a degree
func convertTemperature(resp []byte) float32 {
	return float32(int16(binary.BigEndian.Uint16(resp))) / 10
}

func convertLight(resp []byte) float32 {
	return float32(binary.BigEndian.Uint16(resp)) / 10
}
