// Package config holds the chirp CLI configuration and build information.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is injected at build time.
var Version = "dev"

const (
	AdapterMCP2221 = "mcp2221"
	AdapterGeneric = "generic"
	AdapterNanoPi  = "nanopi"
	AdapterSim     = "sim"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	// Adapter selects the bus transport: mcp2221, generic, nanopi or sim.
	Adapter string `yaml:"adapter"`
	// Device is the periph bus name or path used by the generic adapter.
	Device string `yaml:"device"`
	// Bus is the gobot bus number used by the nanopi adapter; -1 is the board default.
	Bus int `yaml:"bus"`
	// Speed is the bus clock in Hz; 0 leaves the adapter default.
	Speed int `yaml:"speed"`
	// Address is the sensor address.
	Address uint8 `yaml:"address"`
	// Settle is the fixed wait after triggering a measurement.
	Settle time.Duration `yaml:"settle"`
	// Poll, when set, polls the busy flag instead of waiting Settle.
	Poll time.Duration `yaml:"poll"`
	// Interval is the pause between measurements in watch mode.
	Interval time.Duration `yaml:"interval"`
}

func Default() Config {
	return Config{
		Adapter:  AdapterMCP2221,
		Device:   "/dev/i2c-1",
		Bus:      -1,
		Address:  0x20,
		Settle:   3 * time.Second,
		Interval: 10 * time.Second,
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not open config file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

func Decode(r io.Reader) (Config, error) {
	config := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("could not decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	switch c.Adapter {
	case AdapterMCP2221, AdapterGeneric, AdapterNanoPi, AdapterSim:
	default:
		return fmt.Errorf("%w: unknown adapter %q", ErrInvalidConfig, c.Adapter)
	}
	if c.Address > 0x7F {
		return fmt.Errorf("%w: address %#x is not a 7-bit address", ErrInvalidConfig, c.Address)
	}
	if c.Settle < 0 || c.Poll < 0 || c.Interval < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if c.Speed < 0 {
		return fmt.Errorf("%w: negative bus speed", ErrInvalidConfig)
	}
	return nil
}
