package main

import (
	"context"
	"fmt"
	"log/slog"

	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/chirp"
	"github.com/mklimuk/chirp/adapter"
	"github.com/mklimuk/chirp/gobotbus"
	"github.com/mklimuk/chirp/i2c"
	"github.com/mklimuk/chirp/pkg/config"
	"github.com/mklimuk/chirp/sim"
	"github.com/mklimuk/chirp/tinybus"
)

func nopCloser() error {
	return nil
}

// openBus returns the transport selected by cfg and a function releasing the
// underlying OS resources.
func openBus(ctx context.Context, cfg config.Config) (chirp.I2CBus, func() error, error) {
	slog.Debug("opening bus", "adapter", cfg.Adapter, "device", cfg.Device, "bus", cfg.Bus, "speed", cfg.Speed)
	switch cfg.Adapter {
	case config.AdapterMCP2221:
		mcp := adapter.NewMCP2221()
		err := mcp.Init()
		if err != nil {
			return nil, nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		if cfg.Speed > 0 {
			err = mcp.SetSpeed(ctx, cfg.Speed)
			if err != nil {
				return nil, nil, err
			}
		}
		return mcp, nopCloser, nil
	case config.AdapterGeneric:
		bus, err := i2c.NewGenericBus(cfg.Device)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Speed > 0 {
			err = bus.SetSpeed(physic.Frequency(cfg.Speed) * physic.Hertz)
			if err != nil {
				_ = bus.Close()
				return nil, nil, err
			}
		}
		return bus, bus.Close, nil
	case config.AdapterNanoPi:
		npi := nanopi.NewNeoAdaptor()
		err := npi.I2cBusAdaptor.Connect()
		if err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		bus := gobotbus.New(npi, cfg.Bus)
		return bus, func() error {
			err := bus.Close()
			if ferr := npi.I2cBusAdaptor.Finalize(); ferr != nil && err == nil {
				err = ferr
			}
			return err
		}, nil
	case config.AdapterSim:
		dev := sim.New(sim.WithAddress(cfg.Address))
		return tinybus.New(dev), nopCloser, nil
	}
	return nil, nil, fmt.Errorf("unsupported adapter %q", cfg.Adapter)
}
