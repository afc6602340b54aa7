package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/chirp/cmd/chirp/console"
	"github.com/mklimuk/chirp/pkg/config"
	"github.com/mklimuk/chirp/soil"
)

const (
	formatText = "text"
	formatYAML = "yaml"
)

// addresses outside the reserved I2C ranges
const (
	scanFirst = 0x08
	scanLast  = 0x77
)

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Value:   formatText,
	Usage:   "output format: text or yaml",
}

func parseAddress(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if v > soil.MaxAddress {
		return 0, fmt.Errorf("invalid address %q: %w", s, soil.ErrInvalidAddress)
	}
	return byte(v), nil
}

// withSensor opens the configured bus, binds a Chirp to it and closes the
// bus once action returns.
func withSensor(c *cli.Context, action func(ctx context.Context, cfg config.Config, s *soil.Chirp) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return console.Exit(1, "configuration error: %s", console.Red(err))
	}
	ctx := commandContext(c)
	bus, closeBus, err := openBus(ctx, cfg)
	if err != nil {
		return console.Exit(1, "could not open bus: %s", console.Red(err))
	}
	defer func() {
		if err := closeBus(); err != nil {
			slog.Debug("error closing bus", "error", err)
		}
	}()
	return action(ctx, cfg, soil.NewChirp(bus, soil.WithAddress(cfg.Address)))
}

func measureOpts(cfg config.Config) []soil.MeasureOpt {
	opts := []soil.MeasureOpt{soil.WithSettle(cfg.Settle)}
	if cfg.Poll > 0 {
		opts = append(opts, soil.WithPolling(cfg.Poll))
	}
	return opts
}

type report struct {
	Time             time.Time `yaml:"time"`
	Address          string    `yaml:"address"`
	soil.Measurement `yaml:",inline"`
}

func printMeasurement(w io.Writer, format string, r report) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(r)
	case formatText:
		_, err := fmt.Fprintf(w, "%s %s  %s %s°C  %s %s  %s %s lx\n",
			console.PictoPin, console.White(r.Address),
			console.PictoThermometer, console.White(fmt.Sprintf("%.1f", r.Temperature)),
			console.PictoMoisture, console.White(r.Capacitance),
			console.PictoLight, console.White(fmt.Sprintf("%.1f", r.Light)))
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}

func measureAndPrint(ctx context.Context, c *cli.Context, cfg config.Config, s *soil.Chirp) error {
	m, err := soil.Measure(ctx, s, measureOpts(cfg)...)
	if err != nil {
		return err
	}
	return printMeasurement(console.Writer(), c.String("format"), report{
		Time:        time.Now(),
		Address:     fmt.Sprintf("%#04x", s.Address()),
		Measurement: m,
	})
}

var readCmd = cli.Command{
	Name:  "read",
	Usage: "trigger a measurement and print temperature, capacitance and light",
	Flags: []cli.Flag{formatFlag},
	Action: func(c *cli.Context) error {
		return withSensor(c, func(ctx context.Context, cfg config.Config, s *soil.Chirp) error {
			err := measureAndPrint(ctx, c, cfg, s)
			if err != nil {
				return console.Exit(1, "measurement error: %s", console.Red(err))
			}
			return nil
		})
	},
}

var watchCmd = cli.Command{
	Name:  "watch",
	Usage: "measure periodically until interrupted",
	Flags: []cli.Flag{
		formatFlag,
		&cli.DurationFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Usage:   "pause between measurements (overrides config)",
		},
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Usage:   "stop after n measurements; 0 runs forever",
		},
	},
	Action: func(c *cli.Context) error {
		return withSensor(c, func(ctx context.Context, cfg config.Config, s *soil.Chirp) error {
			interval := cfg.Interval
			if c.IsSet("interval") {
				interval = c.Duration("interval")
			}
			count := c.Int("count")
			ticker := time.NewTicker(max(interval, time.Millisecond))
			defer ticker.Stop()
			for i := 0; count == 0 || i < count; i++ {
				err := measureAndPrint(ctx, c, cfg, s)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if err != nil {
					console.Errorf("measurement error: %s", err)
				}
				if count > 0 && i == count-1 {
					break
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
			return nil
		})
	},
}

var versionCmd = cli.Command{
	Name:  "version",
	Usage: "print the sensor firmware version",
	Action: func(c *cli.Context) error {
		return withSensor(c, func(ctx context.Context, cfg config.Config, s *soil.Chirp) error {
			v, err := s.ReadVersion(ctx)
			if err != nil {
				return console.Exit(1, "could not read firmware version: %s", console.Red(err))
			}
			console.PInfof(console.PictoSeedling, "firmware %s (%s) at %s", console.White(v), console.Faint(fmt.Sprintf("%#04x", byte(v))), console.Hex(s.Address()))
			return nil
		})
	},
}

var resetCmd = cli.Command{
	Name:  "reset",
	Usage: "reset the sensor",
	Action: func(c *cli.Context) error {
		return withSensor(c, func(ctx context.Context, cfg config.Config, s *soil.Chirp) error {
			err := s.Reset(ctx)
			if err != nil {
				return console.Exit(1, "reset error: %s", console.Red(err))
			}
			console.Infof("sensor at %s reset", console.Hex(s.Address()))
			return nil
		})
	},
}

var sleepCmd = cli.Command{
	Name:  "sleep",
	Usage: "put the sensor to sleep; any bus activity wakes it up",
	Action: func(c *cli.Context) error {
		return withSensor(c, func(ctx context.Context, cfg config.Config, s *soil.Chirp) error {
			err := s.Sleep(ctx)
			if err != nil {
				return console.Exit(1, "sleep error: %s", console.Red(err))
			}
			console.Infof("sensor at %s is asleep", console.Hex(s.Address()))
			return nil
		})
	},
}

var addressCmd = cli.Command{
	Name:      "address",
	Usage:     "print the sensor address or move the sensor to a new one",
	ArgsUsage: "[new address]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "do not ask for confirmation",
		},
	},
	Action: func(c *cli.Context) error {
		return withSensor(c, func(ctx context.Context, cfg config.Config, s *soil.Chirp) error {
			if c.NArg() == 0 {
				addr, err := s.ReadAddress(ctx)
				if err != nil {
					return console.Exit(1, "could not read address: %s", console.Red(err))
				}
				console.PInfof(console.PictoPin, "%s", console.Hex(addr))
				return nil
			}
			addr, err := parseAddress(c.Args().First())
			if err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
			if !c.Bool("yes") {
				ok, err := console.Confirm(fmt.Sprintf("move sensor from %#04x to %#04x?", s.Address(), addr))
				if err != nil {
					return console.Exit(1, "prompt error: %s", console.Red(err))
				}
				if !ok {
					console.PInfof(console.PictoStop, "aborted")
					return nil
				}
			}
			old := s.Address()
			err = s.SetAddress(ctx, addr)
			if err != nil {
				return console.Exit(1, "could not change address: %s", console.Red(err))
			}
			console.Infof("sensor moved from %s to %s", console.Hex(old), console.Green(fmt.Sprintf("%#04x", addr)))
			return nil
		})
	},
}

type busReleaser interface {
	Release(ctx context.Context) error
}

var scanCmd = cli.Command{
	Name:  "scan",
	Usage: "probe every bus address for a Chirp sensor",
	Action: func(c *cli.Context) error {
		return withSensor(c, func(ctx context.Context, cfg config.Config, s *soil.Chirp) error {
			bus := s.Release()
			found := 0
			for addr := byte(scanFirst); addr <= scanLast; addr++ {
				if ctx.Err() != nil {
					return nil
				}
				probe := soil.NewChirp(bus, soil.WithAddress(addr))
				v, err := probe.ReadVersion(ctx)
				bus = probe.Release()
				if err != nil {
					slog.Debug("no sensor", "address", fmt.Sprintf("%#04x", addr), "error", err)
					// a nack may leave a bridge adapter holding the bus
					if releaser, ok := bus.(busReleaser); ok {
						if rerr := releaser.Release(ctx); rerr != nil {
							slog.Debug("could not release bus", "error", rerr)
						}
					}
					continue
				}
				found++
				console.PInfof(console.PictoSeedling, "%s firmware %s", console.Hex(addr), console.White(v))
			}
			if found == 0 {
				console.Warnf("no sensors found")
			}
			return nil
		})
	},
}
