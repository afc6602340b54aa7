package soil

import (
	"context"
	"fmt"
	"time"
)

// Sensor is the subset of Chirp operations needed for a full measurement cycle.
type Sensor interface {
	TriggerMeasurement(ctx context.Context) error
	IsBusy(ctx context.Context) (bool, error)
	ReadTemperature(ctx context.Context) (float32, error)
	ReadCapacitance(ctx context.Context) (uint16, error)
	ReadLight(ctx context.Context) (float32, error)
}

var _ Sensor = &Chirp{}

// Measurement holds the values of one completed measurement cycle.
type Measurement struct {
	Temperature float32 `yaml:"temperature"`
	Capacitance uint16  `yaml:"capacitance"`
	Light       float32 `yaml:"light"`
}

type MeasureOpts struct {
	// Settle is the fixed wait after triggering, used when PollInterval is zero.
	Settle time.Duration
	// PollInterval enables busy flag polling instead of the fixed wait.
	PollInterval time.Duration
}

type MeasureOpt func(*MeasureOpts)

func WithSettle(settle time.Duration) MeasureOpt {
	return func(o *MeasureOpts) {
		o.Settle = settle
	}
}

func WithPolling(interval time.Duration) MeasureOpt {
	return func(o *MeasureOpts) {
		o.PollInterval = interval
	}
}

// Measure triggers a measurement, waits for it to settle and reads all values.
// Polling has no bound of its own; pass a context with a deadline to limit it.
func Measure(ctx context.Context, s Sensor, opts ...MeasureOpt) (Measurement, error) {
	config := MeasureOpts{
		Settle: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(&config)
	}
	var m Measurement
	err := s.TriggerMeasurement(ctx)
	if err != nil {
		return m, err
	}
	if config.PollInterval > 0 {
		err = WaitReady(ctx, s, config.PollInterval)
	} else {
		err = sleep(ctx, config.Settle)
	}
	if err != nil {
		return m, err
	}
	m.Temperature, err = s.ReadTemperature(ctx)
	if err != nil {
		return m, err
	}
	m.Capacitance, err = s.ReadCapacitance(ctx)
	if err != nil {
		return m, err
	}
	m.Light, err = s.ReadLight(ctx)
	if err != nil {
		return m, err
	}
	return m, nil
}

// WaitReady polls the busy flag every interval until the sensor reports idle.
func WaitReady(ctx context.Context, s Sensor, interval time.Duration) error {
	for {
		busy, err := s.IsBusy(ctx)
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
		if err := sleep(ctx, interval); err != nil {
			return fmt.Errorf("chirp: waiting for measurement: %w", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
