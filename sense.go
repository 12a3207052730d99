package npa700

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

var _ physic.SenseEnv = &Dev{}

// Dev exposes a Sensor through the periph.io environmental sensor interface.
// Only Env.Pressure is populated. Warnings are logged and otherwise dropped
// since physic.Env cannot carry them; use Sensor directly to act on them.
type Dev struct {
	sensor *Sensor

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

var _ conn.Resource = &Dev{}

func NewDev(sensor *Sensor) *Dev {
	return &Dev{sensor: sensor}
}

func (d *Dev) String() string {
	return d.sensor.String()
}

// Sense reads one sample.
func (d *Dev) Sense(env *physic.Env) error {
	return d.SenseContext(context.Background(), env)
}

// SenseContext reads one sample; ctx is handed to the bus.
func (d *Dev) SenseContext(ctx context.Context, env *physic.Env) error {
	pa, code := d.sensor.Pressure(ctx)
	if err := code.Err(); err != nil {
		return err
	}
	if code.IsWarning() {
		slog.Debug("npa700 reading carries warnings", "sensor", d.sensor.String(), "code", code.String())
	}
	env.Pressure = ToPressure(pa)
	return nil
}

// SenseContinuous reads a sample every interval until Halt is called. Failed
// reads are skipped.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("npa700: invalid sensing interval %s", interval)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil, errors.New("npa700: continuous sensing already running")
	}
	d.stop = make(chan struct{})
	ch := make(chan physic.Env)
	d.wg.Add(1)
	go d.sensePoll(interval, d.stop, ch)
	return ch, nil
}

func (d *Dev) sensePoll(interval time.Duration, stop <-chan struct{}, ch chan<- physic.Env) {
	defer d.wg.Done()
	defer close(ch)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		var env physic.Env
		if err := d.Sense(&env); err != nil {
			slog.Debug("npa700 continuous read failed", "sensor", d.sensor.String(), "error", err)
			continue
		}
		select {
		case ch <- env:
		case <-stop:
			return
		}
	}
}

// Precision reports the pressure step of one output count.
func (d *Dev) Precision(env *physic.Env) {
	if res, ok := d.sensor.Variant().Resolution(); ok {
		env.Pressure = ToPressure(res)
	}
}

// Halt stops continuous sensing, if any.
func (d *Dev) Halt() error {
	d.mu.Lock()
	stop := d.stop
	d.stop = nil
	d.mu.Unlock()
	if stop != nil {
		close(stop)
		d.wg.Wait()
	}
	return nil
}

// ToPressure converts pascals to physic.Pressure. Negative differential
// pressures are kept negative.
func ToPressure(pa float32) physic.Pressure {
	return physic.Pressure(math.Round(float64(pa) * float64(physic.Pascal)))
}
