package npa700

import (
	"context"
	"errors"
	"math"
	"sync"
)

var ErrNoDevice = errors.New("npa700: no device at address")

// PressureReader is implemented by Sensor and by MockPressureSensor.
type PressureReader interface {
	Pressure(ctx context.Context) (float32, Code)
}

var _ PressureReader = &Sensor{}

// PressureBehaviorFunc returns the differential pressure in pascals seen by
// a simulated sensor.
type PressureBehaviorFunc func(ctx context.Context) (float32, error)

// ReadingBehaviorFunc returns a pressure reading together with its result code.
type ReadingBehaviorFunc func(ctx context.Context) (float32, Code)

// MockPressureSensor produces readings from a behavior function without any
// bus involved.
//
// Example usage:
//
//	sensor := NewMockPressureSensor(func(ctx context.Context) (float32, Code) { return 12.5, Success })
type MockPressureSensor struct {
	behavior ReadingBehaviorFunc
}

func NewMockPressureSensor(behavior ReadingBehaviorFunc) *MockPressureSensor {
	return &MockPressureSensor{behavior: behavior}
}

func (m *MockPressureSensor) Pressure(ctx context.Context) (float32, Code) {
	return m.behavior(ctx)
}

type MockBusConfig struct {
	Address   byte
	SleepMode bool
}

type MockBusOption func(*MockBusConfig)

func WithMockAddress(address byte) MockBusOption {
	return func(c *MockBusConfig) {
		c.Address = address
	}
}

// WithSleepMode makes the simulated part measure only when woken by a
// zero-length read. Fetching the same sample twice reports stale data.
func WithSleepMode() MockBusOption {
	return func(c *MockBusConfig) {
		c.SleepMode = true
	}
}

// MockBus simulates one NPA-700 behind an I2CBus. Register contents are
// encoded from the pressure returned by the behavior function.
type MockBus struct {
	mx       sync.Mutex
	config   MockBusConfig
	variant  Variant
	behavior PressureBehaviorFunc

	register [2]byte
	sampled  bool
	fetched  bool
	triggers int
	reads    int
}

var _ I2CBus = &MockBus{}

func NewMockBus(variant Variant, behavior PressureBehaviorFunc, opts ...MockBusOption) *MockBus {
	config := MockBusConfig{
		Address: DefaultAddress,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &MockBus{
		config:   config,
		variant:  variant,
		behavior: behavior,
	}
}

func (b *MockBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if address != b.config.Address {
		return ErrNoDevice
	}
	if len(buffer) == 0 {
		b.triggers++
		return b.sample(ctx)
	}
	b.reads++
	if !b.config.SleepMode || !b.sampled {
		if err := b.sample(ctx); err != nil {
			return err
		}
	}
	reg := b.register
	if b.fetched {
		reg[0] = reg[0]&^statusMask | byte(StatusStale)<<6
	}
	b.fetched = true
	copy(buffer, reg[:])
	return nil
}

// WriteToAddr accepts and discards command writes.
func (b *MockBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if address != b.config.Address {
		return ErrNoDevice
	}
	return nil
}

func (b *MockBus) Release(ctx context.Context) error {
	return nil
}

// Triggers returns the number of zero-length reads seen so far.
func (b *MockBus) Triggers() int {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.triggers
}

// Reads returns the number of data fetches seen so far.
func (b *MockBus) Reads() int {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.reads
}

func (b *MockBus) sample(ctx context.Context) error {
	pa, err := b.behavior(ctx)
	if err != nil {
		return err
	}
	b.register = EncodeRaw(StatusNormal, Encode(b.variant, pa))
	b.sampled = true
	b.fetched = false
	return nil
}

// Encode returns the output count a sensor of the given variant reports for
// pressure pa, clamped to the 14-bit range. Unknown variants encode to
// CountMiddle.
func Encode(variant Variant, pa float32) uint16 {
	scale, ok := variant.Scale()
	if !ok {
		return CountMiddle
	}
	count := math.Round(float64((pa+scale)/(2*scale))*(CountMaxNonSaturated-CountMinNonSaturated) + CountMinNonSaturated)
	return uint16(math.Max(CountMinSaturated, math.Min(CountMaxSaturated, count)))
}

// EncodeRaw builds the two register bytes for a status and output count.
func EncodeRaw(status Status, count uint16) [2]byte {
	return [2]byte{
		byte(status)<<6 | byte(count>>8)&(countMask>>8),
		byte(count),
	}
}
