// Package npa700 reads NPA-700 series differential pressure sensors.
//
// The driver is a thin single-shot layer between a caller-supplied bus and
// engineering units. It keeps no state between calls, does not retry and does
// not sleep: the caller decides when to trigger, when to read and what to do
// about a failed transfer.
//
// Typical usage:
//
//	s := npa700.NewFromBus(bus, npa700.Variant001D)
//	var pa float32
//	code := s.ReadPressure(ctx, &pa)
//	if code.IsFatal() {
//		return code
//	}
//
// The context passed to the driver is only forwarded to the bus functions.
// The driver itself never observes cancellation; a bus function that does
// not return blocks the call.
package npa700

import (
	"context"
	"fmt"
)

// DefaultAddress is the factory 7-bit I2C address of NPA-700 parts.
const DefaultAddress = 0x28

// Output count limits. Counts outside the non-saturated band are the sensor
// clamping at its rails.
const (
	CountMinSaturated    = 0
	CountMinNonSaturated = 1638
	CountMiddle          = 8192
	CountMaxNonSaturated = 14745
	CountMaxSaturated    = 16383
)

const (
	statusMask = 0xC0
	countMask  = 0x3FFF
)

// Status is the two-bit diagnostic field of the first register byte.
type Status byte

const (
	StatusNormal   Status = 0b00
	StatusCommand  Status = 0b01
	StatusStale    Status = 0b10
	StatusDiagnose Status = 0b11
)

// WriteFunc sends data to the device at address.
type WriteFunc func(ctx context.Context, address byte, data []byte) Code

// ReadFunc fills data from the device at address. An empty data slice must be
// accepted: it wakes the sensor for a measurement without clocking any bytes.
type ReadFunc func(ctx context.Context, address byte, data []byte) Code

// Sensor describes one NPA-700 on a bus. It is immutable after construction
// and may be shared between goroutines.
type Sensor struct {
	write   WriteFunc
	read    ReadFunc
	address byte
	variant Variant
}

type SensorConfig struct {
	Address byte
}

type SensorOption func(*SensorConfig)

func WithAddress(address byte) SensorOption {
	return func(c *SensorConfig) {
		c.Address = address
	}
}

// New creates a sensor descriptor. Nil functions are accepted here and
// reported with ErrNull by every operation.
func New(write WriteFunc, read ReadFunc, variant Variant, opts ...SensorOption) *Sensor {
	config := &SensorConfig{
		Address: DefaultAddress,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &Sensor{
		write:   write,
		read:    read,
		address: config.Address,
		variant: variant,
	}
}

// NewFromBus creates a sensor descriptor using bus for both directions.
func NewFromBus(bus I2CBus, variant Variant, opts ...SensorOption) *Sensor {
	write, read := Capabilities(bus)
	return New(write, read, variant, opts...)
}

func (s *Sensor) Address() byte {
	return s.address
}

func (s *Sensor) Variant() Variant {
	return s.variant
}

func (s *Sensor) validate() Code {
	if s == nil || s.write == nil || s.read == nil {
		return ErrNull
	}
	return Success
}

// TriggerSample wakes a sensor with sleep mode and starts a measurement
// cycle. It issues a zero-length read; nothing is returned by the sensor.
func (s *Sensor) TriggerSample(ctx context.Context) Code {
	code := s.validate()
	if code != Success {
		return code
	}
	return code | s.read(ctx, s.address, nil)
}

// ReadPressure reads the latest sample and stores it in pressurePa, in
// pascals. On sensors with sleep mode the call also starts a new cycle and
// the returned value is flagged WarnStale.
//
// The value is converted even when it is saturated, so it is not clamped to
// the variant range. When the result is fatal the stored value is not
// meaningful.
func (s *Sensor) ReadPressure(ctx context.Context, pressurePa *float32) Code {
	code := s.validate()
	if pressurePa == nil {
		code |= ErrNull
	}
	if code != Success {
		return code
	}
	// a short or silent transfer leaves the diagnostic status and a saturated count
	raw := [2]byte{0xFF, 0xFF}
	code |= s.read(ctx, s.address, raw[:])
	code |= parseStatus(raw[0])
	count := outputCount(raw)
	if saturated(count) {
		code |= WarnSaturated
	}
	scale, ok := s.variant.Scale()
	if !ok {
		return code | ErrInternal
	}
	*pressurePa = toPascal(count, scale)
	return code
}

// Pressure is ReadPressure returning the value.
func (s *Sensor) Pressure(ctx context.Context) (float32, Code) {
	var pa float32
	code := s.ReadPressure(ctx, &pa)
	return pa, code
}

// ReadPressureTempLowRes is reserved for the 8-bit temperature readout and
// always returns ErrNotImplemented.
func (s *Sensor) ReadPressureTempLowRes(ctx context.Context, pressurePa, temperatureC *float32) Code {
	return ErrNotImplemented
}

// ReadPressureTempHiRes is reserved for the 11-bit temperature readout and
// always returns ErrNotImplemented.
func (s *Sensor) ReadPressureTempHiRes(ctx context.Context, pressurePa, temperatureC *float32) Code {
	return ErrNotImplemented
}

func (s *Sensor) String() string {
	if s == nil {
		return "npa700(nil)"
	}
	return fmt.Sprintf("%s@%#02x", s.variant, s.address)
}

// StatusOf extracts the diagnostic field of the first register byte.
func StatusOf(b0 byte) Status {
	return Status((b0 & statusMask) >> 6)
}

func parseStatus(b0 byte) Code {
	switch StatusOf(b0) {
	case StatusNormal:
		return Success
	case StatusCommand:
		// command mode is only entered for configuration, which is not supported
		return ErrMode
	case StatusStale:
		return WarnStale
	default:
		return ErrInternal
	}
}

func outputCount(raw [2]byte) uint16 {
	return (uint16(raw[0])<<8 + uint16(raw[1])) & countMask
}

func saturated(count uint16) bool {
	return count < CountMinNonSaturated || count > CountMaxNonSaturated
}

// P = Pmin + (OUT - OUTmin) / (OUTmax - OUTmin) * (Pmax - Pmin)
func toPascal(count uint16, scale float32) float32 {
	pmin, pmax := -scale, scale
	return pmin + (float32(count)-CountMinNonSaturated)/(CountMaxNonSaturated-CountMinNonSaturated)*(pmax-pmin)
}
