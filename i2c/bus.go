// Package i2c adapts host I2C stacks to npa700.I2CBus.
package i2c

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/npa700"
)

var _ npa700.I2CBus = &GenericBus{}

// ErrZeroLengthRead is returned for an empty read buffer by transports whose
// host stack drops address-only transfers instead of putting them on the wire.
var ErrZeroLengthRead = fmt.Errorf("i2c: zero-length read not supported by this transport: %w", npa700.ErrNotImplemented)

// GenericBus talks to a bus registered in periph, typically /dev/i2c-N.
type GenericBus struct {
	mx  sync.Mutex
	bus i2c.BusCloser
}

func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return NewGenericBusFrom(bus), nil
}

// NewGenericBusFrom wraps an already opened periph bus.
func NewGenericBusFrom(bus i2c.BusCloser) *GenericBus {
	return &GenericBus{bus: bus}
}

// ReadFromAddr fails with ErrZeroLengthRead for an empty buffer: periph
// returns success for an empty Tx without touching the bus.
func (b *GenericBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) == 0 {
		return ErrZeroLengthRead
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	err := b.bus.Tx(uint16(address), nil, buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	err := b.bus.Tx(uint16(address), buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

// SetSpeed changes the bus clock when the host driver allows it.
func (b *GenericBus) SetSpeed(hz int) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	err := b.bus.SetSpeed(physic.Frequency(hz) * physic.Hertz)
	if err != nil {
		return fmt.Errorf("could not set bus speed: %w", err)
	}
	return nil
}

func (b *GenericBus) Release(ctx context.Context) error {
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}
