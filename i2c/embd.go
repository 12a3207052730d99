package i2c

import (
	"context"
	"fmt"
	"sync"

	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all"

	"github.com/mklimuk/npa700"
)

var _ npa700.I2CBus = &EmbdBus{}

// EmbdBus uses the embd host abstraction found on Raspberry Pi images.
type EmbdBus struct {
	mx  sync.Mutex
	bus embd.I2CBus
}

// NewEmbdBus initialises embd I2C support and opens bus number l.
func NewEmbdBus(l byte) (*EmbdBus, error) {
	if err := embd.InitI2C(); err != nil {
		return nil, fmt.Errorf("could not init embd i2c: %w", err)
	}
	return NewEmbdBusFrom(embd.NewI2CBus(l)), nil
}

func NewEmbdBusFrom(bus embd.I2CBus) *EmbdBus {
	return &EmbdBus{bus: bus}
}

// ReadFromAddr fails with ErrZeroLengthRead for an empty buffer, which embd
// would turn into a read(2) of nothing.
func (b *EmbdBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) == 0 {
		return ErrZeroLengthRead
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	data, err := b.bus.ReadBytes(address, len(buffer))
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	if len(data) != len(buffer) {
		return fmt.Errorf("short read from %x: %d of %d", address, len(data), len(buffer))
	}
	copy(buffer, data)
	return nil
}

func (b *EmbdBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	err := b.bus.WriteBytes(address, buffer)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *EmbdBus) Release(ctx context.Context) error {
	return nil
}

func (b *EmbdBus) Close() error {
	return b.bus.Close()
}
