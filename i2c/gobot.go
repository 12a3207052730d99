package i2c

import (
	"context"
	"fmt"
	"sync"

	gobotI2C "gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/npa700"
)

var _ npa700.I2CBus = &GobotBus{}

// Connector is the part of a gobot adaptor needed to reach I2C devices.
type Connector interface {
	GetI2cConnection(address int, busNr int) (gobotI2C.Connection, error)
}

// GobotBus reaches devices through a gobot adaptor. Connections are opened
// lazily and kept per device address.
type GobotBus struct {
	mx          sync.Mutex
	connector   Connector
	busNr       int
	connections map[byte]gobotI2C.Connection
}

// NewNanoPiBus connects a NanoPi NEO adaptor and uses its bus number busNr.
func NewNanoPiBus(busNr int) (*GobotBus, error) {
	adaptor := nanopi.NewNeoAdaptor()
	err := adaptor.Connect()
	if err != nil {
		return nil, fmt.Errorf("could not connect NanoPi adaptor: %w", err)
	}
	return NewGobotBus(adaptor, busNr), nil
}

func NewGobotBus(connector Connector, busNr int) *GobotBus {
	return &GobotBus{
		connector:   connector,
		busNr:       busNr,
		connections: make(map[byte]gobotI2C.Connection),
	}
}

func (b *GobotBus) connection(address byte) (gobotI2C.Connection, error) {
	if conn, ok := b.connections[address]; ok {
		return conn, nil
	}
	conn, err := b.connector.GetI2cConnection(int(address), b.busNr)
	if err != nil {
		return nil, fmt.Errorf("could not open connection to %x on bus %d: %w", address, b.busNr, err)
	}
	b.connections[address] = conn
	return conn, nil
}

// ReadFromAddr fails with ErrZeroLengthRead for an empty buffer, which the
// sysfs connection would complete without a transfer.
func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) == 0 {
		return ErrZeroLengthRead
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	n, err := conn.Read(buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short read from %x: %d of %d", address, n, len(buffer))
	}
	return nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	n, err := conn.Write(buffer)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short write to %x: %d of %d", address, n, len(buffer))
	}
	return nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

// Close closes every connection opened so far.
func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var first error
	for addr, conn := range b.connections {
		if err := conn.Close(); err != nil && first == nil {
			first = fmt.Errorf("could not close connection to %x: %w", addr, err)
		}
		delete(b.connections, addr)
	}
	return first
}
