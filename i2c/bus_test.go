package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/kidoman/embd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gobotI2C "gobot.io/x/gobot/v2/drivers/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/mklimuk/npa700"
)

func TestGenericBus_Pressure(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x28, W: nil, R: []byte{0x20, 0x00}},
		},
	}
	bus := NewGenericBusFrom(playback)
	s := npa700.NewFromBus(bus, npa700.Variant001D)
	ctx := context.Background()

	pa, code := s.Pressure(ctx)
	assert.Equal(t, npa700.Success, code)
	assert.InDelta(t, 0.5257, pa, 0.001)
	require.NoError(t, bus.Close())
}

func TestGenericBus_TriggerUnsupported(t *testing.T) {
	playback := &i2ctest.Playback{DontPanic: true}
	bus := NewGenericBusFrom(playback)
	s := npa700.NewFromBus(bus, npa700.Variant001D)

	code := s.TriggerSample(context.Background())
	assert.True(t, code.IsFatal())
	assert.True(t, code.Has(npa700.ErrNotImplemented))
	assert.ErrorIs(t, bus.ReadFromAddr(context.Background(), 0x28, nil), ErrZeroLengthRead)
	assert.Equal(t, 0, playback.Count, "no transfer must reach the bus")
}

func TestGenericBus_Error(t *testing.T) {
	playback := &i2ctest.Playback{DontPanic: true}
	bus := NewGenericBusFrom(playback)
	err := bus.WriteToAddr(context.Background(), 0x28, []byte{0x01})
	assert.Error(t, err)
}

type fakeTinyGo struct {
	addr uint16
	w    []byte
	resp []byte
	err  error
}

func (f *fakeTinyGo) ReadRegister(addr uint8, r uint8, buf []byte) error {
	return nil
}

func (f *fakeTinyGo) WriteRegister(addr uint8, r uint8, buf []byte) error {
	return nil
}

func (f *fakeTinyGo) Tx(addr uint16, w, r []byte) error {
	f.addr = addr
	f.w = w
	copy(r, f.resp)
	return f.err
}

func TestTinyGoBus(t *testing.T) {
	fake := &fakeTinyGo{resp: []byte{0x39, 0x99}}
	s := npa700.NewFromBus(NewTinyGoBus(fake), npa700.Variant02WD, npa700.WithAddress(0x29))
	pa, code := s.Pressure(context.Background())
	assert.Equal(t, npa700.Success, code)
	assert.InDelta(t, 500, pa, 0.01)
	assert.Equal(t, uint16(0x29), fake.addr)

	fake.err = errors.New("nack")
	_, code = s.Pressure(context.Background())
	assert.True(t, code.Has(npa700.ErrNACK))

	require.Error(t, NewTinyGoBus(fake).WriteToAddr(context.Background(), 0x29, []byte{0xA0}))
	assert.Equal(t, []byte{0xA0}, fake.w)
}

type fakeEmbd struct {
	embd.I2CBus
	reads  map[byte][]byte
	writes [][]byte
	calls  int
	closed bool
}

func (f *fakeEmbd) ReadBytes(addr byte, num int) ([]byte, error) {
	f.calls++
	data, ok := f.reads[addr]
	if !ok {
		return nil, errors.New("no such device")
	}
	return data[:num], nil
}

func (f *fakeEmbd) WriteBytes(addr byte, value []byte) error {
	f.writes = append(f.writes, value)
	return nil
}

func (f *fakeEmbd) Close() error {
	f.closed = true
	return nil
}

func TestEmbdBus(t *testing.T) {
	fake := &fakeEmbd{reads: map[byte][]byte{0x28: {0xB9, 0x99}}}
	bus := NewEmbdBusFrom(fake)
	s := npa700.NewFromBus(bus, npa700.Variant05WD)
	ctx := context.Background()

	code := s.TriggerSample(ctx)
	assert.True(t, code.Has(npa700.ErrNotImplemented))
	assert.Equal(t, 0, fake.calls, "trigger must not reach embd")

	pa, code := s.Pressure(ctx)
	assert.Equal(t, npa700.WarnStale, code)
	assert.InDelta(t, 1250, pa, 0.1)

	s = npa700.NewFromBus(bus, npa700.Variant05WD, npa700.WithAddress(0x30))
	_, code = s.Pressure(ctx)
	assert.True(t, code.Has(npa700.ErrNACK))

	require.NoError(t, bus.WriteToAddr(ctx, 0x28, []byte{0x01, 0x02}))
	assert.Equal(t, [][]byte{{0x01, 0x02}}, fake.writes)
	require.NoError(t, bus.Close())
	assert.True(t, fake.closed)
}

type fakeConnection struct {
	gobotI2C.Connection
	data   []byte
	closed bool
}

func (f *fakeConnection) Read(b []byte) (int, error) {
	return copy(b, f.data), nil
}

func (f *fakeConnection) Write(b []byte) (int, error) {
	return len(b), nil
}

func (f *fakeConnection) Close() error {
	f.closed = true
	return nil
}

type fakeConnector struct {
	opened []int
	conn   *fakeConnection
}

func (f *fakeConnector) GetI2cConnection(address int, busNr int) (gobotI2C.Connection, error) {
	if busNr != 0 {
		return nil, errors.New("no such bus")
	}
	f.opened = append(f.opened, address)
	return f.conn, nil
}

func TestGobotBus(t *testing.T) {
	conn := &fakeConnection{data: []byte{0x06, 0x66}}
	connector := &fakeConnector{conn: conn}
	bus := NewGobotBus(connector, 0)
	s := npa700.NewFromBus(bus, npa700.Variant001D)
	ctx := context.Background()

	pa, code := s.Pressure(ctx)
	assert.Equal(t, npa700.Success, code)
	assert.InDelta(t, -npa700.Scale001D, pa, 1)
	_, code = s.Pressure(ctx)
	assert.Equal(t, npa700.Success, code)
	assert.Equal(t, []int{0x28}, connector.opened, "connection must be reused")

	code = s.TriggerSample(ctx)
	assert.True(t, code.Has(npa700.ErrNotImplemented))
	assert.Equal(t, []int{0x28}, connector.opened)

	conn.data = []byte{0x06}
	_, code = s.Pressure(ctx)
	assert.True(t, code.Has(npa700.ErrNACK))

	require.NoError(t, bus.Close())
	assert.True(t, conn.closed)

	_, code = npa700.NewFromBus(NewGobotBus(connector, 3), npa700.Variant001D).Pressure(ctx)
	assert.True(t, code.Has(npa700.ErrNACK))
}
