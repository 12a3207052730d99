package npa700

import (
	"context"
	"encoding/hex"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type busCall struct {
	address byte
	length  int
	nilBuf  bool
}

// recorder serves a fixed register content and records every call.
type recorder struct {
	mx       sync.Mutex
	response []byte
	code     Code
	reads    []busCall
	writes   []busCall
}

func (r *recorder) write(ctx context.Context, address byte, data []byte) Code {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.writes = append(r.writes, busCall{address: address, length: len(data), nilBuf: data == nil})
	return r.code
}

func (r *recorder) read(ctx context.Context, address byte, data []byte) Code {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.reads = append(r.reads, busCall{address: address, length: len(data), nilBuf: data == nil})
	copy(data, r.response)
	return r.code
}

func (r *recorder) calls() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.reads) + len(r.writes)
}

func newRecorded(variant Variant, response []byte, opts ...SensorOption) (*Sensor, *recorder) {
	r := &recorder{response: response}
	return New(r.write, r.read, variant, opts...), r
}

func TestNPA700_ReadPressure_Scale(t *testing.T) {
	tests := []struct {
		name     string
		given    []byte
		expected func(scale float32) float32
	}{
		{"middle", []byte{0x20, 0x00}, func(scale float32) float32 { return 0 }},
		{"minimum", []byte{0x06, 0x66}, func(scale float32) float32 { return -scale }},
		{"maximum", []byte{0x39, 0x99}, func(scale float32) float32 { return scale }},
	}
	for _, variant := range Variants() {
		scale, ok := variant.Scale()
		require.True(t, ok)
		for _, test := range tests {
			t.Run(variant.String()+"/"+test.name, func(t *testing.T) {
				s, _ := newRecorded(variant, test.given)
				var pa float32
				code := s.ReadPressure(context.Background(), &pa)
				assert.Equal(t, Success, code)
				assert.InDelta(t, test.expected(scale), pa, float64(scale/4096))
			})
		}
	}
}

func TestNPA700_ReadPressure_KnownValues(t *testing.T) {
	tests := []struct {
		variant  Variant
		given    []byte
		expected float32
	}{
		{Variant001D, []byte{0x20, 0x00}, 0.5257},
		{Variant02WD, []byte{0x13, 0x33}, -250.0},
		{Variant030D, []byte{0x2C, 0xCC}, 103412.1},
	}
	for _, test := range tests {
		t.Run(test.variant.String()+"/"+hex.EncodeToString(test.given), func(t *testing.T) {
			s, _ := newRecorded(test.variant, test.given)
			pa, code := s.Pressure(context.Background())
			assert.Equal(t, Success, code)
			assert.InDelta(t, test.expected, pa, 0.1)
		})
	}
}

func TestNPA700_NullDescriptor(t *testing.T) {
	r := &recorder{response: []byte{0x20, 0x00}}
	tests := []struct {
		name   string
		sensor *Sensor
	}{
		{"nil sensor", nil},
		{"nil write", New(nil, r.read, Variant001D)},
		{"nil read", New(r.write, nil, Variant001D)},
		{"nil both", New(nil, nil, Variant001D)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := context.Background()
			code := test.sensor.TriggerSample(ctx)
			assert.Equal(t, ErrNull, code)
			assert.True(t, code.IsFatal())

			pa := float32(42)
			code = test.sensor.ReadPressure(ctx, &pa)
			assert.Equal(t, ErrNull, code)
			assert.Equal(t, float32(42), pa, "output must not be touched")

			code = test.sensor.ReadPressure(ctx, nil)
			assert.Equal(t, ErrNull, code)
			assert.Equal(t, 0, r.calls())
		})
	}
}

func TestNPA700_ReadPressure_NilOutput(t *testing.T) {
	s, r := newRecorded(Variant001D, []byte{0x20, 0x00})
	code := s.ReadPressure(context.Background(), nil)
	assert.Equal(t, ErrNull, code)
	assert.Equal(t, 0, r.calls())
}

func TestNPA700_ReadPressure_Status(t *testing.T) {
	tests := []struct {
		name     string
		given    []byte
		expected Code
		fatal    bool
	}{
		{"normal", []byte{0x20, 0x00}, Success, false},
		{"command mode", []byte{0x60, 0x00}, ErrMode, true},
		{"stale", []byte{0xA0, 0x00}, WarnStale, false},
		{"diagnostic", []byte{0xE0, 0x00}, ErrInternal, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, _ := newRecorded(Variant005D, test.given)
			pa := float32(-1)
			code := s.ReadPressure(context.Background(), &pa)
			assert.Equal(t, test.expected, code)
			assert.Equal(t, test.fatal, code.IsFatal())
			// status bits are masked out of the count in every case
			assert.InDelta(t, 0, pa, Scale005D/4096.0)
		})
	}
}

func TestNPA700_ReadPressure_Saturation(t *testing.T) {
	tests := []struct {
		count     uint16
		saturated bool
	}{
		{CountMinSaturated, true},
		{CountMinNonSaturated - 1, true},
		{CountMinNonSaturated, false},
		{CountMiddle, false},
		{CountMaxNonSaturated, false},
		{CountMaxNonSaturated + 1, true},
		{CountMaxSaturated, true},
	}
	const scale = float64(Scale001D)
	for _, test := range tests {
		raw := EncodeRaw(StatusNormal, test.count)
		t.Run(hex.EncodeToString(raw[:]), func(t *testing.T) {
			s, _ := newRecorded(Variant001D, raw[:])
			pa, code := s.Pressure(context.Background())
			assert.Equal(t, test.saturated, code.Has(WarnSaturated))
			assert.False(t, code.IsFatal())
			// no clamping: the formula runs over the whole 14-bit domain
			expected := -scale + (float64(test.count)-1638)/(14745-1638)*2*scale
			assert.InDelta(t, expected, pa, scale/4096)
		})
	}
}

func TestNPA700_ReadPressure_Poison(t *testing.T) {
	s, r := newRecorded(Variant001D, nil)
	r.code = ErrNACK
	pa := float32(1)
	code := s.ReadPressure(context.Background(), &pa)
	assert.True(t, code.Has(ErrNACK))
	assert.True(t, code.Has(ErrInternal), "untouched buffer decodes to diagnostic status")
	assert.True(t, code.Has(WarnSaturated), "untouched buffer decodes to a saturated count")
	assert.Equal(t, ErrNACK|ErrInternal|WarnSaturated, code)
	require.Len(t, r.reads, 1)
	assert.Equal(t, busCall{address: DefaultAddress, length: 2}, r.reads[0])
}

func TestNPA700_ReadPressure_TransportWarningCombined(t *testing.T) {
	s, r := newRecorded(Variant10WD, []byte{0x80, 0x10})
	r.code = ErrTimeout
	_, code := s.Pressure(context.Background())
	assert.Equal(t, ErrTimeout|WarnStale|WarnSaturated, code)
	assert.True(t, code.IsFatal())
}

func TestNPA700_ReadPressure_UnknownVariant(t *testing.T) {
	s, _ := newRecorded(Variant(42), []byte{0x20, 0x00})
	pa := float32(123)
	code := s.ReadPressure(context.Background(), &pa)
	assert.Equal(t, ErrInternal, code)
	assert.Equal(t, float32(123), pa)
}

func TestNPA700_TriggerSample(t *testing.T) {
	s, r := newRecorded(Variant015D, nil, WithAddress(0x33))
	code := s.TriggerSample(context.Background())
	assert.Equal(t, Success, code)
	require.Len(t, r.reads, 1)
	assert.Equal(t, busCall{address: 0x33, length: 0, nilBuf: true}, r.reads[0])
	assert.Empty(t, r.writes)
}

func TestNPA700_TriggerSample_TransportError(t *testing.T) {
	s, r := newRecorded(Variant015D, nil)
	r.code = ErrNACK
	assert.Equal(t, ErrNACK, s.TriggerSample(context.Background()))
}

func TestNPA700_Temperature_NotImplemented(t *testing.T) {
	s, r := newRecorded(Variant001D, []byte{0x20, 0x00})
	ctx := context.Background()
	var pa, temp float32
	for _, sensor := range []*Sensor{s, nil} {
		assert.Equal(t, ErrNotImplemented, sensor.ReadPressureTempLowRes(ctx, &pa, &temp))
		assert.Equal(t, ErrNotImplemented, sensor.ReadPressureTempHiRes(ctx, &pa, &temp))
		assert.Equal(t, ErrNotImplemented, sensor.ReadPressureTempHiRes(ctx, nil, nil))
	}
	assert.Equal(t, 0, r.calls())
}

func TestNPA700_Descriptor(t *testing.T) {
	s, _ := newRecorded(Variant030D, nil)
	assert.Equal(t, byte(DefaultAddress), s.Address())
	assert.Equal(t, Variant030D, s.Variant())
	assert.Equal(t, "NPA-700-030D@0x28", s.String())

	var empty *Sensor
	assert.Equal(t, "npa700(nil)", empty.String())
}

func TestNPA700_ConcurrentReads(t *testing.T) {
	bus := NewMockBus(Variant001D, func(ctx context.Context) (float32, error) { return 1000, nil })
	s := NewFromBus(bus, Variant001D)
	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				pa, code := s.Pressure(context.Background())
				assert.False(t, code.IsFatal())
				assert.InDelta(t, 1000, pa, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, workers*10, bus.Reads())
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusNormal, StatusOf(0x3F))
	assert.Equal(t, StatusCommand, StatusOf(0x40))
	assert.Equal(t, StatusStale, StatusOf(0x80))
	assert.Equal(t, StatusDiagnose, StatusOf(0xFF))
}
