package exporter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/npa700"
)

func TestExporter_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	e, err := New(reg)
	require.NoError(t, err)

	e.Observe("duct", 120.5, npa700.Success)
	e.Observe("duct", 130, npa700.WarnStale)
	e.Observe("duct", 0, npa700.ErrNACK|npa700.ErrInternal|npa700.WarnSaturated)

	assert.Equal(t, 130.0, testutil.ToFloat64(e.pressure.WithLabelValues("duct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.reads.WithLabelValues("duct", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.reads.WithLabelValues("duct", ResultWarning)))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.reads.WithLabelValues("duct", ResultFatal)))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.flags.WithLabelValues("duct", "stale data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.flags.WithLabelValues("duct", "nack")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.flags.WithLabelValues("duct", "saturated")))

	_, err = New(reg)
	assert.Error(t, err, "collectors cannot be registered twice")
}

func TestExporter_Watch(t *testing.T) {
	reg := prometheus.NewRegistry()
	e, err := New(reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reads := 0
	sensor := npa700.NewMockPressureSensor(func(ctx context.Context) (float32, npa700.Code) {
		return 42, npa700.Success
	})
	err = e.Watch(ctx, "filter", sensor, time.Millisecond, func(pa float32, code npa700.Code) {
		reads++
		if reads == 3 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, reads)
	assert.Equal(t, 3.0, testutil.ToFloat64(e.reads.WithLabelValues("filter", ResultOK)))
	assert.Equal(t, 42.0, testutil.ToFloat64(e.pressure.WithLabelValues("filter")))

	assert.Error(t, e.Watch(context.Background(), "filter", sensor, 0, nil))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	e, err := New(reg)
	require.NoError(t, err)
	e.Observe("duct", -12, npa700.Success)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `npa700_pressure_pascals{sensor="duct"} -12`), body)
	assert.True(t, strings.Contains(body, `npa700_reads_total{result="ok",sensor="duct"} 1`), body)
}
