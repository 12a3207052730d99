// Package exporter publishes NPA-700 readings as Prometheus metrics.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mklimuk/npa700"
)

const namespace = "npa700"

const (
	ResultOK      = "ok"
	ResultWarning = "warning"
	ResultFatal   = "fatal"
)

type Exporter struct {
	pressure *prometheus.GaugeVec
	reads    *prometheus.CounterVec
	flags    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Exporter, error) {
	e := &Exporter{
		pressure: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pressure_pascals",
			Help:      "Last differential pressure read from the sensor.",
		}, []string{"sensor"}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Pressure reads by result.",
		}, []string{"sensor", "result"}),
		flags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flags_total",
			Help:      "Result flags raised by pressure reads.",
		}, []string{"sensor", "flag"}),
	}
	for _, c := range []prometheus.Collector{e.pressure, e.reads, e.flags} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("exporter: could not register collector: %w", err)
		}
	}
	return e, nil
}

// Observe records one read. The gauge keeps its previous value when the read
// failed.
func (e *Exporter) Observe(sensor string, pa float32, code npa700.Code) {
	result := ResultOK
	switch {
	case code.IsFatal():
		result = ResultFatal
	case code.IsWarning():
		result = ResultWarning
	}
	e.reads.WithLabelValues(sensor, result).Inc()
	for _, f := range code.Flags() {
		e.flags.WithLabelValues(sensor, f.String()).Inc()
	}
	if result != ResultFatal {
		e.pressure.WithLabelValues(sensor).Set(float64(pa))
	}
}

// Watch reads r every interval until ctx is done. onRead, when set, sees
// every reading after it was recorded.
func (e *Exporter) Watch(ctx context.Context, sensor string, r npa700.PressureReader, interval time.Duration, onRead func(pa float32, code npa700.Code)) error {
	if interval <= 0 {
		return fmt.Errorf("exporter: invalid interval %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		pa, code := r.Pressure(ctx)
		e.Observe(sensor, pa, code)
		if code.IsFatal() {
			slog.Debug("pressure read failed", "sensor", sensor, "code", code)
		}
		if onRead != nil {
			onRead(pa, code)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return fmt.Errorf("exporter: metrics server failed: %w", err)
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}
