// Package metrics exposes run telemetry in Prometheus format. Every run owns
// its registry, so concurrent runs never share collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"shakeout/internal/stats"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Registry holds the collectors of one run.
type Registry struct {
	reg *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Registry{
		reg: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shakeout_requests_total",
				Help: "Total number of operations executed",
			},
			[]string{"operation", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shakeout_request_duration_seconds",
				Help:    "Operation duration in seconds, retries included",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
			},
			[]string{"operation"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shakeout_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"policy"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shakeout_errors_total",
				Help: "Total number of failed operations by kind",
			},
			[]string{"kind"},
		),
	}
}

// Observe implements stats.Observer.
func (r *Registry) Observe(s stats.Sample) {
	outcome := OutcomeSuccess
	if !s.Succeeded {
		outcome = OutcomeFailure
		r.errorsTotal.WithLabelValues(string(s.ErrorKind)).Inc()
	}
	r.requestsTotal.WithLabelValues(s.Operation, outcome).Inc()
	r.requestDuration.WithLabelValues(s.Operation).Observe(s.Duration.Seconds())
}

// RecordRetry counts one retry under policy.
func (r *Registry) RecordRetry(policy string) {
	r.retriesTotal.WithLabelValues(policy).Inc()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Registry) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	router := chi.NewRouter()
	router.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
