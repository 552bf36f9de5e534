// Package metrics defines the Prometheus metrics exported by tgrelay.
//
// Metrics live on a private registry rather than the global default so
// that tests can build independent instances. Naming follows Prometheus
// conventions:
//   - tgrelay_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/tgrelay/internal/telegram"
)

// Telegram call results.
const (
	ResultOK       = "ok"
	ResultAPIError = "api_error"
	ResultError    = "error"
)

// Metrics holds every collector plus the registry that serves them.
type Metrics struct {
	Registry *prometheus.Registry

	UpdatesTotal          *prometheus.CounterVec
	UpdateDurationSeconds *prometheus.HistogramVec
	TelegramCallsTotal    *prometheus.CounterVec
	ForwardFallbacksTotal prometheus.Counter
	ForwardFailuresTotal  prometheus.Counter
	DedupErrorsTotal      prometheus.Counter
	DedupPrunedTotal      prometheus.Counter
	RegistrationsTotal    *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry,
// including the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		UpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgrelay_updates_total",
				Help: "Webhook updates handled, by routing branch.",
			},
			[]string{"route"},
		),
		UpdateDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tgrelay_update_duration_seconds",
				Help:    "Time spent handling one webhook update.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route"},
		),
		TelegramCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgrelay_telegram_calls_total",
				Help: "Bot API calls by method and result.",
			},
			[]string{"method", "result"},
		),
		ForwardFallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tgrelay_forward_fallbacks_total",
			Help: "Forwards retried with the callback_data encoding after a rejection.",
		}),
		ForwardFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tgrelay_forward_failures_total",
			Help: "Forwards rejected on both encodings.",
		}),
		DedupErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tgrelay_dedup_errors_total",
			Help: "Dedup store operations that failed.",
		}),
		DedupPrunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tgrelay_dedup_pruned_total",
			Help: "Expired dedup records removed by the prune job.",
		}),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgrelay_registrations_total",
				Help: "Webhook install and uninstall attempts by result.",
			},
			[]string{"action", "result"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.UpdatesTotal,
		m.UpdateDurationSeconds,
		m.TelegramCallsTotal,
		m.ForwardFallbacksTotal,
		m.ForwardFailuresTotal,
		m.DedupErrorsTotal,
		m.DedupPrunedTotal,
		m.RegistrationsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveUpdate records one handled update.
func (m *Metrics) ObserveUpdate(route string, d time.Duration) {
	m.UpdatesTotal.WithLabelValues(route).Inc()
	m.UpdateDurationSeconds.WithLabelValues(route).Observe(d.Seconds())
}

// TelegramObserver returns a telegram.Observer that counts calls.
func (m *Metrics) TelegramObserver() telegram.Observer {
	return func(method string, err error) {
		m.TelegramCallsTotal.WithLabelValues(method, CallResult(err)).Inc()
	}
}

// CallResult maps a Bot API call error to a result label.
func CallResult(err error) string {
	if err == nil {
		return ResultOK
	}
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		return ResultAPIError
	}
	return ResultError
}
