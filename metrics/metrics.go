// Package metrics defines the Prometheus metrics of the session client.
//
// Naming follows Prometheus conventions:
//   - authclient_ prefix for all metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSuccess      = "success"
	OutcomeRejected     = "rejected"
	OutcomeInvalidToken = "invalid_token"
	OutcomeStorageError = "storage_error"
	OutcomeSkipped      = "skipped"
	OutcomeRemoteFailed = "remote_failed"
	OutcomeReplaced     = "replaced"
)

type Metrics struct {
	LoginsTotal            *prometheus.CounterVec
	RefreshesTotal         *prometheus.CounterVec
	RefreshDurationSeconds prometheus.Histogram
	RetriesTotal           prometheus.Counter
	LogoutsTotal           *prometheus.CounterVec
	ForcedNavigationsTotal prometheus.Counter
}

// New creates the metrics and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authclient_logins_total",
				Help: "Login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authclient_refreshes_total",
				Help: "Token refresh attempts by outcome.",
			},
			[]string{"outcome"},
		),
		RefreshDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "authclient_refresh_duration_seconds",
				Help:    "Duration of refresh calls to the auth endpoint.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		RetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authclient_request_retries_total",
				Help: "Requests resent after a token refresh.",
			},
		),
		LogoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authclient_logouts_total",
				Help: "Logouts by outcome of the remote call.",
			},
			[]string{"outcome"},
		),
		ForcedNavigationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authclient_forced_navigations_total",
				Help: "Redirects to the login entry point after a failed refresh.",
			},
		),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.LoginsTotal,
		m.RefreshesTotal,
		m.RefreshDurationSeconds,
		m.RetriesTotal,
		m.LogoutsTotal,
		m.ForcedNavigationsTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "[metrics.New]")
		}
	}
	return m, nil
}

func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// RecordRefresh counts a refresh and, for attempts that reached the network,
// its duration.
func (m *Metrics) RecordRefresh(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		m.RefreshDurationSeconds.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) RecordLogout(outcome string) {
	if m == nil {
		return
	}
	m.LogoutsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordForcedNavigation() {
	if m == nil {
		return
	}
	m.ForcedNavigationsTotal.Inc()
}
