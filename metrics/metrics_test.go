package metrics_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.RecordLogin(metrics.OutcomeSuccess)
	m.RecordRefresh(metrics.OutcomeSuccess, 20*time.Millisecond)
	m.RecordRefresh(metrics.OutcomeSkipped, 0)
	m.RecordRefresh(metrics.OutcomeRejected, time.Second)
	m.RecordRetry()
	m.RecordLogout(metrics.OutcomeRemoteFailed)
	m.RecordForcedNavigation()

	require.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues(metrics.OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RefreshesTotal.WithLabelValues(metrics.OutcomeSkipped)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RefreshesTotal.WithLabelValues(metrics.OutcomeRejected)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RetriesTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LogoutsTotal.WithLabelValues(metrics.OutcomeRemoteFailed)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ForcedNavigationsTotal))
	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 8, count)
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)
	_, err = metrics.New(reg)
	require.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.RecordLogin(metrics.OutcomeRejected)
		m.RecordRefresh(metrics.OutcomeSuccess, time.Second)
		m.RecordRetry()
		m.RecordLogout(metrics.OutcomeSuccess)
		m.RecordForcedNavigation()
	})
}
