package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	require.Same(t, reg, m.Registry())

	_, err = New(reg)
	require.Error(t, err, "second registration must collide")

	_, err = New(nil)
	require.Error(t, err)
}

func TestRecordModelLoad(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordModelLoad(errors.New("boom"))
	require.Equal(t, 0.0, testutil.ToFloat64(m.ModelLoadedGauge))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ModelLoadTotal.WithLabelValues(StatusError)))

	m.RecordModelLoad(nil)
	require.Equal(t, 1.0, testutil.ToFloat64(m.ModelLoadedGauge))
}

func TestRecordPrediction(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordPrediction(StatusOK, 30*time.Millisecond, []string{"FULL", "FULL", "EMPTY"})
	m.RecordPrediction(StatusUnavailable, 0, nil)

	require.Equal(t, 1.0, testutil.ToFloat64(m.PredictionTotal.WithLabelValues(StatusOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PredictionTotal.WithLabelValues(StatusUnavailable)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.DetectionCounter.WithLabelValues("FULL")))
	require.Equal(t, 1, testutil.CollectAndCount(m.PredictionDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordModelLoad(nil)
		m.RecordPrediction(StatusOK, time.Second, []string{"x"})
	})
	require.Nil(t, m.Registry())
}
