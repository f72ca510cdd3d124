// Package metrics собирает метрики Prometheus для конвейера детекции.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Метки исхода предсказания.
const (
	StatusOK          = "ok"
	StatusUnavailable = "unavailable"
	StatusInvalid     = "invalid"
	StatusError       = "error"
)

// Metrics содержит метрики загрузки модели и предсказаний.
// Нулевой *Metrics допустим и ничего не записывает.
type Metrics struct {
	PredictionTotal    *prometheus.CounterVec
	PredictionDuration prometheus.Histogram
	DetectionCounter   *prometheus.CounterVec
	ModelLoadTotal     *prometheus.CounterVec
	ModelLoadedGauge   prometheus.Gauge

	registry *prometheus.Registry
}

// New создаёт метрики и регистрирует их в registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	if registry == nil {
		return nil, errors.New("prometheus registry is nil")
	}
	m := &Metrics{registry: registry}
	m.initMetrics()

	collectors := []prometheus.Collector{
		m.PredictionTotal,
		m.PredictionDuration,
		m.DetectionCounter,
		m.ModelLoadTotal,
		m.ModelLoadedGauge,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.PredictionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binvision_predictions_total",
			Help: "Total number of prediction requests partitioned by outcome.",
		},
		[]string{"status"},
	)
	m.PredictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "binvision_prediction_duration_seconds",
			Help:    "Time taken to run inference, build the message and annotate the image.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // от 5 мс до ~10 с
		},
	)
	m.DetectionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binvision_detections_total",
			Help: "Total number of detections partitioned by class name.",
		},
		[]string{"class"},
	)
	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binvision_model_loads_total",
			Help: "Total number of model load attempts partitioned by outcome.",
		},
		[]string{"status"},
	)
	m.ModelLoadedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "binvision_model_loaded",
			Help: "1 if the detection model is loaded, 0 otherwise.",
		},
	)
}

// Registry возвращает реестр, в котором зарегистрированы метрики.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordModelLoad фиксирует исход однократной загрузки модели.
func (m *Metrics) RecordModelLoad(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ModelLoadTotal.WithLabelValues(StatusError).Inc()
		m.ModelLoadedGauge.Set(0)
		return
	}
	m.ModelLoadTotal.WithLabelValues(StatusOK).Inc()
	m.ModelLoadedGauge.Set(1)
}

// RecordPrediction фиксирует один запрос предсказания.
func (m *Metrics) RecordPrediction(status string, d time.Duration, classes []string) {
	if m == nil {
		return
	}
	m.PredictionTotal.WithLabelValues(status).Inc()
	if status == StatusOK {
		m.PredictionDuration.Observe(d.Seconds())
	}
	for _, c := range classes {
		m.DetectionCounter.WithLabelValues(c).Inc()
	}
}
