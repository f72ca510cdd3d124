package app

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"bin-vision/internal/domain/port"
	"bin-vision/internal/observability/metrics"
)

// ErrRegistryNotInitialized возвращается, пока Init не вызывался.
var ErrRegistryNotInitialized = errors.New("model registry is not initialized")

// ModelRegistry держит единственную на процесс модель.
// Загрузка выполняется один раз; результат (модель или ошибка) кэшируется до перезапуска.
type ModelRegistry struct {
	loader  port.ModelLoader
	metrics *metrics.Metrics
	log     logrus.FieldLogger

	once  sync.Once
	ready chan struct{}
	path  string
	model port.Model
	err   error
}

// NewModelRegistry создаёт реестр поверх загрузчика.
func NewModelRegistry(loader port.ModelLoader, m *metrics.Metrics, log logrus.FieldLogger) *ModelRegistry {
	return &ModelRegistry{
		loader:  loader,
		metrics: m,
		log:     log.WithField("component", "model-registry"),
		ready:   make(chan struct{}),
	}
}

// Init загружает модель при первом вызове. Повторные вызовы, в том числе с другим
// путём, возвращают закэшированный результат и не трогают загрузчик.
func (r *ModelRegistry) Init(ctx context.Context, path string) (port.Model, error) {
	r.once.Do(func() {
		defer close(r.ready)

		r.path = path
		r.model, r.err = r.loader.Load(ctx, path)
		if r.err != nil {
			r.model = nil
			r.log.WithError(r.err).WithField("path", path).Error("Detection model is unavailable")
		}
		r.metrics.RecordModelLoad(r.err)
	})
	<-r.ready

	if path != r.path {
		r.log.WithFields(logrus.Fields{"requested": path, "loaded": r.path}).
			Warn("Model registry already initialized, ignoring new path")
	}
	return r.model, r.err
}

// Model возвращает модель, если она загружена.
func (r *ModelRegistry) Model() (port.Model, bool) {
	if !r.initialized() {
		return nil, false
	}
	return r.model, r.model != nil
}

// Err возвращает ошибку загрузки.
func (r *ModelRegistry) Err() error {
	if !r.initialized() {
		return ErrRegistryNotInitialized
	}
	return r.err
}

// Path возвращает путь, с которого загружалась модель.
func (r *ModelRegistry) Path() string {
	if !r.initialized() {
		return ""
	}
	return r.path
}

func (r *ModelRegistry) initialized() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}
