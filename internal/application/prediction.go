package app

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"bin-vision/internal/domain/entity"
	"bin-vision/internal/domain/port"
	"bin-vision/internal/observability/metrics"
)

// DefaultInferenceTimeout ограничивает один вызов модели.
const DefaultInferenceTimeout = 10 * time.Second

// PredictionService выполняет инференс, строит сообщение и размечает изображение.
type PredictionService struct {
	registry  *ModelRegistry
	annotator port.Annotator
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	timeout   time.Duration
}

// NewPredictionService создаёт конвейер поверх реестра модели.
func NewPredictionService(registry *ModelRegistry, annotator port.Annotator, m *metrics.Metrics, timeout time.Duration, log logrus.FieldLogger) *PredictionService {
	if timeout <= 0 {
		timeout = DefaultInferenceTimeout
	}
	return &PredictionService{
		registry:  registry,
		annotator: annotator,
		metrics:   m,
		log:       log.WithField("component", "prediction"),
		timeout:   timeout,
	}
}

// Available сообщает, загружена ли модель.
func (s *PredictionService) Available() bool {
	_, ok := s.registry.Model()
	return ok
}

// Predict прогоняет изображение через модель.
// Без модели возвращает исходное изображение и entity.MsgModelUnavailable без ошибки.
// Сбой самой модели возвращается как entity.ErrInference.
func (s *PredictionService) Predict(ctx context.Context, img image.Image, threshold float64) (*entity.PredictionResult, error) {
	if img == nil || img.Bounds().Empty() {
		s.metrics.RecordPrediction(metrics.StatusInvalid, 0, nil)
		return nil, fmt.Errorf("%w: empty image", entity.ErrInvalidImage)
	}
	if threshold < 0 || threshold > 1 {
		s.metrics.RecordPrediction(metrics.StatusInvalid, 0, nil)
		return nil, fmt.Errorf("%w: got %v", entity.ErrInvalidThreshold, threshold)
	}

	model, ok := s.registry.Model()
	if !ok {
		s.metrics.RecordPrediction(metrics.StatusUnavailable, 0, nil)
		return &entity.PredictionResult{
			Image:          img,
			Message:        entity.MsgModelUnavailable,
			ModelAvailable: false,
		}, nil
	}

	start := time.Now()
	raw, err := s.infer(ctx, model, img, threshold)
	if err != nil {
		s.metrics.RecordPrediction(metrics.StatusError, 0, nil)
		s.log.WithError(err).Error("Inference failed")
		return nil, fmt.Errorf("%w: %v", entity.ErrInference, err)
	}

	names := model.ClassNames()
	detections := raw.Above(threshold)
	result := &entity.PredictionResult{
		Image:          s.annotator.Annotate(img, detections, names),
		Message:        Message(detections, names),
		Detections:     detections,
		Names:          names,
		ModelAvailable: true,
	}

	elapsed := time.Since(start)
	labels := Labels(detections, names)
	s.metrics.RecordPrediction(metrics.StatusOK, elapsed, labels)
	s.log.WithFields(logrus.Fields{
		"width":      img.Bounds().Dx(),
		"height":     img.Bounds().Dy(),
		"threshold":  threshold,
		"detections": len(detections),
		"duration":   elapsed.String(),
	}).Info(result.Message)

	return result, nil
}

type inferResult struct {
	detections entity.DetectionSet
	err        error
}

// infer вызывает модель с таймаутом. Горутина с моделью не прерывается,
// но её результат после таймаута отбрасывается.
func (s *PredictionService) infer(ctx context.Context, model port.Model, img image.Image, threshold float64) (entity.DetectionSet, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan inferResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- inferResult{err: fmt.Errorf("model panicked: %v", r)}
			}
		}()
		dets, err := model.Infer(ctx, img, threshold)
		done <- inferResult{detections: dets, err: err}
	}()

	select {
	case r := <-done:
		return r.detections, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("model did not answer: %w", ctx.Err())
	}
}
