package app

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"bin-vision/internal/domain/entity"
	"bin-vision/internal/domain/port"
)

// fakeLoader считает обращения к загрузке.
type fakeLoader struct {
	calls atomic.Int32
	model port.Model
	err   error
}

func (l *fakeLoader) Load(ctx context.Context, path string) (port.Model, error) {
	l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return l.model, nil
}

// fakeModel возвращает заранее заданные детекции, не глядя на порог.
type fakeModel struct {
	detections entity.DetectionSet
	names      entity.ClassNameTable
	err        error
	block      chan struct{}
	panicMsg   string
	calls      atomic.Int32
}

func (m *fakeModel) Infer(ctx context.Context, img image.Image, threshold float64) (entity.DetectionSet, error) {
	m.calls.Add(1)
	if m.block != nil {
		<-m.block
	}
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make(entity.DetectionSet, len(m.detections))
	copy(out, m.detections)
	return out, nil
}

func (m *fakeModel) ClassNames() entity.ClassNameTable {
	return m.names
}

func nullLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func newRegistry(loader port.ModelLoader) *ModelRegistry {
	return NewModelRegistry(loader, nil, nullLogger())
}
