// Package vision загружает ONNX-модель YOLO и превращает её выход в детекции.
package vision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"bin-vision/internal/domain/entity"
	"bin-vision/internal/domain/port"
)

// Options параметры модели, не хранящиеся в самом артефакте.
type Options struct {
	LabelsPath    string  // таблица имён классов; если пусто, берётся рядом с моделью
	InputSize     int     // сторона квадратного входа сети
	NMSThreshold  float64 // порог IoU для подавления рамок
	MaxDetections int     // предел числа детекций, 0 означает без предела
}

// DefaultOptions возвращает параметры экспорта YOLO по умолчанию.
func DefaultOptions() Options {
	return Options{
		InputSize:     640,
		NMSThreshold:  0.45,
		MaxDetections: 300,
	}
}

// ONNXLoader загружает модель из файла .onnx и таблицу имён из YAML.
type ONNXLoader struct {
	opts Options
	log  logrus.FieldLogger
}

// NewONNXLoader создаёт загрузчик.
func NewONNXLoader(opts Options, log logrus.FieldLogger) *ONNXLoader {
	if opts.InputSize <= 0 {
		opts.InputSize = DefaultOptions().InputSize
	}
	return &ONNXLoader{opts: opts, log: log.WithField("component", "model-loader")}
}

// Load проверяет файл, читает имена классов и собирает сеть.
func (l *ONNXLoader) Load(ctx context.Context, path string) (port.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrModelLoad, err)
	}
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrFileNotFound, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", entity.ErrFileNotFound, path)
	}

	labelsPath := l.opts.LabelsPath
	if labelsPath == "" {
		labelsPath = LabelsPath(path)
	}
	names, err := LoadClassNames(labelsPath)
	if err != nil {
		// Модель без таблицы имён непригодна: это ошибка загрузки, а не отсутствие артефакта.
		if errors.Is(err, entity.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: class names not found at %s", entity.ErrModelLoad, labelsPath)
		}
		return nil, err
	}

	model, err := openNetwork(path, names, l.opts)
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"path":     path,
		"size":     info.Size(),
		"classes":  len(names),
		"duration": time.Since(start).String(),
	}).Info("Detection model loaded")

	return model, nil
}

var _ port.ModelLoader = (*ONNXLoader)(nil)
