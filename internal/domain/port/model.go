package port

import (
	"context"
	"image"

	"bin-vision/internal/domain/entity"
)

// Model интерфейс загруженной модели детекции
type Model interface {
	// Infer прогоняет изображение через модель и отбрасывает детекции ниже порога
	Infer(ctx context.Context, img image.Image, threshold float64) (entity.DetectionSet, error)

	// ClassNames возвращает таблицу имён классов модели
	ClassNames() entity.ClassNameTable
}

// ModelLoader интерфейс загрузчика модели из файла
type ModelLoader interface {
	// Load читает артефакт модели; ошибки сопоставимы с entity.ErrFileNotFound и entity.ErrModelLoad
	Load(ctx context.Context, path string) (Model, error)
}

// Annotator интерфейс отрисовки детекций
type Annotator interface {
	// Annotate возвращает копию изображения с рамками и подписями
	Annotate(img image.Image, detections entity.DetectionSet, names entity.ClassNameTable) image.Image
}
