package port

import "image"

// ResultStore хранит размеченные изображения ограниченное время
type ResultStore interface {
	// Put сохраняет изображение и возвращает его идентификатор
	Put(img image.Image) string

	// Get возвращает изображение по идентификатору, если оно ещё не истекло
	Get(id string) (image.Image, bool)
}
