package entity

import "errors"

var (
	// ErrFileNotFound: файла модели нет по указанному пути.
	ErrFileNotFound = errors.New("model file not found")
	// ErrModelLoad: файл есть, но модель из него не собрать.
	ErrModelLoad = errors.New("model load failed")
	// ErrInvalidImage: изображение не декодируется или не подходит.
	ErrInvalidImage = errors.New("invalid image")
	// ErrInvalidThreshold: порог уверенности вне [0,1].
	ErrInvalidThreshold = errors.New("confidence threshold must be within [0,1]")
	// ErrInference: сбой вызова модели.
	ErrInference = errors.New("inference failed")
)

const (
	MsgModelUnavailable = "Detection is unavailable because the model could not be loaded."
	MsgNothingDetected  = "No bin was detected in this image."
)
