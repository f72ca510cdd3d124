package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr            string        // адрес веб-интерфейса
	ModelPath           string        // файл модели .onnx
	LabelsPath          string        // таблица имён классов; если пусто, берётся рядом с моделью
	ConfidenceThreshold float64       // порог уверенности по умолчанию
	NMSThreshold        float64       // порог IoU для подавления рамок
	InputSize           int           // сторона входа сети
	InferenceTimeout    time.Duration // предел одного вызова модели
	MaxUploadMB         int           // предел размера загружаемого файла
	ResultTTL           time.Duration // сколько живёт размеченное изображение
	TelegramToken       string        // если пусто, бот не запускается
	LogLevel            string
	LogFile             string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		ModelPath:           getEnv("MODEL_PATH", "best.onnx"),
		LabelsPath:          os.Getenv("LABELS_PATH"),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.25, &errs),
		NMSThreshold:        getEnvAsFloat("NMS_THRESHOLD", 0.45, &errs),
		InputSize:           getEnvAsInt("INPUT_SIZE", 640, &errs),
		InferenceTimeout:    getEnvAsDuration("INFERENCE_TIMEOUT", 10*time.Second, &errs),
		MaxUploadMB:         getEnvAsInt("MAX_UPLOAD_MB", 10, &errs),
		ResultTTL:           getEnvAsDuration("RESULT_TTL", 10*time.Minute, &errs),
		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFile:             os.Getenv("LOG_FILE"),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет диапазоны значений.
func (c *Config) Validate() error {
	var errs []error
	if c.ModelPath == "" {
		errs = append(errs, errors.New("MODEL_PATH must not be empty"))
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.ConfidenceThreshold))
	}
	if c.NMSThreshold <= 0 || c.NMSThreshold > 1 {
		errs = append(errs, fmt.Errorf("NMS_THRESHOLD must be within (0,1], got %v", c.NMSThreshold))
	}
	if c.InputSize <= 0 || c.InputSize%32 != 0 {
		errs = append(errs, fmt.Errorf("INPUT_SIZE must be a positive multiple of 32, got %d", c.InputSize))
	}
	if c.InferenceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("INFERENCE_TIMEOUT must be positive, got %s", c.InferenceTimeout))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB))
	}
	if c.ResultTTL <= 0 {
		errs = append(errs, fmt.Errorf("RESULT_TTL must be positive, got %s", c.ResultTTL))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getEnvAsFloat(key string, defaultValue float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getEnvAsDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}
