package container

import (
	"time"

	"github.com/sirupsen/logrus"

	app "bin-vision/internal/application"
	"bin-vision/internal/domain/port"
	"bin-vision/internal/observability/metrics"
)

type Container struct {
	Registry          *app.ModelRegistry
	UserService       *app.UserService
	PredictionService *app.PredictionService
}

func New(userRepo port.UserRepository, loader port.ModelLoader, annotator port.Annotator, m *metrics.Metrics, timeout time.Duration, log logrus.FieldLogger) *Container {
	registry := app.NewModelRegistry(loader, m, log)
	userService := app.NewUserService(userRepo)
	predictionService := app.NewPredictionService(registry, annotator, m, timeout, log)

	return &Container{
		Registry:          registry,
		UserService:       userService,
		PredictionService: predictionService,
	}
}
