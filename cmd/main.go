package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"bin-vision/config"
	"bin-vision/internal/api/telegram"
	"bin-vision/internal/api/web"
	"bin-vision/internal/container"
	"bin-vision/internal/domain/entity"
	"bin-vision/internal/infrastructure/render"
	"bin-vision/internal/infrastructure/storage"
	"bin-vision/internal/infrastructure/vision"
	"bin-vision/internal/logger"
	"bin-vision/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, closeLog, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	defer func() { _ = closeLog() }()

	if err := run(cfg, logg); err != nil {
		logg.WithError(err).Error("bin-vision stopped with error")
		_ = closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	// Загрузчик модели
	opts := vision.DefaultOptions()
	opts.LabelsPath = cfg.LabelsPath
	opts.InputSize = cfg.InputSize
	opts.NMSThreshold = cfg.NMSThreshold
	loader := vision.NewONNXLoader(opts, logg)

	// Собираем сервисы приложения
	appContainer := container.New(
		storage.NewMemoryUserRepository(),
		loader,
		render.NewAnnotator(render.DefaultLineWidth),
		m,
		cfg.InferenceTimeout,
		logg,
	)

	// Модель загружается один раз; без неё приложение работает в режиме «недоступно»
	if _, err := appContainer.Registry.Init(ctx, cfg.ModelPath); err != nil {
		fields := logrus.Fields{"path": cfg.ModelPath}
		if errors.Is(err, entity.ErrFileNotFound) {
			logg.WithFields(fields).Warn("Model file not found, detection is unavailable")
		} else {
			logg.WithFields(fields).WithError(err).Error("Model could not be loaded, detection is unavailable")
		}
	}

	server := web.NewServer(web.Options{
		ModelPath:        cfg.ModelPath,
		DefaultThreshold: cfg.ConfidenceThreshold,
		MaxUploadMB:      cfg.MaxUploadMB,
	}, appContainer.PredictionService, appContainer.Registry, storage.NewResultCache(cfg.ResultTTL), m, logg)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(cfg.HTTPAddr); err != nil {
			errCh <- err
		}
	}()

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer.UserService, appContainer.PredictionService, cfg.ConfidenceThreshold, logg)
		if err != nil {
			logg.WithError(err).Error("Telegram bot is disabled")
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				logg.Info("Bot is running...")
				if err := bot.Run(ctx); err != nil {
					errCh <- err
				}
			}()
		}
	} else {
		logg.Info("TELEGRAM_TOKEN is not set, Telegram bot is disabled")
	}

	var runErr error
	select {
	case <-ctx.Done():
		logg.Info("Shutting down")
	case runErr = <-errCh:
		stop()
	}

	if err := server.Shutdown(context.Background()); err != nil {
		logg.WithError(err).Warn("HTTP shutdown")
	}
	wg.Wait()

	return runErr
}
