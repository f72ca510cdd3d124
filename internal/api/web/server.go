// Package web обслуживает страницу загрузки, JSON API предсказаний и скачивание модели.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	app "bin-vision/internal/application"
	"bin-vision/internal/domain/port"
	"bin-vision/internal/observability/metrics"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Options содержит HTTP-настройки сервера.
type Options struct {
	ModelPath        string  // файл модели для скачивания
	DefaultThreshold float64 // порог, если запрос его не передал
	MaxUploadMB      int     // предел размера тела запроса
}

// Server связывает echo с конвейером предсказаний.
type Server struct {
	echo        *echo.Echo
	opts        Options
	predictions *app.PredictionService
	registry    *app.ModelRegistry
	results     port.ResultStore
	log         logrus.FieldLogger
}

type templateRenderer struct {
	templates *template.Template
}

func (t *templateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

// NewServer создаёт echo и регистрирует маршруты.
func NewServer(opts Options, predictions *app.PredictionService, registry *app.ModelRegistry, results port.ResultStore, m *metrics.Metrics, log logrus.FieldLogger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = &templateRenderer{
		templates: template.Must(template.New("").Funcs(template.FuncMap{
			"pct": func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
		}).ParseFS(templatesFS, "templates/*.html")),
	}

	s := &Server{
		echo:        e,
		opts:        opts,
		predictions: predictions,
		registry:    registry,
		results:     results,
		log:         log.WithField("component", "web"),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := s.log.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("Request failed")
				return nil
			}
			entry.Debug("Request handled")
			return nil
		},
	}))
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", max(opts.MaxUploadMB, 1))))

	e.GET("/", s.handleIndex)
	e.POST("/predict", s.handlePredictPage)
	e.POST("/api/v1/predict", s.handlePredictAPI)
	e.GET("/results/:id", s.handleResult)
	e.GET("/model", s.handleModelDownload)
	e.GET("/healthz", s.handleHealth)
	if m != nil && m.Registry() != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))
	}

	return s
}

// Handler возвращает сервер как http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start слушает addr до вызова Shutdown.
func (s *Server) Start(addr string) error {
	s.log.WithField("addr", addr).Info("HTTP server listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown перестаёт принимать запросы и дожидается текущих.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}
