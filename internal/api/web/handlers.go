package web

import (
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"bin-vision/internal/domain/entity"
	"bin-vision/internal/infrastructure/imaging"
)

const uploadField = "image"

type pageData struct {
	ModelAvailable bool
	ModelError     string
	ModelFile      string
	Threshold      float64
	Error          string
	Result         *pageResult
}

type pageResult struct {
	Message      string
	OriginalURL  string
	AnnotatedURL string
	Detections   []detectionJSON
}

type detectionJSON struct {
	ClassID    int        `json:"class_id"`
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"`
}

type predictionJSON struct {
	ID             string          `json:"id,omitempty"`
	Message        string          `json:"message"`
	ModelAvailable bool            `json:"model_available"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	ImageURL       string          `json:"image_url,omitempty"`
	Detections     []detectionJSON `json:"detections"`
}

type errorJSON struct {
	Error string `json:"error"`
}

type healthJSON struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelPath   string `json:"model_path,omitempty"`
	ModelError  string `json:"model_error,omitempty"`
}

func (s *Server) basePage() pageData {
	data := pageData{
		ModelAvailable: s.predictions.Available(),
		Threshold:      s.opts.DefaultThreshold,
	}
	if err := s.registry.Err(); err != nil {
		data.ModelError = err.Error()
	}
	if s.modelFileExists() {
		data.ModelFile = filepath.Base(s.opts.ModelPath)
	}
	return data
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", s.basePage())
}

// handlePredictPage показывает результат рядом с оригиналом; ошибка выводится одной строкой.
func (s *Server) handlePredictPage(c echo.Context) error {
	data := s.basePage()

	res, status, err := s.predict(c)
	if err != nil {
		data.Error = userMessage(err)
		return c.Render(status, "index.html", data)
	}

	data.Result = &pageResult{
		Message:      res.result.Message,
		OriginalURL:  "/results/" + s.results.Put(res.original),
		AnnotatedURL: "/results/" + res.id,
		Detections:   toJSON(res.result),
	}
	return c.Render(http.StatusOK, "index.html", data)
}

func (s *Server) handlePredictAPI(c echo.Context) error {
	res, status, err := s.predict(c)
	if err != nil {
		return c.JSON(status, errorJSON{Error: userMessage(err)})
	}

	b := res.result.Image.Bounds()
	return c.JSON(http.StatusOK, predictionJSON{
		ID:             res.id,
		Message:        res.result.Message,
		ModelAvailable: res.result.ModelAvailable,
		Width:          b.Dx(),
		Height:         b.Dy(),
		ImageURL:       "/results/" + res.id,
		Detections:     toJSON(res.result),
	})
}

func (s *Server) handleResult(c echo.Context) error {
	img, ok := s.results.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errorJSON{Error: "result not found or expired"})
	}
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/png", data)
}

// handleModelDownload отдаёт файл модели как есть.
func (s *Server) handleModelDownload(c echo.Context) error {
	f, err := os.Open(s.opts.ModelPath)
	if err != nil {
		return c.JSON(http.StatusNotFound, errorJSON{Error: "model file is not available"})
	}
	defer f.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", filepath.Base(s.opts.ModelPath)))
	return c.Stream(http.StatusOK, echo.MIMEOctetStream, f)
}

func (s *Server) handleHealth(c echo.Context) error {
	h := healthJSON{
		Status:      "ok",
		ModelLoaded: s.predictions.Available(),
		ModelPath:   s.registry.Path(),
	}
	if err := s.registry.Err(); err != nil {
		h.Status = "degraded"
		h.ModelError = err.Error()
	}
	return c.JSON(http.StatusOK, h)
}

type predictOutcome struct {
	id       string
	original *image.RGBA
	result   *entity.PredictionResult
}

// predict читает загрузку, декодирует её и прогоняет через конвейер.
func (s *Server) predict(c echo.Context) (*predictOutcome, int, error) {
	threshold, err := s.threshold(c)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	data, err := readUpload(c)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	img, format, err := imaging.Decode(data)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	res, err := s.predictions.Predict(c.Request().Context(), img, threshold)
	if err != nil {
		return nil, errorStatus(err), err
	}

	s.log.WithFields(logrus.Fields{
		"format":     format,
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
	}).Debug("Upload processed")

	return &predictOutcome{
		id:       s.results.Put(res.Image),
		original: img,
		result:   res,
	}, http.StatusOK, nil
}

func (s *Server) threshold(c echo.Context) (float64, error) {
	raw := c.FormValue("threshold")
	if raw == "" {
		return s.opts.DefaultThreshold, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: got %q", entity.ErrInvalidThreshold, raw)
	}
	return v, nil
}

func readUpload(c echo.Context) ([]byte, error) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		return nil, fmt.Errorf("%w: no file in field %q", entity.ErrInvalidImage, uploadField)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	return data, nil
}

func (s *Server) modelFileExists() bool {
	info, err := os.Stat(s.opts.ModelPath)
	return err == nil && !info.IsDir()
}

func toJSON(res *entity.PredictionResult) []detectionJSON {
	out := make([]detectionJSON, 0, len(res.Detections))
	for _, d := range res.Detections {
		out = append(out, detectionJSON{
			ClassID:    d.ClassID,
			Label:      res.Names.Name(d.ClassID),
			Confidence: d.Confidence,
			Box:        [4]float64{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2},
		})
	}
	return out
}

func errorStatus(err error) int {
	if errors.Is(err, entity.ErrInvalidImage) || errors.Is(err, entity.ErrInvalidThreshold) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// userMessage возвращает одну строку, которую можно показать пользователю.
func userMessage(err error) string {
	switch {
	case errors.Is(err, entity.ErrInvalidThreshold):
		return "Confidence threshold must be a number between 0 and 1."
	case errors.Is(err, entity.ErrInvalidImage):
		return "The uploaded file is not a readable jpg, png, webp or bmp image."
	case errors.Is(err, entity.ErrInference):
		return "The model failed to process this image."
	default:
		return "An error occurred while processing the image."
	}
}
