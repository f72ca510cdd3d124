package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	app "bin-vision/internal/application"
	"bin-vision/internal/domain/entity"
	"bin-vision/internal/domain/port"
	"bin-vision/internal/infrastructure/imaging"
	"bin-vision/internal/infrastructure/render"
	"bin-vision/internal/infrastructure/storage"
	"bin-vision/internal/observability/metrics"
)

type stubModel struct {
	detections entity.DetectionSet
	err        error
}

func (m *stubModel) Infer(ctx context.Context, img image.Image, threshold float64) (entity.DetectionSet, error) {
	return m.detections, m.err
}

func (m *stubModel) ClassNames() entity.ClassNameTable {
	return entity.ClassNameTable{0: "EMPTY", 3: "FULL"}
}

type stubLoader struct {
	model port.Model
	err   error
}

func (l stubLoader) Load(ctx context.Context, path string) (port.Model, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.model, nil
}

func newTestServer(t *testing.T, loader stubLoader, modelPath string) *Server {
	t.Helper()
	log, _ := test.NewNullLogger()

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	reg := app.NewModelRegistry(loader, m, log)
	_, _ = reg.Init(context.Background(), modelPath)

	predictions := app.NewPredictionService(reg, render.NewAnnotator(render.DefaultLineWidth), m, time.Second, log)
	opts := Options{ModelPath: modelPath, DefaultThreshold: 0.25, MaxUploadMB: 5}
	return NewServer(opts, predictions, reg, storage.NewResultCache(time.Minute), m, log)
}

func scenarioModel() *stubModel {
	return &stubModel{detections: entity.DetectionSet{
		{ClassID: 3, Confidence: 0.81, Box: entity.Box{X1: 100, Y1: 100, X2: 300, Y2: 300}},
	}}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := imaging.EncodePNG(image.NewRGBA(image.Rect(0, 0, w, h)))
	require.NoError(t, err)
	return data
}

func uploadRequest(t *testing.T, target string, file []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if file != nil {
		fw, err := mw.CreateFormFile(uploadField, "bin.png")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPredictAPI_Scenario(t *testing.T) {
	s := newTestServer(t, stubLoader{model: scenarioModel()}, "weights.bin")

	rec := serve(s, uploadRequest(t, "/api/v1/predict", pngBytes(t, 640, 480), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got predictionJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "FULL with confidence 0.81", got.Message)
	require.True(t, got.ModelAvailable)
	require.Equal(t, 640, got.Width)
	require.Equal(t, 480, got.Height)
	require.Len(t, got.Detections, 1)
	require.Equal(t, "FULL", got.Detections[0].Label)

	img := serve(s, httptest.NewRequest(http.MethodGet, got.ImageURL, nil))
	require.Equal(t, http.StatusOK, img.Code)
	require.Equal(t, "image/png", img.Header().Get("Content-Type"))
	decoded, err := png.Decode(img.Body)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 640, 480), decoded.Bounds())
}

func TestPredictAPI_ModelUnavailable(t *testing.T) {
	s := newTestServer(t, stubLoader{err: fmt.Errorf("%w: best.onnx", entity.ErrFileNotFound)}, "best.onnx")

	rec := serve(s, uploadRequest(t, "/api/v1/predict", pngBytes(t, 32, 24), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got predictionJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.False(t, got.ModelAvailable)
	require.Equal(t, entity.MsgModelUnavailable, got.Message)
	require.Empty(t, got.Detections)
}

func TestPredictAPI_BadRequests(t *testing.T) {
	s := newTestServer(t, stubLoader{model: scenarioModel()}, "weights.bin")

	cases := map[string]*http.Request{
		"no file":          uploadRequest(t, "/api/v1/predict", nil, nil),
		"not an image":     uploadRequest(t, "/api/v1/predict", []byte("hello"), nil),
		"bad threshold":    uploadRequest(t, "/api/v1/predict", pngBytes(t, 8, 8), map[string]string{"threshold": "2"}),
		"threshold is nan": uploadRequest(t, "/api/v1/predict", pngBytes(t, 8, 8), map[string]string{"threshold": "abc"}),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(s, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var got errorJSON
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			require.NotEmpty(t, got.Error)
		})
	}
}

func TestPredictAPI_ThresholdFilters(t *testing.T) {
	s := newTestServer(t, stubLoader{model: scenarioModel()}, "weights.bin")

	rec := serve(s, uploadRequest(t, "/api/v1/predict", pngBytes(t, 64, 64), map[string]string{"threshold": "0.9"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var got predictionJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, entity.MsgNothingDetected, got.Message)
	require.Empty(t, got.Detections)
}

func TestPredictAPI_InferenceError(t *testing.T) {
	s := newTestServer(t, stubLoader{model: &stubModel{err: errors.New("bad tensor")}}, "weights.bin")

	rec := serve(s, uploadRequest(t, "/api/v1/predict", pngBytes(t, 16, 16), nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "failed to process")
}

func TestPredictPage(t *testing.T) {
	s := newTestServer(t, stubLoader{model: scenarioModel()}, "weights.bin")

	rec := serve(s, uploadRequest(t, "/predict", pngBytes(t, 640, 480), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "FULL with confidence 0.81")
	require.Contains(t, body, "/results/")
	require.Contains(t, body, "Analysis finished.")

	rec = serve(s, uploadRequest(t, "/predict", []byte("junk"), nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "not a readable")
}

func TestIndex(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "best.onnx")
	require.NoError(t, os.WriteFile(modelPath, []byte("weights"), 0o600))

	s := newTestServer(t, stubLoader{model: scenarioModel()}, modelPath)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `enctype="multipart/form-data"`)
	require.Contains(t, rec.Body.String(), "Download best.onnx")
	require.NotContains(t, rec.Body.String(), "Processing is impossible")

	missing := newTestServer(t, stubLoader{err: entity.ErrFileNotFound}, filepath.Join(dir, "nope.onnx"))
	rec = serve(missing, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Contains(t, rec.Body.String(), "Processing is impossible")
	require.Contains(t, rec.Body.String(), "Model file is not available.")
}

func TestModelDownload(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "best.onnx")
	require.NoError(t, os.WriteFile(modelPath, []byte("raw weights"), 0o600))

	s := newTestServer(t, stubLoader{model: scenarioModel()}, modelPath)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/model", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="best.onnx"`)
	require.Equal(t, "raw weights", rec.Body.String())

	gone := newTestServer(t, stubLoader{model: scenarioModel()}, filepath.Join(dir, "missing.onnx"))
	rec = serve(gone, httptest.NewRequest(http.MethodGet, "/model", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResultNotFound(t *testing.T) {
	s := newTestServer(t, stubLoader{model: scenarioModel()}, "weights.bin")
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/results/unknown", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, stubLoader{err: fmt.Errorf("%w: corrupt", entity.ErrModelLoad)}, "best.onnx")

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var h healthJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	require.Equal(t, "degraded", h.Status)
	require.False(t, h.ModelLoaded)
	require.Contains(t, h.ModelError, "corrupt")

	serve(s, uploadRequest(t, "/api/v1/predict", pngBytes(t, 8, 8), nil))
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `binvision_predictions_total{status="unavailable"} 1`)
	require.Contains(t, rec.Body.String(), "binvision_model_loaded 0")
}
