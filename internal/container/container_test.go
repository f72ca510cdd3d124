package container

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bin-vision/internal/domain/entity"
	"bin-vision/internal/domain/port"
	"bin-vision/internal/infrastructure/render"
	"bin-vision/internal/infrastructure/storage"
)

type missingLoader struct{}

func (missingLoader) Load(ctx context.Context, path string) (port.Model, error) {
	return nil, entity.ErrFileNotFound
}

func TestNew_WiresSharedRegistry(t *testing.T) {
	log, _ := test.NewNullLogger()
	c := New(storage.NewMemoryUserRepository(), missingLoader{}, render.NewAnnotator(render.DefaultLineWidth), nil, time.Second, log)

	require.NotNil(t, c.UserService)
	require.NotNil(t, c.PredictionService)

	_, err := c.Registry.Init(context.Background(), "missing.onnx")
	assert.True(t, errors.Is(err, entity.ErrFileNotFound))
	assert.False(t, c.PredictionService.Available())
}
