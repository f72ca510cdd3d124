//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"unsafe"

	"gocv.io/x/gocv"

	"bin-vision/internal/domain/entity"
)

// onnxModel оборачивает сеть OpenCV DNN. Forward не реентерабелен, вызовы сериализуются.
type onnxModel struct {
	mu    sync.Mutex
	net   gocv.Net
	names entity.ClassNameTable
	opts  Options
}

func openNetwork(path string, names entity.ClassNameTable, opts Options) (*onnxModel, error) {
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("%w: opencv cannot read %s", entity.ErrModelLoad, path)
	}

	return &onnxModel{
		net:   net,
		names: names,
		opts:  opts,
	}, nil
}

// ClassNames возвращает таблицу имён классов.
func (m *onnxModel) ClassNames() entity.ClassNameTable {
	return m.names
}

// Infer готовит letterbox-тензор, прогоняет сеть и разбирает выход.
func (m *onnxModel) Infer(ctx context.Context, img image.Image, threshold float64) (entity.DetectionSet, error) {
	tensor, lb, err := Tensor(img, m.opts.InputSize)
	if err != nil {
		return nil, err
	}

	size := m.opts.InputSize
	blob, err := gocv.NewMatWithSizesFromBytes([]int{1, 3, size, size}, gocv.MatTypeCV32F, float32Bytes(tensor))
	if err != nil {
		return nil, fmt.Errorf("build input blob: %w", err)
	}
	defer blob.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, errors.New("network returned empty output")
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	dets, err := DecodeOutput(data, output.Size(), threshold, lb)
	if err != nil {
		return nil, err
	}

	return NMS(dets, m.opts.NMSThreshold, m.opts.MaxDetections), nil
}

func float32Bytes(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4)
}
