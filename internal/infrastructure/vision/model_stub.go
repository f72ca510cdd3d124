//go:build !gocv
// +build !gocv

package vision

import (
	"fmt"

	"bin-vision/internal/domain/entity"
	"bin-vision/internal/domain/port"
)

// openNetwork без OpenCV модель собрать нельзя.
func openNetwork(path string, names entity.ClassNameTable, opts Options) (port.Model, error) {
	_ = names
	_ = opts
	return nil, fmt.Errorf("%w: %s: gocv build tag is not enabled", entity.ErrModelLoad, path)
}
