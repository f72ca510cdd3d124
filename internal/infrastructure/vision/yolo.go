package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"

	xdraw "golang.org/x/image/draw"

	"bin-vision/internal/domain/entity"
)

// padGray заполняет поля letterbox, как при обучении YOLO.
var padGray = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// Letterbox описывает, как исходное изображение вписано во вход сети.
type Letterbox struct {
	Scale float64 // коэффициент масштабирования
	PadX  float64 // смещение по X во входе сети
	PadY  float64 // смещение по Y во входе сети
	SrcW  int     // ширина исходного изображения
	SrcH  int     // высота исходного изображения
}

// ToSource переводит прямоугольник из координат сети в координаты исходника.
func (l Letterbox) ToSource(b entity.Box) entity.Box {
	clamp := func(v float64, hi int) float64 {
		return min(max(v, 0), float64(hi))
	}
	return entity.Box{
		X1: clamp((b.X1-l.PadX)/l.Scale, l.SrcW),
		Y1: clamp((b.Y1-l.PadY)/l.Scale, l.SrcH),
		X2: clamp((b.X2-l.PadX)/l.Scale, l.SrcW),
		Y2: clamp((b.Y2-l.PadY)/l.Scale, l.SrcH),
	}
}

// Tensor вписывает изображение в квадрат size×size с сохранением пропорций
// и возвращает NCHW-тензор RGB в диапазоне [0,1].
func Tensor(img image.Image, size int) ([]float32, Letterbox, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, Letterbox{}, fmt.Errorf("%w: empty image", entity.ErrInvalidImage)
	}
	if size <= 0 {
		return nil, Letterbox{}, errors.New("input size must be positive")
	}

	scale := min(float64(size)/float64(b.Dx()), float64(size)/float64(b.Dy()))
	w := max(1, int(float64(b.Dx())*scale+0.5))
	h := max(1, int(float64(b.Dy())*scale+0.5))
	padX := (size - w) / 2
	padY := (size - h) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(padGray), image.Point{}, xdraw.Src)
	xdraw.ApproxBiLinear.Scale(canvas, image.Rect(padX, padY, padX+w, padY+h), img, b, xdraw.Src, nil)

	plane := size * size
	tensor := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		row := canvas.Pix[y*canvas.Stride:]
		for x := 0; x < size; x++ {
			i := y*size + x
			tensor[i] = float32(row[x*4]) / 255
			tensor[plane+i] = float32(row[x*4+1]) / 255
			tensor[2*plane+i] = float32(row[x*4+2]) / 255
		}
	}

	return tensor, Letterbox{
		Scale: scale,
		PadX:  float64(padX),
		PadY:  float64(padY),
		SrcW:  b.Dx(),
		SrcH:  b.Dy(),
	}, nil
}

// DecodeOutput разбирает выход YOLOv5u/v8/v11 формы [1, 4+nc, N] или [1, N, 4+nc]:
// для каждого кандидата (cx, cy, w, h) и nc оценок классов.
// Число классов берётся из формы выхода, таблица имён на разбор не влияет.
// Ось атрибутов обычно короче оси кандидатов; если короткая ось не вмещает
// рамку и хотя бы один класс, атрибуты лежат на другой.
func DecodeOutput(data []float32, shape []int, threshold float64, lb Letterbox) (entity.DetectionSet, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	channelMajor := shape[1] <= shape[2]
	if min(shape[1], shape[2]) <= 4 {
		channelMajor = shape[1] > 4
	}

	var attrs, n int
	var at func(cand, attr int) float32
	if channelMajor {
		attrs, n = shape[1], shape[2]
		at = func(cand, attr int) float32 { return data[attr*n+cand] }
	} else {
		attrs, n = shape[2], shape[1]
		at = func(cand, attr int) float32 { return data[cand*attrs+attr] }
	}
	numClasses := attrs - 4
	if numClasses <= 0 {
		return nil, fmt.Errorf("output shape %v has no class scores", shape)
	}
	if len(data) < n*attrs {
		return nil, fmt.Errorf("output has %d values, want %d", len(data), n*attrs)
	}

	out := make(entity.DetectionSet, 0, 16)
	for c := 0; c < n; c++ {
		best, score := 0, float32(-1)
		for k := 0; k < numClasses; k++ {
			if s := at(c, 4+k); s > score {
				best, score = k, s
			}
		}
		if float64(score) < threshold {
			continue
		}
		cx, cy, w, h := float64(at(c, 0)), float64(at(c, 1)), float64(at(c, 2)), float64(at(c, 3))
		out = append(out, entity.Detection{
			ClassID:    best,
			Confidence: float64(score),
			Box: lb.ToSource(entity.Box{
				X1: cx - w/2,
				Y1: cy - h/2,
				X2: cx + w/2,
				Y2: cy + h/2,
			}),
		})
	}
	return out, nil
}

// NMS подавляет перекрывающиеся рамки одного класса.
// Результат отсортирован по убыванию уверенности.
func NMS(dets entity.DetectionSet, iouThreshold float64, maxDet int) entity.DetectionSet {
	sorted := make(entity.DetectionSet, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make(entity.DetectionSet, 0, len(sorted))
	for _, d := range sorted {
		if maxDet > 0 && len(kept) >= maxDet {
			break
		}
		suppressed := false
		for _, k := range kept {
			if k.ClassID == d.ClassID && k.Box.IoU(d.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}
