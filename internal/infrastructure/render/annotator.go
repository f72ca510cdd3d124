// Package render рисует рамки детекций поверх изображения.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"bin-vision/internal/domain/entity"
	"bin-vision/internal/domain/port"
)

// DefaultLineWidth задаёт толщину рамки в пикселях.
const DefaultLineWidth = 3

var palette = []color.RGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 255, G: 157, B: 151, A: 255},
	{R: 255, G: 112, B: 31, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
	{R: 146, G: 204, B: 23, A: 255},
	{R: 132, G: 56, B: 255, A: 255},
	{R: 255, G: 55, B: 199, A: 255},
}

// Annotator рисует рамки и подписи на копии изображения.
type Annotator struct {
	LineWidth  int
	ShowLabels bool
	ShowConf   bool
	face       font.Face
}

// NewAnnotator создаёт аннотатор с подписями и уверенностью.
func NewAnnotator(lineWidth int) *Annotator {
	if lineWidth <= 0 {
		lineWidth = DefaultLineWidth
	}
	return &Annotator{
		LineWidth:  lineWidth,
		ShowLabels: true,
		ShowConf:   true,
		face:       basicfont.Face7x13,
	}
}

// Annotate возвращает новое изображение того же размера, исходное не меняется.
func (a *Annotator) Annotate(img image.Image, detections entity.DetectionSet, names entity.ClassNameTable) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)

	for _, d := range detections {
		col := ColorFor(d.ClassID)
		rect := d.Box.Rect().Add(b.Min).Intersect(b)
		if rect.Empty() {
			continue
		}
		a.drawRect(dst, rect, col)
		if a.ShowLabels {
			a.drawLabel(dst, rect, a.label(d, names), col)
		}
	}
	return dst
}

func (a *Annotator) label(d entity.Detection, names entity.ClassNameTable) string {
	name := names.Name(d.ClassID)
	if !a.ShowConf {
		return name
	}
	return fmt.Sprintf("%s %.2f", name, d.Confidence)
}

// drawRect рисует контур толщиной LineWidth внутрь прямоугольника.
func (a *Annotator) drawRect(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	t := min(a.LineWidth, r.Dx(), r.Dy())
	if t <= 0 {
		t = 1
	}
	u := image.NewUniform(col)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), u, image.Point{}, draw.Src)
	}
}

// drawLabel рисует подпись над рамкой, а если места нет, то внутри неё.
func (a *Annotator) drawLabel(img *image.RGBA, r image.Rectangle, text string, col color.RGBA) {
	m := a.face.Metrics()
	textW := font.MeasureString(a.face, text).Ceil()
	textH := (m.Ascent + m.Descent).Ceil()
	pad := 2

	top := r.Min.Y - textH - 2*pad
	if top < img.Bounds().Min.Y {
		top = r.Min.Y
	}
	bg := image.Rect(r.Min.X, top, r.Min.X+textW+2*pad, top+textH+2*pad).Intersect(img.Bounds())
	draw.Draw(img, bg, image.NewUniform(col), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor(col)),
		Face: a.face,
		Dot:  fixed.P(r.Min.X+pad, top+pad+m.Ascent.Ceil()),
	}
	d.DrawString(text)
}

// ColorFor выбирает цвет рамки по классу.
func ColorFor(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

func textColor(bg color.RGBA) color.Color {
	// На светлом фоне чёрный текст.
	if int(bg.R)*299+int(bg.G)*587+int(bg.B)*114 > 150_000 {
		return color.Black
	}
	return color.White
}

var _ port.Annotator = (*Annotator)(nil)
