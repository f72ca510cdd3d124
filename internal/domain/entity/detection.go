package entity

import "image"

// UnknownClass подставляется, если class_id нет в таблице имён модели.
const UnknownClass = "UNKNOWN CLASS"

// Box хранит прямоугольник детекции в пикселях исходного изображения.
type Box struct {
	X1 float64 // левый край
	Y1 float64 // верхний край
	X2 float64 // правый край
	Y2 float64 // нижний край
}

// Width возвращает ширину прямоугольника.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height возвращает высоту прямоугольника.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Area возвращает площадь, для вырожденных прямоугольников 0.
func (b Box) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Rect переводит прямоугольник в целочисленный image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2)).Canon()
}

// IoU считает отношение пересечения к объединению двух прямоугольников.
func (b Box) IoU(o Box) float64 {
	inter := Box{
		X1: max(b.X1, o.X1),
		Y1: max(b.Y1, o.Y1),
		X2: min(b.X2, o.X2),
		Y2: min(b.Y2, o.Y2),
	}.Area()
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection описывает один найденный моделью объект.
type Detection struct {
	ClassID    int     // индекс класса в таблице имён
	Confidence float64 // уверенность модели, [0,1]
	Box        Box     // рамка объекта
}

// DetectionSet содержит детекции одного изображения в порядке выдачи модели.
type DetectionSet []Detection

// Above оставляет детекции с уверенностью не ниже порога, порядок сохраняется.
func (s DetectionSet) Above(threshold float64) DetectionSet {
	out := make(DetectionSet, 0, len(s))
	for _, d := range s {
		if d.Confidence >= threshold {
			out = append(out, d)
		}
	}
	return out
}

// Best возвращает первую детекцию набора.
func (s DetectionSet) Best() (Detection, bool) {
	if len(s) == 0 {
		return Detection{}, false
	}
	return s[0], true
}

// ClassNameTable сопоставляет class_id и имя класса.
type ClassNameTable map[int]string

// Name возвращает имя класса или UnknownClass.
func (t ClassNameTable) Name(classID int) string {
	if name, ok := t[classID]; ok && name != "" {
		return name
	}
	return UnknownClass
}

// PredictionResult хранит итог работы конвейера для одного изображения.
type PredictionResult struct {
	Image          image.Image    // изображение с рамками (или исходное)
	Message        string         // текст для показа пользователю
	Detections     DetectionSet   // детекции после фильтрации по порогу
	Names          ClassNameTable // имена классов модели
	ModelAvailable bool           // false, если модель не загрузилась
}
