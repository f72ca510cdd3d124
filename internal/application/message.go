package app

import (
	"fmt"
	"strings"

	"bin-vision/internal/domain/entity"
)

// Message формирует текст по лучшей (первой) детекции:
// "<CLASS> with confidence <conf>". Пустой набор даёт entity.MsgNothingDetected.
func Message(detections entity.DetectionSet, names entity.ClassNameTable) string {
	best, ok := detections.Best()
	if !ok {
		return entity.MsgNothingDetected
	}
	return fmt.Sprintf("%s with confidence %.2f", strings.ToUpper(names.Name(best.ClassID)), best.Confidence)
}

// Labels возвращает имена классов всех детекций в исходном порядке.
func Labels(detections entity.DetectionSet, names entity.ClassNameTable) []string {
	out := make([]string, 0, len(detections))
	for _, d := range detections {
		out = append(out, names.Name(d.ClassID))
	}
	return out
}
