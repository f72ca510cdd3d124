package vision

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"bin-vision/internal/domain/entity"
)

// LabelsPath возвращает путь к таблице имён рядом с моделью: best.onnx -> best.yaml.
func LabelsPath(modelPath string) string {
	return strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".yaml"
}

// LoadClassNames читает таблицу имён классов из YAML-файла.
func LoadClassNames(path string) (entity.ClassNameTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: class names %s", entity.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: read class names: %v", entity.ErrModelLoad, err)
	}
	names, err := ParseClassNames(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrModelLoad, path, err)
	}
	return names, nil
}

// ParseClassNames понимает формат data.yaml Ultralytics (ключ names: со списком
// или словарём) и голый словарь из метаданных экспортированной модели.
func ParseClassNames(data []byte) (entity.ClassNameTable, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse class names: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("class names are empty")
	}

	node := doc.Content[0]
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "names" {
				node = node.Content[i+1]
				break
			}
		}
	}

	table := make(entity.ClassNameTable)
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return nil, fmt.Errorf("decode names list: %w", err)
		}
		for i, name := range list {
			table[i] = name
		}
	case yaml.MappingNode:
		var m map[int]string
		if err := node.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode names map: %w", err)
		}
		for id, name := range m {
			if id < 0 {
				return nil, fmt.Errorf("negative class id %d", id)
			}
			table[id] = name
		}
	default:
		return nil, errors.New("class names must be a list or a map")
	}

	if len(table) == 0 {
		return nil, errors.New("class names are empty")
	}
	return table, nil
}
