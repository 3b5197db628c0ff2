package reference

import (
	"context"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// FileLoader reads a YAML (or JSON) reference fixture. Used for development and tests.
type FileLoader struct {
	Path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{Path: path}
}

func (l *FileLoader) Name() string { return "file" }

func (l *FileLoader) Load(ctx context.Context) (*Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read reference file: %w", err)
	}
	return DecodeYAML(raw)
}

// DecodeYAML parses a reference fixture.
func DecodeYAML(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse reference file: %w", err)
	}
	return &d, nil
}

// EncodeYAML renders d in the fixture layout read by FileLoader.
func EncodeYAML(d *Data) ([]byte, error) {
	return yaml.Marshal(d)
}
