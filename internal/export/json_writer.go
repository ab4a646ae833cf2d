package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"TransportBench/internal/model"
)

// JSONWriter writes a run report as an indented JSON document.
// It implements the model.Writer interface.
type JSONWriter struct {
	path string
}

// NewJSONWriter creates a writer for the report file at path.
func NewJSONWriter(path string) (*JSONWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("json writer requires a path")
	}
	return &JSONWriter{path: path}, nil
}

// Name returns the writer name.
func (w *JSONWriter) Name() string {
	return "json"
}

// Write persists the report to the configured file.
func (w *JSONWriter) Write(report *model.Report) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create report file '%s': %w", w.path, err)
	}
	defer file.Close()

	if err := EncodeJSON(file, report); err != nil {
		return err
	}
	return file.Sync()
}

// EncodeJSON writes the persisted form of report to out.
func EncodeJSON(out io.Writer, report *model.Report) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(NewDocument(report)); err != nil {
		return fmt.Errorf("failed to encode report to json: %w", err)
	}
	return nil
}
