package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"acrossScope/internal/table"
)

// Writer persists a result table to a single file, replacing any previous content.
type Writer interface {
	Extension() string
	WriteTable(path string, t *table.Table) error
}

// NewWriter returns the writer for a format name.
func NewWriter(format string) (Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "parquet":
		return NewParquetWriter(), nil
	case "jsonl":
		return NewJsonlWriter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// EventDir returns the folder holding every artifact of one event.
func EventDir(baseDir, event string) string {
	return filepath.Join(baseDir, event)
}

// ArtifactPath returns <base>/<event>/<event>_<client>.<ext>.
func ArtifactPath(baseDir, event, client, ext string) string {
	return filepath.Join(EventDir(baseDir, event), fmt.Sprintf("%s_%s.%s", event, client, ext))
}

// replaceFile writes through a temp file in the target directory and renames it over path.
func replaceFile(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
