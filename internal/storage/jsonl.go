package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"acrossScope/internal/table"
)

// JsonlWriter writes one JSON object per row, keyed by column name in column order.
type JsonlWriter struct{}

func NewJsonlWriter() *JsonlWriter {
	return &JsonlWriter{}
}

func (w *JsonlWriter) Extension() string {
	return "jsonl"
}

// WriteTable replaces path with the table rows as JSON lines.
func (w *JsonlWriter) WriteTable(path string, t *table.Table) error {
	if t == nil {
		return fmt.Errorf("table is nil")
	}

	return replaceFile(path, func(file *os.File) error {
		writer := bufio.NewWriter(file)
		record := orderedmap.New[string, any]()
		for _, row := range t.Rows {
			for i, col := range t.Columns {
				record.Set(col.Name, row[i])
			}
			line, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("marshal row: %w", err)
			}
			if _, err := writer.Write(line); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
			if err := writer.WriteByte('\n'); err != nil {
				return fmt.Errorf("write newline: %w", err)
			}
		}

		if err := writer.Flush(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}
		return nil
	})
}
