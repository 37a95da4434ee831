package storage

import (
	"fmt"
	"os"
	"reflect"

	"github.com/parquet-go/parquet-go"

	"acrossScope/internal/table"
)

// ParquetWriter writes tables as snappy-compressed Parquet files.
type ParquetWriter struct {
	SchemaName string
	RowGroup   int
}

func NewParquetWriter() *ParquetWriter {
	return &ParquetWriter{SchemaName: "events", RowGroup: 10_000}
}

func (w *ParquetWriter) Extension() string {
	return "parquet"
}

// WriteTable replaces path with the table encoded as Parquet.
func (w *ParquetWriter) WriteTable(path string, t *table.Table) error {
	if t == nil {
		return fmt.Errorf("table is nil")
	}

	schema, err := ParquetSchema(w.SchemaName, t.Columns)
	if err != nil {
		return err
	}
	rows, err := parquetRows(t)
	if err != nil {
		return err
	}

	return replaceFile(path, func(file *os.File) error {
		pw := parquet.NewWriter(file, schema, parquet.Compression(&parquet.Snappy))
		batch := w.RowGroup
		if batch <= 0 {
			batch = len(rows)
		}
		for start := 0; start < len(rows); start += batch {
			end := start + batch
			if end > len(rows) {
				end = len(rows)
			}
			if _, err := pw.WriteRows(rows[start:end]); err != nil {
				pw.Close()
				return fmt.Errorf("write parquet rows: %w", err)
			}
		}
		if err := pw.Close(); err != nil {
			return fmt.Errorf("close parquet writer: %w", err)
		}
		return nil
	})
}

// ParquetSchema maps table columns onto a flat Parquet schema that keeps the column order.
func ParquetSchema(name string, columns []table.Column) (*parquet.Schema, error) {
	root := &orderedGroup{Group: make(parquet.Group, len(columns))}
	for _, col := range columns {
		if _, dup := root.Group[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column: %s", col.Name)
		}
		node, err := parquetNode(col.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		root.Group[col.Name] = node
		root.fields = append(root.fields, &orderedField{Node: node, name: col.Name})
	}
	return parquet.NewSchema(name, root), nil
}

// orderedGroup is a parquet.Group whose fields come back in insertion order
// instead of sorted by name.
type orderedGroup struct {
	parquet.Group
	fields []parquet.Field
}

func (g *orderedGroup) Fields() []parquet.Field {
	return g.fields
}

type orderedField struct {
	parquet.Node
	name string
}

func (f *orderedField) Name() string {
	return f.name
}

func (f *orderedField) Value(base reflect.Value) reflect.Value {
	if base.Kind() == reflect.Interface {
		if base.IsNil() {
			return reflect.ValueOf(nil)
		}
		base = base.Elem()
	}
	if base.Kind() != reflect.Map {
		return reflect.Value{}
	}
	return base.MapIndex(reflect.ValueOf(f.name))
}

func parquetNode(typ table.ColumnType) (parquet.Node, error) {
	switch typ {
	case table.String:
		return parquet.String(), nil
	case table.Int64:
		return parquet.Int(64), nil
	case table.Uint64:
		return parquet.Uint(64), nil
	case table.Bool:
		return parquet.Leaf(parquet.BooleanType), nil
	default:
		return nil, fmt.Errorf("unsupported column type: %s", typ)
	}
}

// parquetRows converts table rows into Parquet rows. Leaf i of the schema is table column i.
func parquetRows(t *table.Table) ([]parquet.Row, error) {
	rows := make([]parquet.Row, 0, len(t.Rows))
	for n, values := range t.Rows {
		if len(values) != len(t.Columns) {
			return nil, fmt.Errorf("row %d has %d values, table has %d columns", n, len(values), len(t.Columns))
		}
		row := make(parquet.Row, len(values))
		for i, value := range values {
			row[i] = parquet.ValueOf(value).Level(0, 0, i)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
