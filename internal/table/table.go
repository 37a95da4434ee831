package table

import (
	"fmt"
	"math/big"
	"strings"
)

// ColumnType is the storage type of a result column.
type ColumnType string

const (
	String ColumnType = "string"
	Int64  ColumnType = "int64"
	Uint64 ColumnType = "uint64"
	Bool   ColumnType = "bool"
)

// ParseColumnType converts a config value into a ColumnType.
func ParseColumnType(input string) (ColumnType, error) {
	switch ColumnType(strings.ToLower(strings.TrimSpace(input))) {
	case String:
		return String, nil
	case Int64:
		return Int64, nil
	case Uint64:
		return Uint64, nil
	case Bool:
		return Bool, nil
	default:
		return "", fmt.Errorf("unsupported column type: %s", input)
	}
}

// Column describes one named, typed column.
type Column struct {
	Name string
	Type ColumnType
}

// Table is an in-memory columnar result. Rows hold values in column order.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// New builds an empty table with the given columns.
func New(columns []Column) *Table {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) NumColumns() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// IsEmpty reports whether the table has no rows. A nil table is empty.
func (t *Table) IsEmpty() bool {
	return t.NumRows() == 0
}

// Shape returns (rows, columns).
func (t *Table) Shape() (int, int) {
	return t.NumRows(), t.NumColumns()
}

// ColumnNames returns column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, t.NumColumns())
	if t == nil {
		return names
	}
	for _, col := range t.Columns {
		names = append(names, col.Name)
	}
	return names
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	if t == nil {
		return 0, false
	}
	for i, col := range t.Columns {
		if col.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Append adds a row after checking arity and value types.
func (t *Table) Append(row []any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(row), len(t.Columns))
	}
	for i, value := range row {
		if err := checkValue(t.Columns[i], value); err != nil {
			return err
		}
	}
	t.Rows = append(t.Rows, row)
	return nil
}

func checkValue(col Column, value any) error {
	var ok bool
	switch col.Type {
	case String:
		_, ok = value.(string)
	case Int64:
		_, ok = value.(int64)
	case Uint64:
		_, ok = value.(uint64)
	case Bool:
		_, ok = value.(bool)
	default:
		return fmt.Errorf("column %s: unsupported type %s", col.Name, col.Type)
	}
	if !ok {
		return fmt.Errorf("column %s: expected %s, got %T", col.Name, col.Type, value)
	}
	return nil
}

// Convert maps a decoded ABI value onto the column type.
func Convert(value any, typ ColumnType) (any, error) {
	switch typ {
	case String:
		return toString(value)
	case Int64:
		return toInt64(value)
	case Uint64:
		return toUint64(value)
	case Bool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot convert %T to bool", value)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported column type: %s", typ)
	}
}

type hexer interface {
	Hex() string
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case hexer:
		return v.Hex(), nil
	case *big.Int:
		if v == nil {
			return "", fmt.Errorf("nil big int")
		}
		return v.String(), nil
	case []byte:
		return "0x" + fmt.Sprintf("%x", v), nil
	case [32]byte:
		return "0x" + fmt.Sprintf("%x", v[:]), nil
	case bool:
		return fmt.Sprintf("%t", v), nil
	case uint8, uint16, uint32, uint64, int8, int16, int32, int64:
		return fmt.Sprintf("%d", v), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", value)
	}
}

func toUint64(value any) (uint64, error) {
	switch v := value.(type) {
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	case *big.Int:
		if v == nil || v.Sign() < 0 || !v.IsUint64() {
			return 0, fmt.Errorf("value %v does not fit in uint64", v)
		}
		return v.Uint64(), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to uint64", value)
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case *big.Int:
		if v == nil || !v.IsInt64() {
			return 0, fmt.Errorf("value %v does not fit in int64", v)
		}
		return v.Int64(), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}
