package recording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// A Reader reads rows back from a recording database, mapping tables to the
// flat struct types they were written from.
type Reader struct {
	*sql.DB

	typeMap map[string]reflect.Type
}

// NewReader opens the recording database at path.
func NewReader(path string) (*Reader, error) {
	filename := path
	if !strings.HasSuffix(filename, ".sqlite3") {
		filename += ".sqlite3"
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	return &Reader{
		DB:      db,
		typeMap: make(map[string]reflect.Type),
	}, nil
}

// NewReaderWithDB creates a Reader on an already-open database.
func NewReaderWithDB(db *sql.DB) *Reader {
	return &Reader{
		DB:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

// MapTable establishes the mapping between a table and a Go struct type.
// The mapping is required before reading a table.
func (r *Reader) MapTable(tableName string, sampleEntry any) {
	r.typeMap[tableName] = reflect.TypeOf(sampleEntry)
}

// ListTables returns the names of all tables present in the database.
func (r *Reader) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}

	return tables, rows.Err()
}

// ReadAll returns every row of a mapped table as a value of the mapped
// struct type, in insertion order.
func (r *Reader) ReadAll(ctx context.Context, tableName string) ([]any, error) {
	structType, ok := r.typeMap[tableName]
	if !ok {
		return nil, fmt.Errorf("no mapping found for table: %s", tableName)
	}

	rows, err := r.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s", tableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRowsToSlice(rows, structType)
}

func scanRowsToSlice(rows *sql.Rows, structType reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fieldMap := make(map[string]int)
	for i := 0; i < structType.NumField(); i++ {
		fieldMap[structType.Field(i).Name] = i
	}

	var results []any
	for rows.Next() {
		structPtr := reflect.New(structType)
		structVal := structPtr.Elem()
		scanTargets := make([]any, len(columns))

		for i, colName := range columns {
			if fieldIdx, ok := fieldMap[colName]; ok {
				scanTargets[i] = structVal.Field(fieldIdx).Addr().Interface()
			} else {
				var placeholder any
				scanTargets[i] = &placeholder
			}
		}

		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}

		results = append(results, structVal.Interface())
	}

	return results, rows.Err()
}
