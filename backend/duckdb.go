package backend

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/gigapi/gigapi-explorer/core"
	_ "github.com/marcboeker/go-duckdb/v2"
)

// Executor answers the three backend calls.
type Executor interface {
	Tables(ctx context.Context) ([]string, error)
	TableState(ctx context.Context, table string) (*core.TableSchema, error)
	// Query returns the result column names in order and one map per row.
	Query(ctx context.Context, req *core.Request) ([]string, []map[string]any, error)
}

// rows per DuckDB row group, reported as blocks
const rowGroupSize = 122880

// DuckDB runs requests against local DuckDB tables.
type DuckDB struct {
	DB *sql.DB
}

var _ Executor = (*DuckDB)(nil)

// OpenDuckDB opens the database at path, or an in-memory one when path is empty.
func OpenDuckDB(path string) (*DuckDB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open duckdb %q: %w", path, err)
	}
	return &DuckDB{DB: db}, nil
}

func (d *DuckDB) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.DB.QueryContext(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
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

// TableState splits columns into numeric metrics and everything else as
// dimensions. Block count and memory are estimates.
func (d *DuckDB) TableState(ctx context.Context, table string) (*core.TableSchema, error) {
	cols, err := d.describe(ctx, table)
	if err != nil {
		return nil, err
	}

	ts := &core.TableSchema{}
	hasTime := false
	for _, c := range cols {
		switch {
		case c.name == core.TimeColumn:
			hasTime = true
			ts.Dimensions = append(ts.Dimensions, c.name)
		case numericType(c.typ):
			ts.Metrics = append(ts.Metrics, c.name)
		default:
			ts.Dimensions = append(ts.Dimensions, c.name)
		}
	}
	if len(ts.Dimensions)+len(ts.Metrics) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	stats := "SELECT count(*), 0, 0 FROM " + quote(table)
	if hasTime {
		stats = fmt.Sprintf("SELECT count(*), coalesce(min(%[1]s), 0), coalesce(max(%[1]s), 0) FROM %[2]s",
			quote(core.TimeColumn), quote(table))
	}
	if err := d.DB.QueryRowContext(ctx, stats).Scan(&ts.RowCount, &ts.MinTime, &ts.MaxTime); err != nil {
		return nil, fmt.Errorf("failed to read stats of %s: %w", table, err)
	}
	ts.BlockCount = (ts.RowCount + rowGroupSize - 1) / rowGroupSize
	ts.MemoryBytes = ts.RowCount * int64(len(ts.Dimensions)+len(ts.Metrics)) * 8
	return ts, nil
}

func (d *DuckDB) Query(ctx context.Context, req *core.Request) ([]string, []map[string]any, error) {
	cols, err := d.describe(ctx, req.Table)
	if err != nil {
		return nil, nil, err
	}
	numeric := make(map[string]bool, len(cols))
	for _, c := range cols {
		numeric[c.name] = numericType(c.typ)
	}
	query, args, err := BuildSQL(req, numeric)
	if err != nil {
		return nil, nil, err
	}
	core.Debugf(ctx, "duckdb: %s %v", query, args)

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var result []map[string]any
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalize(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return columns, result, nil
}

type column struct {
	name, typ string
}

func (d *DuckDB) describe(ctx context.Context, table string) ([]column, error) {
	rows, err := d.DB.QueryContext(ctx,
		"SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position",
		table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []column
	for rows.Next() {
		var c column
		if err := rows.Scan(&c.name, &c.typ); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (d *DuckDB) Close() error {
	return d.DB.Close()
}

// normalize maps driver values onto the types the Arrow conversion knows.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC()
	}
	return v
}

func numericType(typ string) bool {
	typ = strings.ToUpper(typ)
	for _, prefix := range []string{"TINYINT", "SMALLINT", "INTEGER", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT", "FLOAT", "DOUBLE", "DECIMAL", "REAL"} {
		if strings.HasPrefix(typ, prefix) {
			return true
		}
	}
	return false
}
