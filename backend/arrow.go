package backend

import (
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
)

var timestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// convertResultsToArrow builds one record from query rows, keeping the
// column order. Column types come from the first non-null value.
func convertResultsToArrow(mem memory.Allocator, columns []string, results []map[string]any, md arrow.Metadata) arrow.Record {
	fields := make([]arrow.Field, len(columns))
	for i, name := range columns {
		fields[i] = arrow.Field{Name: name, Type: inferTypeFromColumn(name, results), Nullable: true}
	}
	schema := arrow.NewSchema(fields, &md)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	for i, field := range fields {
		fb := b.Field(i)
		for _, row := range results {
			appendValue(fb, field.Type, row[field.Name])
		}
	}
	return b.NewRecord()
}

func appendValue(fb array.Builder, typ arrow.DataType, val any) {
	if val == nil {
		fb.AppendNull()
		return
	}
	switch typ.ID() {
	case arrow.INT64:
		if n, ok := toInt64(val); ok {
			fb.(*array.Int64Builder).Append(n)
			return
		}
	case arrow.FLOAT64:
		if f, ok := toFloat64(val); ok {
			fb.(*array.Float64Builder).Append(f)
			return
		}
	case arrow.BOOL:
		switch v := val.(type) {
		case bool:
			fb.(*array.BooleanBuilder).Append(v)
			return
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				fb.(*array.BooleanBuilder).Append(b)
				return
			}
		}
	case arrow.TIMESTAMP:
		switch v := val.(type) {
		case time.Time:
			fb.(*array.TimestampBuilder).Append(arrow.Timestamp(v.UTC().UnixMicro()))
			return
		case string:
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				fb.(*array.TimestampBuilder).Append(arrow.Timestamp(t.UTC().UnixMicro()))
				return
			}
		}
	case arrow.STRING:
		fb.(*array.StringBuilder).Append(fmt.Sprintf("%v", val))
		return
	}
	fb.AppendNull()
}

func toInt64(val any) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toFloat64(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// inferTypeFromColumn picks the Arrow type of a column from its first
// non-null value, defaulting to string.
func inferTypeFromColumn(columnName string, results []map[string]any) arrow.DataType {
	for _, row := range results {
		val := row[columnName]
		if val == nil {
			continue
		}
		switch val.(type) {
		case int, int32, int64:
			return arrow.PrimitiveTypes.Int64
		case float32, float64:
			return arrow.PrimitiveTypes.Float64
		case bool:
			return arrow.FixedWidthTypes.Boolean
		case time.Time:
			return timestampType
		}
		return arrow.BinaryTypes.String
	}
	return arrow.BinaryTypes.String
}
