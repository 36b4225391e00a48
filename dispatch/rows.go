package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Row is one result record keyed by column name.
type Row map[string]any

var errNotUTF8 = errors.New("result data is not valid UTF-8")

// DecodeRows parses a UTF-8 JSON array of objects. Numbers are kept as
// json.Number. The returned columns follow the key order of the first row.
func DecodeRows(data []byte) ([]Row, []string, error) {
	if !utf8.Valid(data) {
		return nil, nil, errNotUTF8
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode rows: %w", err)
	}
	if len(raws) == 0 {
		return nil, nil, nil
	}

	rows := make([]Row, 0, len(raws))
	for i, raw := range raws {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var row Row
		if err := dec.Decode(&row); err != nil {
			return nil, nil, fmt.Errorf("decode row %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	columns, err := objectKeys(raws[0])
	if err != nil {
		return nil, nil, err
	}
	return rows, columns, nil
}

func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("decode rows: expected object, got %v", tok)
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode rows: unexpected token %v", tok)
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// Cell formats a row value for display.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

// Number extracts a numeric value, reporting false for non-numeric cells.
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
