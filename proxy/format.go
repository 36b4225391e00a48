package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/gigapi/gigapi-explorer/core"
	"github.com/gigapi/gigapi-explorer/dispatch"
)

type formatterFn func(resp *core.Response, w http.ResponseWriter) error

var formatters = map[string]formatterFn{
	"json":   JsonFormatter,
	"ndjson": NDJsonFormatter,
}

// JsonFormatter writes the backend response envelope; data is base64.
func JsonFormatter(resp *core.Response, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}

// NDJsonFormatter writes the result rows one per line. A failed query
// becomes a 502 with the backend error.
func NDJsonFormatter(resp *core.Response, w http.ResponseWriter) error {
	if resp.Error != "" {
		sendErrorResponse(w, resp.Error, http.StatusBadGateway)
		return nil
	}
	rows, _, err := dispatch.DecodeRows(resp.Data)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}
