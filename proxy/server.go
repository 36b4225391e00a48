// Package proxy serves the explorer JSON API: it parses and validates
// query states, compiles them and forwards them to the analytical server.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync/atomic"
	"time"

	"github.com/gigapi/gigapi-explorer/compiler"
	"github.com/gigapi/gigapi-explorer/core"
	"github.com/gigapi/gigapi-explorer/state"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
)

// Server answers the ?api= calls on top of a backend transport.
type Server struct {
	Transport  core.Transport
	DisableUI  bool
	UIFS       afero.Fs
	AuthHeader string
	Timeout    time.Duration
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

var reqId int32

// addCORSHeaders adds CORS headers to the response
func addCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+core.RequestIDKey)
}

// Handler returns the full route set: the api and UI on /, plus /health
// and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", Middleware(http.HandlerFunc(s.HandleRoot)))
	mux.HandleFunc("/health", s.HandleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// HandleRoot dispatches on the api parameter and serves the UI when there
// is none.
func (s *Server) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("api") == "" {
		s.HandleUI(w, r)
		return
	}
	s.HandleAPI(w, r)
}

func (s *Server) HandleAPI(w http.ResponseWriter, r *http.Request) {
	addCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.Header.Get(core.RequestIDKey)
	if id == "" {
		id = fmt.Sprintf("req-%d", atomic.AddInt32(&reqId, 1))
	}
	ctx := core.WithDefaultLogger(r.Context(), id)
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	q := r.URL.Query()
	switch api := q.Get("api"); api {
	case "tables":
		tables, err := s.Transport.ListTables(ctx)
		if err != nil {
			core.Errorf(ctx, "tables failed: %v", err)
			sendErrorResponse(w, err.Error(), http.StatusBadGateway)
			return
		}
		if tables == nil {
			tables = []string{}
		}
		sendJSON(w, tables)
	case "state":
		table := q.Get("table")
		if table == "" {
			sendErrorResponse(w, "Missing table parameter", http.StatusBadRequest)
			return
		}
		ts, err := s.Transport.GetTableState(ctx, table)
		if err != nil {
			core.Errorf(ctx, "state of %s failed: %v", table, err)
			sendErrorResponse(w, err.Error(), http.StatusBadGateway)
			return
		}
		sendJSON(w, ts)
	case "query":
		s.handleQuery(ctx, w, q)
	case "user":
		user := &core.User{}
		if s.AuthHeader != "" {
			user.User = r.Header.Get(s.AuthHeader)
			user.Auth = user.User != ""
		}
		sendJSON(w, user)
	default:
		sendErrorResponse(w, fmt.Sprintf("unknown api %q", api), http.StatusBadRequest)
	}
}

func (s *Server) handleQuery(ctx context.Context, w http.ResponseWriter, q url.Values) {
	format := q.Get("format")
	if format == "" {
		format = "json"
	}
	formatter, ok := formatters[format]
	if !ok {
		sendErrorResponse(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
		return
	}

	raw := q.Get("query")
	if raw == "" {
		sendErrorResponse(w, "Missing query parameter", http.StatusBadRequest)
		return
	}
	st, err := state.DecodeJSON([]byte(raw))
	if err != nil {
		QueryRejected.WithLabelValues("parse").Inc()
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := state.Validate(st); err != nil {
		reason := "invalid"
		var verr *state.ValidationError
		if errors.As(err, &verr) {
			reason = verr.Reason.String()
		}
		QueryRejected.WithLabelValues(reason).Inc()
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.Transport.RunQuery(ctx, compiler.Compile(st))
	if err != nil {
		core.Errorf(ctx, "query on %s failed: %v", st.Table, err)
		sendErrorResponse(w, err.Error(), http.StatusBadGateway)
		return
	}
	if err := formatter(resp, w); err != nil {
		core.Errorf(ctx, "failed to write %s reply: %v", format, err)
	}
}

// HandleHealth reports liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	addCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	sendJSON(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleUI serves the static UI files.
func (s *Server) HandleUI(w http.ResponseWriter, r *http.Request) {
	if s.DisableUI || s.UIFS == nil {
		http.NotFound(w, r)
		return
	}
	addCORSHeaders(w)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestedPath := r.URL.Path
	if requestedPath == "/" || requestedPath == "" {
		content, err := s.UIFS.Open("/index.html")
		if err != nil {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		defer content.Close()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.Copy(w, content)
		return
	}
	if _, err := s.UIFS.Stat(path.Clean(requestedPath)); err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	http.FileServer(afero.NewHttpFs(s.UIFS)).ServeHTTP(w, r)
}

// Close releases the backend transport.
func (s *Server) Close() error {
	return s.Transport.Close()
}

func sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Send an error response in JSON format
func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
