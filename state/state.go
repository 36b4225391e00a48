// Package state holds the query-state model shared through the URL fragment,
// its codec, the filter tree and the pre-flight validation gate.
package state

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gigapi/gigapi-explorer/core"
)

// QueryState is the single source of truth round-tripped through the URL.
// Start and End are epoch milliseconds, Window is in seconds (0 = auto).
type QueryState struct {
	Table   string           `json:"table"`
	Start   int64            `json:"start"`
	End     int64            `json:"end"`
	Filter  *FilterGroup     `json:"filter,omitempty"`
	Keys    []string         `json:"keys"`
	Window  int64            `json:"window"`
	Display core.DisplayType `json:"display"`
	Metrics string           `json:"metrics"`
	Rollup  core.Rollup      `json:"rollup"`
	Sort    core.OrderType   `json:"sort"`
	Limit   int              `json:"limit"`
	Code    string           `json:"code,omitempty"`
	Arch    int              `json:"arch,omitempty"`
}

// UnmarshalJSON accepts the numeric fields either as numbers or as the
// strings the web form produced, and times either as epoch milliseconds or
// as "2006-01-02 15:04:05" / RFC3339 strings.
func (s *QueryState) UnmarshalJSON(b []byte) error {
	type plain QueryState
	aux := struct {
		*plain
		Start  json.RawMessage `json:"start"`
		End    json.RawMessage `json:"end"`
		Window json.RawMessage `json:"window"`
		Limit  json.RawMessage `json:"limit"`
		Arch   json.RawMessage `json:"arch"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	var err error
	if s.Start, err = parseMillis(aux.Start); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if s.End, err = parseMillis(aux.End); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if s.Window, err = parseInt(aux.Window); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	limit, err := parseInt(aux.Limit)
	if err != nil {
		return fmt.Errorf("limit: %w", err)
	}
	s.Limit = int(limit)
	arch, err := parseInt(aux.Arch)
	if err != nil {
		return fmt.Errorf("arch: %w", err)
	}
	s.Arch = int(arch)
	return nil
}

// Clone returns a deep copy.
func (s *QueryState) Clone() *QueryState {
	if s == nil {
		return nil
	}
	c := *s
	if s.Keys != nil {
		c.Keys = append([]string(nil), s.Keys...)
	}
	if s.Filter != nil {
		f := &FilterGroup{Logic: s.Filter.Logic}
		if s.Filter.Rules != nil {
			f.Rules = make([]FilterRule, len(s.Filter.Rules))
			for i, r := range s.Filter.Rules {
				f.Rules[i] = FilterRule{Column: r.Column, Op: r.Op}
				if r.Values != nil {
					f.Rules[i].Values = append([]string(nil), r.Values...)
				}
			}
		}
		c.Filter = f
	}
	return &c
}

func unquote(raw json.RawMessage) (string, bool, error) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return "", false, nil
	}
	if raw[0] != '"' {
		return string(raw), false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, err
	}
	return strings.TrimSpace(s), true, nil
}

func parseInt(raw json.RawMessage) (int64, error) {
	s, _, err := unquote(raw)
	if err != nil || s == "" {
		return 0, err
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return int64(f), nil
}

func parseMillis(raw json.RawMessage) (int64, error) {
	s, quoted, err := unquote(raw)
	if err != nil || s == "" {
		return 0, err
	}
	if n, err := parseInt(json.RawMessage(s)); err == nil {
		return n, nil
	}
	if !quoted {
		return 0, fmt.Errorf("not a timestamp: %s", s)
	}
	if t, err := time.ParseInLocation(core.TimeLayout, s, time.UTC); err == nil {
		return t.UnixMilli(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("not a timestamp: %q", s)
	}
	return t.UnixMilli(), nil
}
