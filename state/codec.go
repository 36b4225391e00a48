package state

import (
	"encoding/json"
	"net/url"
	"strings"
)

// fragmentMarker prefixes every encoded state.
const fragmentMarker = "#"

// minPayload is the shortest payload that can hold a JSON object.
const minPayload = 2

// Encode serializes s into a URL fragment: "#" + percent-encoded JSON.
func Encode(s *QueryState) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return fragmentMarker + escapeComponent(string(b)), nil
}

// Decode parses a fragment produced by Encode. The leading "#" (or the
// legacy "?") is optional. It fails with *ParseError when there is nothing
// meaningful to execute.
func Decode(fragment string) (*QueryState, error) {
	payload := strings.TrimPrefix(fragment, fragmentMarker)
	payload = strings.TrimPrefix(payload, "?")
	if len(payload) < minPayload {
		return nil, &ParseError{Fragment: fragment, Reason: "fragment is empty or too short"}
	}
	raw, err := url.PathUnescape(payload)
	if err != nil {
		return nil, &ParseError{Fragment: fragment, Reason: "invalid percent-encoding", Err: err}
	}
	s, err := DecodeJSON([]byte(raw))
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Fragment = fragment
		}
		return nil, err
	}
	return s, nil
}

// DecodeJSON parses an already percent-decoded state document.
func DecodeJSON(raw []byte) (*QueryState, error) {
	var s QueryState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &ParseError{Reason: "invalid state JSON", Err: err}
	}
	if strings.TrimSpace(s.Table) == "" {
		return nil, &ParseError{Reason: "missing table"}
	}
	return &s, nil
}

// escapeComponent matches JavaScript's encodeURIComponent closely enough
// for fragments to be exchanged with the browser client.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
