package chunking

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnparseable means no accepted response shape could be recovered; the
// caller falls back to paragraph chunking.
var ErrUnparseable = errors.New("no parseable chunk payload in response")

// Raw is one chunk as produced by the model, before normalization.
type Raw struct {
	Text  string  `json:"text"`
	Topic *string `json:"topic,omitempty"`
	Type  string  `json:"type,omitempty"`
}

// Response is the canonical payload shape. Parsing any accepted shape and
// re-serializing through Response is stable under re-parse.
type Response struct {
	Chunks []Raw `json:"chunks"`
}

// ParseResponse recovers a chunk list from a model response. Accepted
// shapes, tried in order:
//
//  1. {"chunks": [ {text, topic, type}, … ]}
//  2. [ {text, topic, type}, … ]
//  3. {text, topic, type} — a single chunk, common for short articles
//  4. any of the above embedded in surrounding prose, recovered as the
//     largest balanced {…} or […] substring
//
// Anything else returns ErrUnparseable.
func ParseResponse(s string) ([]Raw, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrUnparseable
	}
	if chunks, err := parseDirect(s); err == nil {
		return chunks, nil
	}
	if frag := largestBalancedFragment(s); frag != "" && frag != s {
		if chunks, err := parseDirect(frag); err == nil {
			return chunks, nil
		}
	}
	return nil, ErrUnparseable
}

func parseDirect(s string) ([]Raw, error) {
	switch firstToken(s) {
	case '{':
		// Shape 1: named array wrapper.
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal([]byte(s), &wrapper); err != nil {
			return nil, err
		}
		if inner, ok := wrapper["chunks"]; ok {
			var chunks []Raw
			if err := json.Unmarshal(inner, &chunks); err != nil {
				return nil, err
			}
			return validRaw(chunks)
		}
		// Shape 3: a single chunk object.
		var one Raw
		if err := json.Unmarshal([]byte(s), &one); err != nil {
			return nil, err
		}
		return validRaw([]Raw{one})
	case '[':
		// Shape 2: bare array.
		var chunks []Raw
		if err := json.Unmarshal([]byte(s), &chunks); err != nil {
			return nil, err
		}
		return validRaw(chunks)
	}
	return nil, fmt.Errorf("not a JSON object or array")
}

// validRaw rejects payloads that parsed as JSON but carry no chunk text —
// e.g. an unrelated object — so the fallback still triggers for them.
func validRaw(chunks []Raw) ([]Raw, error) {
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) != "" {
			return chunks, nil
		}
	}
	return nil, fmt.Errorf("payload has no chunk text")
}

func firstToken(s string) byte {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return s[i]
		}
	}
	return 0
}

// largestBalancedFragment scans for the longest balanced {…} or […]
// substring, honoring JSON string literals and escapes, so a payload wrapped
// in prose ("Here are the chunks: […] hope this helps") is recoverable.
func largestBalancedFragment(s string) string {
	var best string
	for i := 0; i < len(s); i++ {
		open := s[i]
		if open != '{' && open != '[' {
			continue
		}
		if end := scanBalanced(s, i); end > i {
			if frag := s[i : end+1]; len(frag) > len(best) {
				best = frag
			}
			// Skip past this fragment; nested openers inside it cannot start
			// a longer one.
			i = end
		}
	}
	return best
}

// scanBalanced returns the index of the bracket closing the one at start, or
// -1 when the fragment never closes.
func scanBalanced(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
			if depth < 0 {
				return -1
			}
		}
	}
	return -1
}
