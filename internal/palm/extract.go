package palm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoJSONObject = errors.New("no JSON object found in completion")

// ParseAnalysis decodes the completion text as a JSON object. When the text
// is not pure JSON (prose or code fences around it), the first balanced
// {...} block is decoded instead.
func ParseAnalysis(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil && out != nil {
		return out, nil
	}

	block, ok := firstObject(text)
	if !ok {
		return nil, errNoJSONObject
	}
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return nil, fmt.Errorf("decoding extracted object: %w", err)
	}
	if out == nil {
		return nil, errNoJSONObject
	}
	return out, nil
}

// firstObject returns the first brace-balanced substring starting at a '{'.
// Braces inside string literals are ignored.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
