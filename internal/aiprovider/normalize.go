package aiprovider

import (
	"encoding/json"
	"strings"

	apperrors "go-scan-capture/internal/errors"
)

const parseExcerptLimit = 200

// ExtractJSON pulls a single JSON document out of raw model output. Models
// often wrap JSON in markdown fences or surround it with prose; the fences
// are stripped first, then the whole text is tried as JSON, then the first
// balanced object and finally the first balanced array embedded in the text.
func ExtractJSON(raw string) (json.RawMessage, error) {
	text := stripCodeFences(raw)
	if text == "" {
		return nil, apperrors.NewParseError("AI response is empty", nil)
	}

	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}
	if doc := firstBalanced(text, '{', '}'); doc != "" && json.Valid([]byte(doc)) {
		return json.RawMessage(doc), nil
	}
	if doc := firstBalanced(text, '[', ']'); doc != "" && json.Valid([]byte(doc)) {
		return json.RawMessage(doc), nil
	}

	excerpt := text
	if len(excerpt) > parseExcerptLimit {
		excerpt = excerpt[:parseExcerptLimit] + "..."
	}
	return nil, apperrors.NewParseError("no JSON document found in AI response: "+excerpt, nil)
}

// ParseResponse extracts the JSON from raw model output and unmarshals it
// into out.
func ParseResponse(raw string, out any) error {
	doc, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return apperrors.NewParseError("AI response JSON does not match the expected shape", err)
	}
	return nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// firstBalanced returns the first balanced open..close span, tracking string
// literals and escapes so braces inside strings do not confuse the count.
func firstBalanced(s string, open, closing byte) string {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return ""
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
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
