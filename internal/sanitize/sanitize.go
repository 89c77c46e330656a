// Package sanitize makes arbitrary metadata safe for storage in a jsonb
// column.
//
// Postgres rejects jsonb values containing NUL bytes, and other C0 control
// characters tend to leak in from scraped or OCR'd source text. Clean strips
// them recursively from any JSON-serializable value while leaving all other
// content (including CJK text) untouched.
package sanitize

import (
	"strings"
	"time"
)

// Clean recursively sanitizes a JSON-serializable value. Strings lose every
// code point below 0x20 except tab, newline and carriage return; slices are
// cleaned element-wise, maps value-wise with keys preserved, and time values
// become RFC 3339 strings. Everything else passes through unchanged.
//
// Clean is pure and never fails: unknown types are returned as-is.
func Clean(v any) any {
	switch val := v.(type) {
	case string:
		return cleanString(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Clean(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cleanString(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Clean(item)
		}
		return out
	default:
		return v
	}
}

// CleanMap sanitizes a metadata document value-wise. A nil map stays nil.
func CleanMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clean(v)
	}
	return out
}

func cleanString(s string) string {
	// Fast path: most strings carry no control characters at all.
	if !strings.ContainsFunc(s, isStripped) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isStripped(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isStripped(r rune) bool {
	return r < 0x20 && r != '\t' && r != '\n' && r != '\r'
}
