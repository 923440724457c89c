package survey

import (
	"bytes"
	"encoding/json"
	"strings"
)

// MediaKind discriminates the shapes a media field arrives in
type MediaKind int

const (
	MediaEmpty MediaKind = iota
	MediaSingle
	MediaArray
	MediaMalformed
)

func (k MediaKind) String() string {
	switch k {
	case MediaEmpty:
		return "empty"
	case MediaSingle:
		return "single"
	case MediaArray:
		return "array"
	case MediaMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// MediaRef is a normalized media field. Values are trimmed and quote-stripped,
// and never contain empty strings.
type MediaRef struct {
	Kind   MediaKind
	Values []string
	// Raw holds the original text of a malformed reference
	Raw string
}

// SingleMedia builds a single-valued reference
func SingleMedia(url string) MediaRef {
	return ParseMediaString(url)
}

// First returns the first value, or "" when there is none
func (m MediaRef) First() string {
	if len(m.Values) == 0 {
		return ""
	}
	return m.Values[0]
}

// ParseMediaString normalizes the loose string shapes seen in survey feeds:
// plain URLs, quoted URLs and JSON-encoded arrays.
func ParseMediaString(s string) MediaRef {
	return parseMediaString(s, 0)
}

func parseMediaString(s string, depth int) MediaRef {
	s = strings.TrimSpace(s)
	if s == "" {
		return MediaRef{Kind: MediaEmpty}
	}

	switch s[0] {
	case '[':
		var values []string
		if err := json.Unmarshal([]byte(s), &values); err != nil {
			return MediaRef{Kind: MediaMalformed, Raw: s}
		}
		return arrayMedia(values)
	case '"', '\'':
		if depth > 0 {
			break
		}
		var unquoted string
		if err := json.Unmarshal([]byte(s), &unquoted); err != nil {
			unquoted = stripQuotes(s)
		}
		return parseMediaString(unquoted, depth+1)
	}

	value := stripQuotes(s)
	if value == "" {
		return MediaRef{Kind: MediaEmpty}
	}
	return MediaRef{Kind: MediaSingle, Values: []string{value}}
}

func arrayMedia(values []string) MediaRef {
	var cleaned []string
	for _, v := range values {
		if v = stripQuotes(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return MediaRef{Kind: MediaEmpty}
	}
	return MediaRef{Kind: MediaArray, Values: cleaned}
}

func stripQuotes(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'`))
}

// UnmarshalJSON accepts null, a string (possibly quoted or holding an encoded
// array) or an array of strings. Anything else is kept as malformed.
func (m *MediaRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*m = MediaRef{Kind: MediaEmpty}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			*m = MediaRef{Kind: MediaMalformed, Raw: string(trimmed)}
			return nil
		}
		*m = ParseMediaString(s)
	case '[':
		var values []string
		if err := json.Unmarshal(trimmed, &values); err != nil {
			*m = MediaRef{Kind: MediaMalformed, Raw: string(trimmed)}
			return nil
		}
		*m = arrayMedia(values)
	default:
		*m = MediaRef{Kind: MediaMalformed, Raw: string(trimmed)}
	}
	return nil
}

// MarshalJSON writes the normalized values as an array, or null when empty
func (m MediaRef) MarshalJSON() ([]byte, error) {
	if len(m.Values) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(m.Values)
}
