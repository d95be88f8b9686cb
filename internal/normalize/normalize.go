// Package normalize is the adapter boundary between the backend's loose
// response shapes and the canonical types the rest of the process works
// with. Shape variation (bare arrays vs wrapped lists, string vs array
// images, variant field names) is handled here and nowhere else.
package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Category canonicalizes a category string: Unicode NFKC, trimmed,
// lowercased. Idempotent, so catalog filters and admin input compare equal
// regardless of form or case.
func Category(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

// Items coerces a list response into its element form. The backend returns
// bare arrays as well as {"items": [...]}, {"data": [...]} and
// {"results": [...]} wrappers.
func Items(body []byte) []json.RawMessage {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	switch body[0] {
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(body, &items) != nil {
			return nil
		}
		return items
	case '{':
		var wrapper map[string]json.RawMessage
		if json.Unmarshal(body, &wrapper) != nil {
			return nil
		}
		for _, key := range []string{"items", "data", "results"} {
			raw, ok := wrapper[key]
			if !ok {
				continue
			}
			var items []json.RawMessage
			if json.Unmarshal(raw, &items) == nil {
				return items
			}
		}
	}
	return nil
}

// Images flattens any of the image shapes the backend emits into a list of
// non-empty strings: a bare string, an array of strings, or an array of
// objects carrying url, path or src.
func Images(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return nil
	}
	return imagesFromValue(v)
}

func imagesFromValue(v any) []string {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, el := range x {
			switch e := el.(type) {
			case string:
				if strings.TrimSpace(e) != "" {
					out = append(out, e)
				}
			case map[string]any:
				if s := imageFromObject(e); s != "" {
					out = append(out, s)
				}
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case map[string]any:
		if s := imageFromObject(x); s != "" {
			return []string{s}
		}
	}
	return nil
}

func imageFromObject(obj map[string]any) string {
	for _, key := range []string{"url", "path", "src"} {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// Cover is the designated thumbnail: the first normalized image.
func Cover(images []string) string {
	if len(images) == 0 {
		return ""
	}
	return images[0]
}

// Quantity sanitizes a raw quantity: any value that is not a positive
// integer collapses to zero.
func Quantity(n int) int {
	if n <= 0 {
		return 0
	}
	return n
}

// flexInt decodes an integer that may arrive as a JSON number, a numeric
// string, or garbage (which collapses to zero rather than failing the
// surrounding document).
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	*f = flexInt(parseFloat(data))
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	*f = flexFloat(parseFloat(data))
	return nil
}

func parseFloat(data []byte) float64 {
	s := strings.TrimSpace(string(data))
	s = strings.Trim(s, `"`)
	if s == "" || s == "null" {
		return 0
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}
