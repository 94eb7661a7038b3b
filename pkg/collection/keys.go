package collection

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// flattenKeys collapses nested objects into dotted keys:
// {"label": {"source": "raw"}} becomes {"label.source": "raw"}.
// Empty objects are kept as values so that markers such as "label": {}
// survive.
func flattenKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	flattenInto(out, "", m)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok && len(sub) > 0 {
			flattenInto(out, key, sub)
			continue
		}
		out[key] = v
	}
}

// nestKeys is the inverse of flattenKeys. A dotted key that would collide
// with a scalar at one of its prefixes is kept verbatim.
func nestKeys(m map[string]any) map[string]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Shorter keys first, so scalars claim their slot before dotted children.
	sort.Slice(keys, func(i, j int) bool {
		di, dj := strings.Count(keys[i], "."), strings.Count(keys[j], ".")
		if di != dj {
			return di < dj
		}
		return keys[i] < keys[j]
	})

	out := make(map[string]any, len(m))
	for _, k := range keys {
		if !insertNested(out, strings.Split(k, "."), m[k]) {
			out[k] = m[k]
		}
	}
	return out
}

func insertNested(dst map[string]any, parts []string, v any) bool {
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	cur := dst
	for i, p := range parts {
		if i == len(parts)-1 {
			if _, taken := cur[p]; taken {
				return false
			}
			if sub, ok := v.(map[string]any); ok {
				v = cloneMap(sub)
			}
			cur[p] = v
			return true
		}
		next, exists := cur[p]
		if !exists {
			sub := map[string]any{}
			cur[p] = sub
			cur = sub
			continue
		}
		sub, ok := next.(map[string]any)
		if !ok {
			return false
		}
		cur = sub
	}
	return false
}

// toInt64 accepts the integer spellings produced by Go callers, JSON
// decoding and the string-only storage boundary.
func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint32:
		return int64(x), true
	case float64:
		// NaN fails the Trunc comparison.
		if x != math.Trunc(x) || x < -9223372036854775808.0 || x >= 9223372036854775808.0 {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// toStrings accepts a string list in any of the shapes JSON decoding or the
// storage codec produce.
func toStrings(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return append([]string(nil), x...), true
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
