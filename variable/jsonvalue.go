package variable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ToJSONValue normalizes an arbitrary value into its json-shaped form:
// map[string]any, []any, json.Number, string, bool or nil. Numbers are kept
// as json.Number so large integers survive the round trip.
func ToJSONValue(v any) any {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case map[string]any, []any, json.Number, string, bool:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return v
	}
	return out
}

// Stringify renders a json-shaped value the way templates splice it in:
// strings verbatim, scalars in their plain form, composites as JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// CanConvertToLong reports whether v represents a whole number: integers,
// floats whose fractional part is exactly zero, and strings parsing to either.
func CanConvertToLong(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if math.Mod(t, 1) == 0 && t >= math.MinInt64 && t <= math.MaxInt64 {
			return int64(t), true
		}
		return 0, false
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil && math.Mod(f, 1) == 0 {
			return int64(f), true
		}
		return 0, false
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil && math.Mod(f, 1) == 0 {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// CanConvertToBool accepts booleans, the integers 1/0, and the strings
// true/是/1 and false/否/0 (case-insensitive).
func CanConvertToBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case int:
		return intToBool(int64(t))
	case int64:
		return intToBool(t)
	case float64:
		if t == 1 || t == 0 {
			return t == 1, true
		}
		return false, false
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return intToBool(n)
		}
		return false, false
	case string:
		s := strings.TrimSpace(t)
		switch {
		case strings.EqualFold(s, "true") || s == "是" || s == "1":
			return true, true
		case strings.EqualFold(s, "false") || s == "否" || s == "0":
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

func toFloat(v any) (float64, bool) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	f, err := cast.ToFloat64E(v)
	return f, err == nil
}

func intToBool(n int64) (bool, bool) {
	if n == 1 || n == 0 {
		return n == 1, true
	}
	return false, false
}
