// Package coerce parses loosely typed, user supplied values (interview answers,
// webhook payloads) into canonical numbers and dates. Every function is total:
// invalid input yields ok == false, never an error or a panic.
package coerce

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// ToDecimal parses JSON numbers, numeric strings and Go numeric types.
func ToDecimal(x any) (float64, bool) {
	switch v := x.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	}
	return 0, false
}

// ToInt parses like ToDecimal and truncates toward zero. Values outside the
// 32-bit range of an INTEGER column are absent.
func ToInt(x any) (int, bool) {
	if s, ok := x.(string); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32); err == nil {
			return int(n), true
		}
	}
	f, ok := ToDecimal(x)
	if !ok {
		return 0, false
	}
	f = math.Trunc(f)
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// TimeToSeconds accepts "m:ss", "h:mm:ss" or a plain number of seconds.
func TimeToSeconds(x any) (int, bool) {
	s, isString := x.(string)
	if !isString || !strings.Contains(s, ":") {
		return ToInt(x)
	}

	parts := strings.Split(strings.TrimSpace(s), ":")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, ok := ToInt(p)
		if !ok || n < 0 {
			return 0, false
		}
		nums[i] = n
	}

	var total int64
	switch len(nums) {
	case 2:
		total = int64(nums[0])*60 + int64(nums[1])
	case 3:
		total = int64(nums[0])*3600 + int64(nums[1])*60 + int64(nums[2])
	default:
		return 0, false
	}
	if total > math.MaxInt32 {
		return 0, false
	}
	return int(total), true
}

// WeightFrom reads a lift weight from a scalar or a {weight_lb, reps} object.
func WeightFrom(x any) (float64, bool) {
	if m, ok := x.(map[string]any); ok {
		if w, ok := m["weight_lb"]; ok && w != nil {
			return ToDecimal(w)
		}
		return ToDecimal(m["weight"])
	}
	return ToDecimal(x)
}

var dateLayouts = []string{"01/02/2006", "1/2/2006", "2006-01-02"}

// DateFromMDY converts MM/DD/YYYY (or already ISO) input into YYYY-MM-DD.
func DateFromMDY(x any) (string, bool) {
	s, ok := x.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[4] == '-' {
		// 2001-02-05T00:00:00Z and friends
		s = s[:10]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
