package template

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

const (
	dateLayout  = "1/2/2006"
	timeLayout  = "3:04:05 PM"
	invalidDate = "Invalid Date"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// formatValue renders a resolved value. Fields whose name mentions Date or Time
// are shown as a date or a time of day, whatever the stored type is.
func formatValue(field string, value any) string {
	if value == nil {
		return ""
	}

	switch {
	case strings.Contains(field, "Date"):
		return formatTimestamp(value, dateLayout)
	case strings.Contains(field, "Time"):
		return formatTimestamp(value, timeLayout)
	default:
		return Stringify(value)
	}
}

func formatTimestamp(value any, layout string) string {
	t, ok := ParseTimestamp(value)
	if !ok {
		return invalidDate
	}

	return t.UTC().Format(layout)
}

// ParseTimestamp interprets value as a point in time. Numbers are epoch milliseconds.
func ParseTimestamp(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}

		return *v, true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}

		if ms, err := strconv.ParseFloat(s, 64); err == nil {
			return time.UnixMilli(int64(ms)), true
		}

		return time.Time{}, false
	case bool:
		return time.Time{}, false
	}

	ms, err := cast.ToFloat64E(value)
	if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, false
	}

	return time.UnixMilli(int64(ms)), true
}

// Stringify converts a context value to the text inserted into a template.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = Stringify(item)
		}

		return strings.Join(parts, ",")
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(data)
	}

	s, err := cast.ToStringE(value)
	if err != nil {
		return fmt.Sprint(value)
	}

	return s
}
