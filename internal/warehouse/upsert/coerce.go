package upsert

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// prepareRecord implements spec.md §4.E steps 1-2: rename id->bitrix_id,
// lower-case every key, drop keys absent from columnTypes, then coerce
// each surviving value to its declared column type.
func prepareRecord(record map[string]any, columnTypes map[string]string) map[string]any {
	renamed := make(map[string]any, len(record))
	for k, v := range record {
		key := strings.ToLower(k)
		if key == "id" {
			key = "bitrix_id"
		}
		renamed[key] = v
	}

	prepared := make(map[string]any, len(renamed))
	for k, v := range renamed {
		colType, known := columnTypes[k]
		if !known {
			continue
		}
		prepared[k] = coerceValue(v, colType)
	}
	return prepared
}

// coerceValue applies spec.md §4.E step 2's coercion rules in priority
// order: empty/null -> NULL, list/dict -> JSON, numeric column -> float,
// integer column -> int, timestamp/date column -> UTC timestamp,
// everything else -> unchanged.
func coerceValue(v any, colType string) any {
	if isEmpty(v) {
		return nil
	}

	switch typed := v.(type) {
	case []any, map[string]any:
		return encodeJSON(typed)
	}

	lowerType := strings.ToLower(colType)
	switch {
	case isNumericColumn(lowerType):
		f, ok := toFloat(v)
		if !ok {
			return nil
		}
		return f
	case isIntegerColumn(lowerType):
		i, ok := toInt(v)
		if !ok {
			return nil
		}
		return i
	case isTimestampColumn(lowerType):
		t, ok := toUTCTimestamp(v)
		if !ok {
			return nil
		}
		return t
	default:
		return v
	}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}

func isNumericColumn(t string) bool {
	return strings.Contains(t, "double") || strings.Contains(t, "decimal") ||
		strings.Contains(t, "numeric") || strings.Contains(t, "real") || t == "float"
}

func isIntegerColumn(t string) bool {
	return strings.Contains(t, "bigint") || strings.Contains(t, "int") && !strings.Contains(t, "point")
}

func isTimestampColumn(t string) bool {
	return strings.Contains(t, "timestamp") || strings.Contains(t, "date")
}

func toFloat(v any) (float64, bool) {
	switch typed := v.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toInt(v any) (int64, bool) {
	switch typed := v.(type) {
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case float64:
		return int64(typed), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// toUTCTimestamp parses an ISO-8601 timestamp (accepting a trailing Z as
// +00:00), converts to UTC, and drops tzinfo per spec.md §8.3's worked
// example ("2024-01-15T10:00:00+03:00" -> "2024-01-15 07:00:00").
func toUTCTimestamp(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		if t, ok := v.(time.Time); ok {
			return t.UTC(), true
		}
		return time.Time{}, false
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// encodeJSON serializes a list/dict value without HTML-escaping, per
// spec.md §4.E's "UTF-8, no ASCII escaping" requirement.
func encodeJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "[]"
	}
	return strings.TrimRight(buf.String(), "\n")
}
