package bitrix

import "strings"

// CamelToUpperSnake converts a camelCase or PascalCase key into
// UPPER_SNAKE_CASE, inserting an underscore between a lowercase letter or
// digit and a following uppercase letter, then upper-casing the whole
// string. It is the identity on inputs already in upper-snake form
// (UF_CRM_TASK, ID, RESPONSIBLE_ID), since there is never a
// lowercase-or-digit immediately followed by an uppercase letter in those
// strings that isn't already separated by an underscore.
func CamelToUpperSnake(key string) string {
	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		if i > 0 && isUpper(r) {
			prev := runes[i-1]
			if isLowerOrDigit(prev) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

func isLowerOrDigit(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// NormalizeTaskKeys applies CamelToUpperSnake to every key of a
// tasks.task.list record, per spec.md §4.A's task-response normalization
// rule.
func NormalizeTaskKeys(record map[string]any) map[string]any {
	normalized := make(map[string]any, len(record))
	for k, v := range record {
		normalized[CamelToUpperSnake(k)] = v
	}
	return normalized
}
