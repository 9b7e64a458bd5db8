package remote

import "strings"

// EscapeQuotes экранирует кавычки в значении, подставляемом в
// выражение поиска табличного API, чтобы значение с кавычкой не
// ломало синтаксис формулы.
func EscapeQuotes(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	value = strings.ReplaceAll(value, `"`, `\"`)
	return value
}

// isPlainIdent разрешает только простые имена полей: латиница, цифры
// и подчёркивание.
func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}
