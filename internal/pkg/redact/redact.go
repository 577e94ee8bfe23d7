// redact маскирует чувствительные значения перед записью в лог.
package redact

import (
	"strconv"
	"strings"
)

// Email оставляет первые две руны локальной части и домен: "jo***@example.com".
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}

	r := []rune(local)
	if len(r) > 2 {
		return string(r[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// Token скрывает токен целиком, оставляя длину для отладки.
func Token(s string) string {
	if s == "" {
		return ""
	}

	return "[REDACTED_TOKEN len=" + strconv.Itoa(len(s)) + "]"
}
