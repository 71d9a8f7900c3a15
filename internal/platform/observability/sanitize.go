package observability

import (
	"strings"
	"unicode"
)

const (
	routeLimit  = 180
	methodLimit = 10
	userIDLimit = 64
	redacted    = "[redacted]"
)

// Event field names whose values never reach the logs. Gateways report signatures and
// client secrets in some failure paths.
var sensitiveFields = map[string]struct{}{
	"authorization": {},
	"clientsecret":  {},
	"keysecret":     {},
	"password":      {},
	"secret":        {},
	"signature":     {},
	"token":         {},
}

// sanitizeString drops control characters, newlines included, and truncates to limit runes.
func sanitizeString(value string, limit int) string {
	var b strings.Builder
	b.Grow(len(value))
	n := 0
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeRoute cleans a route pattern or path for logging. Empty becomes "/".
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, routeLimit)
}

// SanitizeMethod cleans and upper-cases an HTTP method.
func SanitizeMethod(method string) string {
	return strings.ToUpper(sanitizeString(method, methodLimit))
}

// SanitizeUserID bounds user identifiers written to logs.
func SanitizeUserID(uid string) string {
	return sanitizeString(strings.TrimSpace(uid), userIDLimit)
}

func isSensitiveField(key string) bool {
	normalized := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(key))
	_, ok := sensitiveFields[normalized]
	return ok
}
