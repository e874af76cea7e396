package logger

import (
	"log/slog"
	"strings"
)

// Key fragments that mark an attribute as a credential.
var sensitiveKeyPatterns = []string{
	"pass", // password, requirepass
	"secret",
	"auth", // masterauth
	"credential",
}

const redactedValue = "***REDACTED***"

// redactSensitive blanks string attributes whose key looks like a credential.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// RedactArgs renders a command for logging. Arguments of AUTH are masked.
func RedactArgs(args [][]byte) []string {
	out := make([]string, len(args))
	secret := len(args) > 0 && strings.EqualFold(string(args[0]), "AUTH")
	for i, a := range args {
		if secret && i > 0 {
			out[i] = redactedValue
			continue
		}
		out[i] = string(a)
	}
	return out
}
