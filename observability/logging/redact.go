package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// Ledger identifiers are public on chain and stay readable in logs. Anything
// else passed through MaskField, such as bearer tokens or DSNs, is masked.
var redactionAllowlist = map[string]struct{}{
	"service":      {},
	"env":          {},
	"message":      {},
	"severity":     {},
	"timestamp":    {},
	"error":        {},
	"reason":       {},
	"component":    {},
	"method":       {},
	"caller":       {},
	"sender":       {},
	"recipient":    {},
	"feerecipient": {},
	"amount":       {},
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// RedactionAllowlist returns a sorted copy of the keys that are emitted without
// redaction.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField returns a slog.Attr that redacts the supplied value unless the key is
// explicitly allowlisted. The original key casing is preserved for readability.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskDSN keeps the scheme of a connection string and hides the rest, so logs
// show which backend is in use without leaking credentials.
func MaskDSN(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return trimmed
	}
	if scheme, _, ok := strings.Cut(trimmed, "://"); ok {
		return scheme + "://" + RedactedValue
	}
	return RedactedValue
}
