// internal/cookies.go
// -------------------
// Helpers for reading cookie values the way a browser cookie store exposes them.
//
// Functions:
// - DecodeCookieValue: URL-decode a cookie value, keeping the raw value when it is not valid escaping.
// - ParseCookieString: split a "k=v; k2=v2" string (Cookie header or document.cookie) into a map.
package internal

import (
	"net/url"
	"strings"
)

// DecodeCookieValue URL-decodes v. Malformed escapes leave v untouched.
func DecodeCookieValue(v string) string {
	decoded, err := url.QueryUnescape(strings.ReplaceAll(v, "+", "%2B"))
	if err != nil {
		return v
	}
	return decoded
}

// ParseCookieString parses "a=1; csrftoken=abc%20d" into {"a": "1", "csrftoken": "abc d"}.
// Entries without a name are skipped. The first occurrence of a name wins.
func ParseCookieString(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, seen := out[name]; seen {
			continue
		}
		out[name] = DecodeCookieValue(strings.TrimSpace(value))
	}
	return out
}
