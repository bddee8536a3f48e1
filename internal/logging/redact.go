package logging

import (
	"net/url"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// sensitiveParams are query parameter names masked by RedactURL. Signed
// media URLs carry their access grant in the query string; logging it
// would leak a usable credential.
var sensitiveParams = []string{
	"token",
	"signature",
	"sig",
	"key",
	"secret",
	"auth",
	"credential",
	"x-amz-signature",
	"x-amz-credential",
	"x-amz-security-token",
	"x-goog-signature",
}

// RedactURL masks sensitive query parameters and userinfo in a URL so
// signed media links can appear in logs. Unparseable input is replaced
// whole rather than leaked.
func RedactURL(raw string) string {
	if raw == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return RedactedValue
	}

	query := u.Query()
	changed := false
	for name := range query {
		if sensitiveParam(name) {
			query.Set(name, RedactedValue)
			changed = true
		}
	}
	if changed {
		u.RawQuery = query.Encode()
	}

	if u.User != nil {
		u.User = url.User(RedactedValue)
	}

	return u.String()
}

func sensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveParams {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

// SnippetLength is the maximum rune count Snippet keeps.
const SnippetLength = 48

// Snippet shortens a message body for log output. Bodies are user
// content; logs keep just enough to correlate a record, never the whole
// text.
func Snippet(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	runes := []rune(body)
	if len(runes) <= SnippetLength {
		return body
	}
	return string(runes[:SnippetLength]) + "..."
}
