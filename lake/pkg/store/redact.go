package store

import (
	"net/url"
	"regexp"
	"strings"
)

// RedactedDSN hides the password in postgres URIs and libpq strings so a DSN can be logged.
func RedactedDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "[REDACTED: invalid URI]"
		}
		if parsed.User != nil {
			if _, hasPassword := parsed.User.Password(); hasPassword {
				parsed.User = url.UserPassword(parsed.User.Username(), "REDACTED")
			}
		}
		return parsed.String()
	}

	if strings.Contains(dsn, "password=") {
		parts := strings.Fields(dsn)
		for i, part := range parts {
			if strings.HasPrefix(part, "password=") {
				parts[i] = "password=REDACTED"
			}
		}
		return strings.Join(parts, " ")
	}

	return dsn
}

var (
	libpqPasswordRegex = regexp.MustCompile(`password=('[^']*'|"[^"]*"|\S+)`)
	uriPasswordRegex   = regexp.MustCompile(`(postgres(?:ql)?://[^:/@\s]+:)[^@\s]+@`)
)

// sanitizeErrorForLogging redacts passwords from driver error messages.
func sanitizeErrorForLogging(msg string) string {
	msg = libpqPasswordRegex.ReplaceAllString(msg, "password=REDACTED")
	return uriPasswordRegex.ReplaceAllString(msg, "${1}REDACTED@")
}
