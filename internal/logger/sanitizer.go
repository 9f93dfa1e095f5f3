package logger

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// defaultSensitiveFields are column names whose bound values never reach a log line.
var defaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

// maxValueLen bounds the rendered length of a single argument.
const maxValueLen = 100

// Sanitizer masks command arguments before they are logged or traced.
// When a statement mentions a sensitive column, every argument is masked,
// since argument positions cannot be mapped to columns without parsing SQL.
type Sanitizer struct {
	mask     string
	patterns []*regexp.Regexp
}

// NewSanitizer creates a sanitizer for the given column names.
// With no names the default set is used.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = defaultSensitiveFields
	}

	patterns := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, field := range sensitiveFields {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(field)+`\b`))
	}

	return &Sanitizer{
		mask:     "***REDACTED***",
		patterns: patterns,
	}
}

// Sensitive reports whether statement references a sensitive column.
func (s *Sanitizer) Sensitive(statement string) bool {
	lower := strings.ToLower(statement)
	for _, p := range s.patterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

// MaskArgs returns args with every value replaced by the mask when statement
// is sensitive. The input slice is never modified.
func (s *Sanitizer) MaskArgs(statement string, args []any) []any {
	if len(args) == 0 || !s.Sensitive(statement) {
		return args
	}

	masked := make([]any, len(args))
	for i := range masked {
		masked[i] = s.mask
	}
	return masked
}

// FormatArgs renders args as "[a, b, NULL]" with long values truncated.
func (s *Sanitizer) FormatArgs(args []any) string {
	if len(args) == 0 {
		return "[]"
	}

	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatValue(a)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FormatValue renders a single argument, truncating long values.
func FormatValue(v any) string {
	if v == nil {
		return "NULL"
	}

	str := fmt.Sprintf("%v", v)
	if len(str) <= maxValueLen {
		return str
	}

	cut := maxValueLen
	for cut > 0 && !utf8.RuneStart(str[cut]) {
		cut--
	}
	return str[:cut] + "..."
}
