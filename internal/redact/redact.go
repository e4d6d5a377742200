package redact

import (
	"regexp"
	"strings"
)

// Options controls redaction. The zero value is not useful; start from
// Defaults().
type Options struct {
	Enabled           bool
	PreserveStructure bool
	CustomFields      []string
}

func Defaults() Options {
	return Options{Enabled: true}
}

type pattern struct {
	re          *regexp.Regexp
	replacement string
}

// Applied in order.
var patterns = []pattern{
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[REDACTED_SSN]"},
	{regexp.MustCompile(`\bTEST-\d{4}\b`), "[REDACTED_MRN]"},
	{regexp.MustCompile(`\+1-\d{3}-\d{3}-\d{4}`), "[REDACTED_PHONE]"},
	{regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`), "[REDACTED_DOB]"},
}

var sensitiveFields = map[string]struct{}{
	"password":    {},
	"ssn":         {},
	"sin":         {},
	"mrn":         {},
	"fakeMrn":     {},
	"dob":         {},
	"dateOfBirth": {},
	"email":       {},
	"smsNumber":   {},
	"phone":       {},
	"phoneNumber": {},
	"address":     {},
	"postalCode":  {},
}

// String replaces every PHI-shaped substring of text with a class-tagged
// placeholder.
func String(text string, opts Options) string {
	if !opts.Enabled || text == "" {
		return text
	}
	for _, p := range patterns {
		text = p.re.ReplaceAllString(text, p.replacement)
	}
	return text
}

// Value walks maps and slices and redacts sensitive keys and PHI-shaped
// strings. It never mutates its input. Values of other types pass through.
func Value(v any, opts Options) any {
	if !opts.Enabled {
		return v
	}

	custom := make(map[string]struct{}, len(opts.CustomFields))
	for _, f := range opts.CustomFields {
		custom[f] = struct{}{}
	}

	return walk(v, opts, custom)
}

// Map is Value for the common case of a metadata map.
func Map(m map[string]any, opts Options) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := Value(m, opts).(map[string]any)
	return out
}

func walk(v any, opts Options, custom map[string]struct{}) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return String(t, opts)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSensitive(k, custom) {
				out[k] = placeholder(k, opts)
				continue
			}
			out[k] = walk(val, opts, custom)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSensitive(k, custom) {
				out[k] = placeholder(k, opts)
				continue
			}
			out[k] = String(val, opts)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = walk(item, opts, custom)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = walk(item, opts, custom)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = String(item, opts)
		}
		return out
	default:
		return v
	}
}

func isSensitive(key string, custom map[string]struct{}) bool {
	if _, ok := sensitiveFields[key]; ok {
		return true
	}
	_, ok := custom[key]
	return ok
}

func placeholder(key string, opts Options) string {
	if opts.PreserveStructure {
		return "[REDACTED_" + strings.ToUpper(key) + "]"
	}
	return "[REDACTED]"
}

// MaskEmail keeps the first two characters of the local part and the
// domain.
func MaskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[INVALID_EMAIL]"
	}
	local, domain := []rune(parts[0]), parts[1]
	if len(local) > 2 {
		return string(local[:2]) + "***@" + domain
	}
	return "***@" + domain
}

// MaskPhone keeps the last four digits.
func MaskPhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 4 {
		return "[REDACTED_PHONE]"
	}
	return "***-***-" + d[len(d)-4:]
}
