package probe

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"creditetl/internal/table"
)

// InferType returns the narrowest logical type every non-empty value fits:
// bigint, double, boolean, then string. A column with no values is string.
func InferType(values []string) string {
	nonEmpty := nonEmptyTrimmed(values)
	switch {
	case len(nonEmpty) == 0:
		return table.KindString
	case allMatch(nonEmpty, isInt):
		return "bigint"
	case allMatch(nonEmpty, isFloat):
		return table.KindDouble
	case allMatch(nonEmpty, isBool):
		return table.KindBool
	default:
		return table.KindString
	}
}

func nonEmptyTrimmed(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// isFloat accepts integers too, so a column mixing 1 and 1.5 is a double.
// NaN and Inf spellings are rejected.
func isFloat(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return f-f == 0
}

// isBool matches what the readers coerce to a boolean.
func isBool(s string) bool {
	_, err := strconv.ParseBool(strings.ToLower(s))
	return err == nil
}

// NormalizeName turns header text into a lowercase ASCII identifier: accents
// are stripped, spaces, dashes and dots become underscores, anything else
// outside [a-z0-9_] is dropped. An empty result becomes "col".
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, _ := transform.String(t, s)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "col"
	}
	return name
}
