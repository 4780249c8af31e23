package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeName lowercases, strips diacritics and collapses whitespace so
// "  José  Núñez" and "jose nunez" compare equal.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return s
	}
	s = stripDiacritics(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeKey canonicalizes short labels such as round names: separators
// and case are ignored.
func NormalizeKey(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)
	return NormalizeName(s)
}

// NormalizeID renders ids that arrive as numbers or strings the same way.
// Zero and empty ids are treated as absent.
func NormalizeID(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(v)
		if s == "0" {
			return ""
		}
		return s
	}
	if f, ok := toFloat(raw); ok {
		if f == 0 {
			return ""
		}
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}

// NormalizeText flattens free-text fields. Arrays are joined with ", ".
func NormalizeText(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := NormalizeText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(v, ", ")
	}
	if f, ok := toFloat(raw); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// NormalizeSkills accepts arrays, JSON-encoded arrays and comma separated
// lists.
func NormalizeSkills(raw interface{}) []string {
	var items []interface{}
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") {
			items = AsSlice(trimmed)
		} else {
			for _, s := range strings.Split(trimmed, ",") {
				items = append(items, s)
			}
		}
	default:
		items = AsSlice(raw)
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		s := NormalizeText(item)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeTime parses timestamps in the layouts the feeds use, plus unix
// seconds or milliseconds. Unparseable input is the zero time.
func NormalizeTime(raw interface{}) time.Time {
	switch v := raw.(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return v.UTC()
	case *time.Time:
		if v == nil {
			return time.Time{}
		}
		return v.UTC()
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
		return time.Time{}
	}
	if f, ok := toFloat(raw); ok && f > 0 {
		if f > 1e12 {
			return time.UnixMilli(int64(f)).UTC()
		}
		return time.Unix(int64(f), 0).UTC()
	}
	return time.Time{}
}
