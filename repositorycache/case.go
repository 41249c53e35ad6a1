package repositorycache

import (
	"reflect"
	"strings"
	"unicode"
)

// namespaceFor derives the default cache namespace from T, e.g. *model.User -> "user".
func namespaceFor[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	// generic instantiations carry their type arguments in brackets
	if i := strings.IndexByte(name, '['); i > 0 {
		name = name[:i]
	}
	return toSnake(name)
}

// toSnake converts s to snake_case. Punctuation collapses into a single
// underscore so namespaces stay usable as tag and key segments.
func toSnake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	lastUnderscore := false
	underscore := func() {
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					underscore()
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false

		case unicode.IsLower(r):
			b.WriteRune(r)
			lastUnderscore = false

		case unicode.IsDigit(r):
			if i > 0 && !unicode.IsDigit(runes[i-1]) {
				underscore()
			}
			b.WriteRune(r)
			lastUnderscore = false

		default:
			underscore()
		}
	}

	return strings.Trim(b.String(), "_")
}
