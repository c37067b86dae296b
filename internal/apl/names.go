// Package apl holds the Dyalog APL specific lexical rules used by the
// generator: legal names, escaping, case conversion and the small literal
// helpers templates need.
package apl

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Marker is the escape character used for names that are not legal as-is.
const Marker = '⍙'

// EmptyName replaces an empty identifier.
const EmptyName = "⍙empty"

// Name returns raw unchanged when it is already a legal APL name and an
// escaped legal name otherwise. Every illegal rune (and every literal
// marker) is written as ⍙<code point>⍙ behind a leading marker, so
// Name("hello-world") is "⍙hello⍙45⍙world". Name is idempotent.
//
// Distinct inputs may map to the same output; callers that need unique
// names must suffix at the point of use.
func Name(raw string) string {
	if raw == "" {
		return EmptyName
	}
	if IsValidName(raw) {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw) + 8)
	b.WriteRune(Marker)
	for _, r := range raw {
		if r != Marker && isNameRune(r) {
			b.WriteRune(r)
			continue
		}
		writeEscape(&b, r)
	}
	return b.String()
}

// IsValidName reports whether s can be used verbatim as an APL name
// produced by this package. Names starting with the marker must be well
// formed escapes.
func IsValidName(s string) bool {
	if s == "" {
		return false
	}
	first, size := utf8.DecodeRuneInString(s)
	if first == Marker {
		return isEscaped(s[size:])
	}
	if isDigit(first) {
		return false
	}
	for _, r := range s {
		if !isNameRune(r) {
			return false
		}
	}
	return true
}

// isEscaped checks the body that follows a leading marker: a run of legal
// non-marker runes and ⍙digits⍙ groups.
func isEscaped(body string) bool {
	for body != "" {
		r, size := utf8.DecodeRuneInString(body)
		body = body[size:]
		if r == utf8.RuneError && size <= 1 {
			return false
		}
		if r != Marker {
			if !isNameRune(r) {
				return false
			}
			continue
		}
		digits := 0
		for body != "" && isDigit(rune(body[0])) {
			body = body[1:]
			digits++
		}
		if digits == 0 {
			return false
		}
		closing, size := utf8.DecodeRuneInString(body)
		if closing != Marker {
			return false
		}
		body = body[size:]
	}
	return true
}

func writeEscape(b *strings.Builder, r rune) {
	b.WriteRune(Marker)
	b.WriteString(strconv.Itoa(int(r)))
	b.WriteRune(Marker)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', isDigit(r):
		return true
	case r == '_' || r == '∆' || r == Marker:
		return true
	case r >= 'À' && r <= 'Ö', r >= 'Ø' && r <= 'Ý':
		return true
	case r >= 'ß' && r <= 'ö', r >= 'ø' && r <= 'ý':
		return true
	case r >= 'Ⓐ' && r <= 'Ⓩ':
		return true
	}
	return false
}
