package apl

import (
	"strings"
	"unicode"
)

// PascalCase joins the words of s, upper-casing the first rune of each.
// Any rune that is not a letter, a digit, ∆ or ⍙ separates words.
// Example: "list pets" -> "ListPets", "get_/users/{id}" -> "GetUsersId".
func PascalCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, word := range words(s) {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// CamelCase is PascalCase with the leading capital run lowered, keeping the
// last capital of an acronym that starts the next word.
// Example: "Pet Store" -> "petStore", "HTTPServer" -> "httpServer", "ID" -> "id".
func CamelCase(s string) string {
	runes := []rune(PascalCase(s))
	if len(runes) == 0 {
		return ""
	}
	upper := 0
	for upper < len(runes) && unicode.IsUpper(runes[upper]) {
		upper++
	}
	switch {
	case upper == 0:
		return string(runes)
	case upper > 1 && upper < len(runes) && unicode.IsLower(runes[upper]):
		upper--
	}
	for i := 0; i < upper; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '∆' || r == Marker)
	})
}
