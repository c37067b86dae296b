package apl

import (
	"regexp"
	"strings"
)

// ArgsNamespace is the namespace the generated functions read path
// parameters from.
const ArgsNamespace = "argsNs"

var pathParamRe = regexp.MustCompile(`\{([^}]+)\}`)

// PathExpr compiles an OpenAPI path template into an APL character vector
// expression. Literal runs become quoted strings and each {param} becomes
// (⍕argsNs.<name>), joined with the catenate primitive:
//
//	/users/{userId}  ->  '/users/',(⍕argsNs.userId)
func PathExpr(path string) string {
	if path == "" {
		return "''"
	}

	var parts []string
	last := 0
	for _, m := range pathParamRe.FindAllStringSubmatchIndex(path, -1) {
		if m[0] > last {
			parts = append(parts, Quote(path[last:m[0]]))
		}
		parts = append(parts, "(⍕"+ArgsNamespace+"."+Name(path[m[2]:m[3]])+")")
		last = m[1]
	}
	if last < len(path) {
		parts = append(parts, Quote(path[last:]))
	}

	switch len(parts) {
	case 0:
		return "''"
	case 1:
		return parts[0]
	}
	return strings.Join(parts, ",")
}

// Quote returns s as an APL character vector literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// CommentLines prefixes every line of text with the APL lamp. Empty text
// yields an empty string.
func CommentLines(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = "⍝ " + line
	}
	return strings.Join(lines, "\n")
}
