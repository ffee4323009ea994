// Package indent re-indents generated pipeline source using a small set of
// line-local rules. It has no lookahead and does not validate nesting;
// unbalanced input produces unbalanced output.
package indent

import (
	"regexp"
	"strings"
)

// Unit is one level of indentation.
const Unit = "    "

var (
	reEmptyBraces    = regexp.MustCompile(`\{\s*\}$`)
	reCloseBrace     = regexp.MustCompile(`^\}`)
	reElseEndif      = regexp.MustCompile(`^#(?:else|endif)`)
	reSemicolon      = regexp.MustCompile(`;$`)
	reOpenParen      = regexp.MustCompile(`\($`)
	reCloseParenOpen = regexp.MustCompile(`\)\s*\{$`)
	reOpenBrace      = regexp.MustCompile(`\{$`)
	reIfElse         = regexp.MustCompile(`^#(?:if|else)`)
)

// State is the formatter state carried from one line to the next.
type State struct {
	Depth    int
	InParams bool
}

// Line trims raw, computes its depth and returns the indented line. Rules
// are evaluated on the line with any `//` comment removed.
func (s *State) Line(raw string) string {
	line := strings.TrimSpace(raw)
	code := line
	if i := strings.Index(code, "//"); i >= 0 {
		code = code[:i]
	}
	code = strings.TrimSpace(code)

	switch {
	case reEmptyBraces.MatchString(code):
	case reCloseBrace.MatchString(code):
		s.Depth--
	case reElseEndif.MatchString(code):
		s.Depth--
	case reSemicolon.MatchString(code) && s.InParams:
		s.InParams = false
		s.Depth -= 2
	}

	out := line
	if line != "" {
		out = strings.Repeat(Unit, max(s.Depth, 0)) + line
	}

	switch {
	case reOpenParen.MatchString(code):
		s.InParams = true
		s.Depth += 2
	case reCloseParenOpen.MatchString(code) && s.InParams:
		s.InParams = false
		s.Depth--
	case reOpenBrace.MatchString(code):
		s.Depth++
	case reIfElse.MatchString(code):
		s.Depth++
	}

	return out
}

// Lines formats lines starting from depth zero. It returns the formatted
// lines and the depth after the last line, which is zero for balanced
// input.
func Lines(lines []string) ([]string, int) {
	var s State
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = s.Line(l)
	}
	return out, s.Depth
}

// Format re-indents text and appends a trailing empty line.
func Format(text string) string {
	lines, _ := Lines(strings.Split(text, "\n"))
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// LOC returns the number of generated lines of formatted output, counting
// the empty line after the final newline.
func LOC(formatted string) int {
	return strings.Count(formatted, "\n") + 1
}
