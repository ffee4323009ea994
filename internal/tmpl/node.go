package tmpl

import (
	"fmt"
	"maps"
	"strings"
)

// Bindings maps placeholder names to values.
type Bindings map[string]any

// Renderer is anything that renders to text. *Node implements it; callers
// may bind their own implementations.
type Renderer interface {
	Render() (string, error)
}

// Node is an immutable template body plus the values bound to its
// placeholders.
type Node struct {
	body         string
	placeholders []Placeholder
	bindings     Bindings
}

// New builds a node from a template body. A single leading newline is
// dropped, trailing whitespace is trimmed and the common indentation of all
// non-blank lines is removed, so bodies can be written as indented raw
// string literals.
func New(body string, bindings Bindings) *Node {
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimRight(body, " \t\r\n")
	body = dedent(body)

	b := make(Bindings, len(bindings))
	maps.Copy(b, bindings)

	return &Node{
		body:         body,
		placeholders: Placeholders(body),
		bindings:     b,
	}
}

// With returns a copy of the node whose bindings are the receiver's merged
// with extra. Values in extra take precedence.
func (n *Node) With(extra Bindings) *Node {
	b := make(Bindings, len(n.bindings)+len(extra))
	maps.Copy(b, n.bindings)
	maps.Copy(b, extra)
	return &Node{
		body:         n.body,
		placeholders: n.placeholders,
		bindings:     b,
	}
}

// Body returns the dedented template body.
func (n *Node) Body() string {
	return n.body
}

// Render substitutes every placeholder and returns the resulting text. On
// error no partial output is returned.
func (n *Node) Render() (string, error) {
	var sb strings.Builder
	sb.Grow(len(n.body))

	start := 0
	for _, p := range n.placeholders {
		sb.WriteString(n.body[start:p.Start])

		text, err := n.resolve(p)
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		start = p.End
	}
	sb.WriteString(n.body[start:])

	return sb.String(), nil
}

// MustRender is Render for statically known templates; it panics on error.
func (n *Node) MustRender() string {
	s, err := n.Render()
	if err != nil {
		panic(err)
	}
	return s
}

func (n *Node) resolve(p Placeholder) (string, error) {
	if v, ok := n.bindings[p.Name]; ok {
		text, err := Text(v)
		if err != nil {
			return "", fmt.Errorf("rendering ${%s}: %w", p.Name, err)
		}
		return text, nil
	}

	if !p.HasDefault {
		return "", &UnresolvedPlaceholderError{Name: p.Name, Offset: p.Start}
	}

	val, err := p.evalDefault()
	if err != nil {
		return "", err
	}
	text, err := ctyText(val)
	if err != nil {
		return "", &InvalidDefaultError{Name: p.Name, Literal: p.Default, Err: err}
	}
	return text, nil
}

// dedent removes the longest whitespace prefix shared by all non-blank lines.
// Blank lines are normalized to empty strings.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}
