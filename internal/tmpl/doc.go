// Package tmpl renders parameterized source text from small, reusable
// templates.
//
// A template body contains placeholders of the form `${name}` or
// `${name=default}`. Rendering resolves each placeholder against the node's
// bindings; a bound value always wins over a declared default, and a
// placeholder with neither is reported as an UnresolvedPlaceholderError.
//
// Default literals are HCL literal expressions (`"bit<32>"`, `0`, `true`) and
// are only evaluated when no binding exists for the name. Bound values may be
// plain scalars, cty.Values, other nodes (rendered first), or lazy sequences
// whose elements are rendered and joined with newlines. Rendering never
// mutates a node, so rendering the same node twice yields identical text.
package tmpl
