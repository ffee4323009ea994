package tmpl

import (
	"regexp"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// placeholderRE matches `${name}` and `${name=default}`. The default is the
// shortest run of characters up to the first closing brace.
var placeholderRE = regexp.MustCompile(`\$\{(\w+)(?:=(.+?))?\}`)

// Placeholder is a single parsed occurrence of `${name}` or `${name=default}`.
type Placeholder struct {
	Name       string
	Default    string
	HasDefault bool
	// Start and End are byte offsets of the whole placeholder in the body.
	Start int
	End   int
}

// Placeholders returns every placeholder in body, in order of appearance.
// Repeated names are returned once per occurrence.
func Placeholders(body string) []Placeholder {
	matches := placeholderRE.FindAllStringSubmatchIndex(body, -1)
	out := make([]Placeholder, 0, len(matches))
	for _, m := range matches {
		p := Placeholder{
			Name:  body[m[2]:m[3]],
			Start: m[0],
			End:   m[1],
		}
		if m[4] >= 0 {
			p.Default = body[m[4]:m[5]]
			p.HasDefault = true
		}
		out = append(out, p)
	}
	return out
}

// evalDefault evaluates a default literal as an HCL expression with no
// variables or functions in scope.
func (p Placeholder) evalDefault() (cty.Value, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(p.Default), "${"+p.Name+"}", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.NilVal, &InvalidDefaultError{Name: p.Name, Literal: p.Default, Err: diags}
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, &InvalidDefaultError{Name: p.Name, Literal: p.Default, Err: diags}
	}
	return val, nil
}

// ctyText renders a primitive cty.Value the way it would be written in
// generated source: strings raw, numbers in plain decimal, bools as words.
func ctyText(v cty.Value) (string, error) {
	if v.IsNull() || !v.IsKnown() {
		return "", errNotPrimitive
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int(nil)
			return i.String(), nil
		}
		return bf.Text('f', -1), nil
	case cty.Bool:
		if v.True() {
			return "true", nil
		}
		return "false", nil
	}
	return "", errNotPrimitive
}
