// Package blocks holds the reusable pieces every generated pipeline is
// assembled from: register and register action declarations, the Tofino
// utility parsers, the L2 forwarding table, the recirculation actions, the
// common headers and the top-level program skeleton.
package blocks

import (
	"github.com/vk/p4dbgen/internal/tmpl"
)

const registerBody = `Register<${type="bit<32>"}, ${idx_type="bit<32>"}>(${size}, ${default_val=0}) ${name};`

const registerActionBody = `
RegisterAction<${in_type="bit<32>"}, ${idx_type="bit<32>"}, ${out_type="bit<32>"}>(${reg_name}) ${name} = {
    void apply(inout ${in_type="bit<32>"} value, out ${out_type="bit<32>"} rv) {
        ${body}
    }
};
`

var (
	registerTmpl       = tmpl.New(registerBody, nil)
	registerActionTmpl = tmpl.New(registerActionBody, nil)
)

// Register declares a register array. Zero-valued Type, IndexType and
// Default fall back to bit<32>, bit<32> and 0. Size and Name are required.
type Register struct {
	Type      string
	IndexType string
	Size      int
	Default   string
	Name      string
}

// Node returns the declaration template with the non-zero fields bound.
func (r Register) Node() *tmpl.Node {
	b := tmpl.Bindings{}
	if r.Name != "" {
		b["name"] = r.Name
	}
	if r.Type != "" {
		b["type"] = r.Type
	}
	if r.IndexType != "" {
		b["idx_type"] = r.IndexType
	}
	if r.Size != 0 {
		b["size"] = r.Size
	}
	if r.Default != "" {
		b["default_val"] = r.Default
	}
	return registerTmpl.With(b)
}

// Render implements tmpl.Renderer.
func (r Register) Render() (string, error) {
	return r.Node().Render()
}

// RegisterAction declares an atomic action on a register. Body is any
// bindable value, usually a string or a *tmpl.Node, and is the code run
// with `value` (the cell) and `rv` (the return value) in scope.
type RegisterAction struct {
	InType    string
	IndexType string
	OutType   string
	Register  string
	Name      string
	Body      any
}

// Node returns the declaration template with the non-zero fields bound.
func (a RegisterAction) Node() *tmpl.Node {
	b := tmpl.Bindings{}
	if a.InType != "" {
		b["in_type"] = a.InType
	}
	if a.IndexType != "" {
		b["idx_type"] = a.IndexType
	}
	if a.OutType != "" {
		b["out_type"] = a.OutType
	}
	if a.Register != "" {
		b["reg_name"] = a.Register
	}
	if a.Name != "" {
		b["name"] = a.Name
	}
	if a.Body != nil {
		b["body"] = a.Body
	}
	return registerActionTmpl.With(b)
}

// Render implements tmpl.Renderer.
func (a RegisterAction) Render() (string, error) {
	return a.Node().Render()
}
