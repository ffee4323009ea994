// Package hcl provides the concrete HCL implementation of the config.Loader
// interface. It is responsible for file discovery, parsing, decoding the
// `target` and `scenario` blocks and translating them into the
// format-agnostic config.Model.
package hcl
