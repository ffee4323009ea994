// Package workload defines the contract shared by the pipeline generators
// and helpers to validate their build parameters and emit their source.
//
// Every generator is parameterized by the register count, the register size
// and, for variants that split transactions into batches, the maximum
// instruction count. Parameters are validated before any text is rendered,
// so a misconfiguration never produces partial output.
package workload

import (
	"fmt"
	"io"

	"github.com/vk/p4dbgen/internal/config"
	"github.com/vk/p4dbgen/internal/indent"
	"github.com/vk/p4dbgen/internal/switchsim"
	"github.com/vk/p4dbgen/internal/tmpl"
)

// Params are the build-time parameters of a generated pipeline.
type Params struct {
	NumRegs    int
	NumInstr   int
	RegSize    int
	MaxRecircs uint32
}

// Merge returns p with every non-zero field of override applied.
func (p Params) Merge(override Params) Params {
	if override.NumRegs != 0 {
		p.NumRegs = override.NumRegs
	}
	if override.NumInstr != 0 {
		p.NumInstr = override.NumInstr
	}
	if override.RegSize != 0 {
		p.RegSize = override.RegSize
	}
	if override.MaxRecircs != 0 {
		p.MaxRecircs = override.MaxRecircs
	}
	return p
}

// ParamError reports an invalid build parameter.
type ParamError struct {
	Workload string
	Param    string
	Reason   string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("workload %s: invalid %s: %s", e.Workload, e.Param, e.Reason)
}

// Generator produces the pipeline source for one workload.
type Generator interface {
	Name() string
	Defaults() Params
	Validate(p Params) error
	Program(p Params) (*tmpl.Node, error)
}

// Simulator is implemented by generators whose pipelines run the
// recirculation locking protocol and can be executed by switchsim.
type Simulator interface {
	Generator
	Accessor(p Params) (switchsim.Accessor, error)
	Instr(p Params, spec *config.InstrSpec) (*switchsim.Instr, error)
}

// RequestResult is the reply to one tuple request.
type RequestResult struct {
	Name    string
	Op      string
	Granted bool
	Values  []uint32
}

// RequestHandler is implemented by generators whose pipelines answer
// individual tuple requests instead of whole transactions.
type RequestHandler interface {
	Generator
	Serve(p Params, reqs []*config.RequestSpec) ([]RequestResult, error)
}

// ValidateRegisters checks the register count and size.
func ValidateRegisters(name string, p Params) error {
	if p.NumRegs < 1 {
		return &ParamError{Workload: name, Param: "num_regs", Reason: "must be at least 1"}
	}
	if p.RegSize < 1 || p.RegSize > 1<<16 {
		return &ParamError{Workload: name, Param: "reg_size", Reason: fmt.Sprintf("must be in [1, %d] for 16-bit indices", 1<<16)}
	}
	return nil
}

// ValidateProtocol checks the parameters of pipelines running the
// recirculation locking protocol. needsInstr is set for pipelines that size
// a skip header stack from NumInstr.
func ValidateProtocol(name string, p Params, needsInstr bool) error {
	if err := ValidateRegisters(name, p); err != nil {
		return err
	}
	if p.MaxRecircs == 0 {
		return &ParamError{Workload: name, Param: "max_recircs", Reason: "must be positive"}
	}
	if needsInstr && p.NumInstr < 2 {
		return &ParamError{Workload: name, Param: "num_instr", Reason: "must be at least 2 to size the skip stack"}
	}
	return nil
}

// Render validates p and renders the complete, formatted program.
func Render(g Generator, p Params) (string, error) {
	if err := g.Validate(p); err != nil {
		return "", err
	}
	prog, err := g.Program(p)
	if err != nil {
		return "", err
	}
	text, err := prog.Render()
	if err != nil {
		return "", fmt.Errorf("workload %s: %w", g.Name(), err)
	}
	return indent.Format(text), nil
}

// Write renders the program and writes it to w. It returns the number of
// generated lines. Nothing is written when rendering fails.
func Write(w io.Writer, g Generator, p Params) (int, error) {
	text, err := Render(g, p)
	if err != nil {
		return 0, err
	}
	if _, err := io.WriteString(w, text); err != nil {
		return 0, err
	}
	return indent.LOC(text), nil
}
