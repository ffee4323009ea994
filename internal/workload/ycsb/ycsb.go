// Package ycsb generates the register-store pipeline used for the YCSB
// benchmark. Every register class holds one array of 32-bit values that is
// read or overwritten by READ and WRITE instructions. Transactions touching a
// class more than once are split into several passes under the switch lock.
package ycsb

import (
	"fmt"

	"github.com/vk/p4dbgen/internal/blocks"
	"github.com/vk/p4dbgen/internal/protocol"
	"github.com/vk/p4dbgen/internal/registry"
	"github.com/vk/p4dbgen/internal/tmpl"
	"github.com/vk/p4dbgen/internal/wire"
	"github.com/vk/p4dbgen/internal/workload"
)

// Name is the registered workload name.
const Name = "ycsb"

// Module registers the YCSB generator.
type Module struct{}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterWorkload(Generator{})
}

// Generator emits the YCSB pipeline.
type Generator struct{}

// Name implements workload.Generator.
func (Generator) Name() string { return Name }

// Defaults implements workload.Generator.
func (Generator) Defaults() workload.Params {
	return workload.Params{
		NumRegs:    20,
		NumInstr:   8,
		RegSize:    65536 / 2,
		MaxRecircs: protocol.DefaultMaxRecircs,
	}
}

// Validate implements workload.Generator.
func (Generator) Validate(p workload.Params) error {
	if err := workload.ValidateProtocol(Name, p, true); err != nil {
		return err
	}
	if p.NumRegs < 2 {
		return &workload.ParamError{Workload: Name, Param: "num_regs", Reason: "must be greater than 1"}
	}
	if p.NumInstr > p.NumRegs {
		return &workload.ParamError{Workload: Name, Param: "num_instr", Reason: fmt.Sprintf("%d exceeds num_regs %d", p.NumInstr, p.NumRegs)}
	}
	if p.NumRegs > MaxRegs {
		return &workload.ParamError{Workload: Name, Param: "num_regs", Reason: fmt.Sprintf("at most %d register classes fit below the stop bit", MaxRegs)}
	}
	return nil
}

// Program implements workload.Generator.
func (g Generator) Program(p workload.Params) (*tmpl.Node, error) {
	if err := g.Validate(p); err != nil {
		return nil, err
	}
	return blocks.Program{
		Headers: headers(p),
		Utils:   blocks.Utils(true),
		Parser:  parser(p),
		Ingress: ingress(p),
	}.Node(), nil
}

const headersBody = `
${ethernet}

${info}

enum bit<8> InstrType_t {
    SKIP = 0x00,
    ${reg_instr_types}
    STOP = 0x80,
    NEG_STOP = 0x7f
}

enum bit<8> OPCode_t {
    READ = 0x00,
    WRITE = 0x01
}

header reg_instr_t {
    InstrType_t type;   // set to SKIP after processing
    OPCode_t op;
    bit<16> idx;
    bit<32> data;
}

header next_type_t {
    InstrType_t type;
}


struct header_t {
    ethernet_t ethernet;
    msg_t msg;
    info_t info;

    ${reg_hdrs}
    next_type_t next_type;
}

struct metadata_t {}
`

func headers(p workload.Params) *tmpl.Node {
	return tmpl.New(headersBody, tmpl.Bindings{
		"ethernet": blocks.EthernetHeaders(),
		"info":     blocks.InfoHeader(p.MaxRecircs),
		"reg_instr_types": tmpl.Range(p.NumRegs, func(i int) any {
			return fmt.Sprintf("REG_%d = 0x%02x,", i, uint8(RegType(i)))
		}),
		"reg_hdrs": tmpl.Concat(
			tmpl.Lines(fmt.Sprintf("reg_instr_t[%d] reg_skip;       // Worst case we need to skip %d instructions", p.NumInstr-1, p.NumInstr-1)),
			tmpl.Range(p.NumRegs, func(i int) any {
				return fmt.Sprintf("reg_instr_t reg_%d;", i)
			}),
		),
	})
}

func parser(p workload.Params) *tmpl.Node {
	routes := make([]protocol.Route, p.NumRegs)
	for i := range routes {
		routes[i] = protocol.Route{Type: fmt.Sprintf("REG_%d", i), Header: fmt.Sprintf("reg_%d", i)}
	}
	return protocol.Parser(wire.EtherType, protocol.ParserOptions{
		Skip:       protocol.SkipStack,
		SkipHeader: "reg_skip",
		Routes:     routes,
	})
}

const accessBody = `
rv = value;
if (hdr.reg_${i}.op == OPCode_t.WRITE) {     // compare here to save hash distribution units
    value = hdr.reg_${i}.data;
}
`

const instrBody = `
if (hdr.reg_${i}.isValid()) {
    hdr.reg_${i}.data = reg_${i}_access.execute(hdr.reg_${i}.idx);
    hdr.reg_${i}.type = InstrType_t.SKIP;
}
`

func ingress(p workload.Params) *tmpl.Node {
	registers := tmpl.Range(p.NumRegs, func(i int) any {
		return tmpl.Lines(
			blocks.Register{
				Type:      "bit<32>",
				IndexType: "bit<16>",
				Size:      p.RegSize,
				Default:   fmt.Sprintf("0x%04x", DefaultValue(i)),
				Name:      fmt.Sprintf("reg_%d", i),
			},
			blocks.RegisterAction{
				InType:    "bit<32>",
				IndexType: "bit<16>",
				OutType:   "bit<32>",
				Register:  fmt.Sprintf("reg_%d", i),
				Name:      fmt.Sprintf("reg_%d_access", i),
				Body:      tmpl.New(accessBody, tmpl.Bindings{"i": i}),
			},
		)
	})
	access := tmpl.Range(p.NumRegs, func(i int) any {
		return tmpl.New(instrBody, tmpl.Bindings{"i": i})
	})

	return protocol.Ingress(protocol.IngressOptions{
		BypassEgress: true,
		Registers:    registers,
		Access:       access,
	})
}
