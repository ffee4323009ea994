// Package tpcc generates the TPC-C pipeline. Stock updates of the new-order
// transaction are partitioned over NumRegs register classes and take the
// switch lock when a transaction needs several passes. Payments only add to
// the warehouse and district year-to-date totals and bypass the lock.
package tpcc

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
const Name = "tpcc"

// Module registers the TPC-C generator.
type Module struct{}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterWorkload(Generator{})
}

// Generator emits the TPC-C pipeline.
type Generator struct{}

// Name implements workload.Generator.
func (Generator) Name() string { return Name }

// Defaults implements workload.Generator.
func (Generator) Defaults() workload.Params {
	return workload.Params{
		NumRegs:    10,
		NumInstr:   15,
		RegSize:    65536/2 + 32768/4,
		MaxRecircs: protocol.DefaultMaxRecircs,
	}
}

// Validate implements workload.Generator.
func (Generator) Validate(p workload.Params) error {
	if err := workload.ValidateProtocol(Name, p, true); err != nil {
		return err
	}
	if p.NumRegs > MaxPartitions {
		return &workload.ParamError{Workload: Name, Param: "num_regs", Reason: fmt.Sprintf("at most %d stock partitions fit below the stop bit", MaxPartitions)}
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
    PAYMENT = 0x01,
    NEW_ORDER = 0x02,
    ${no_stock_instr_types}
    STOP = 0x80,
    NEG_STOP = 0x7f
}

header no_stock_t {
    InstrType_t type;   // set to SKIP after processing
    bit<16> s_id;
    bit<32> ol_quantity;
    bit<8> is_remote;
}

header payment_t {
    InstrType_t type;   // set to SKIP after processing
    bit<16> w_id;
    bit<16> d_id;
    bit<32> h_amount;
}

header new_order_t {
    InstrType_t type;   // set to SKIP after processing
    bit<16> d_id;
    bit<32> d_next_o_id;
}

header next_type_t {
    InstrType_t type;
}


struct header_t {
    ethernet_t ethernet;
    msg_t msg;
    info_t info;

    ${no_stock_hdrs}
    payment_t payment;
    new_order_t new_order;
    next_type_t next_type;
}

struct metadata_t {}
`

func headers(p workload.Params) *tmpl.Node {
	return tmpl.New(headersBody, tmpl.Bindings{
		"ethernet": blocks.EthernetHeaders(),
		"info":     blocks.InfoHeader(p.MaxRecircs),
		"no_stock_instr_types": tmpl.Range(p.NumRegs, func(i int) any {
			return fmt.Sprintf("NO_STOCK_%d = 0x%02x,", i, uint8(NoStockType(i)))
		}),
		"no_stock_hdrs": tmpl.Concat(
			tmpl.Lines(fmt.Sprintf("no_stock_t[%d] no_stock_skip;       // Worst case we need to skip %d instructions", p.NumInstr-1, p.NumInstr-1)),
			tmpl.Range(p.NumRegs, func(i int) any {
				return fmt.Sprintf("no_stock_t no_stock_%d;", i)
			}),
		),
	})
}

func parser(p workload.Params) *tmpl.Node {
	routes := make([]protocol.Route, 0, p.NumRegs+2)
	for i := range p.NumRegs {
		routes = append(routes, protocol.Route{Type: fmt.Sprintf("NO_STOCK_%d", i), Header: fmt.Sprintf("no_stock_%d", i)})
	}
	routes = append(routes,
		protocol.Route{Type: "PAYMENT", Header: "payment"},
		protocol.Route{Type: "NEW_ORDER", Header: "new_order"},
	)
	return protocol.Parser(wire.EtherType, protocol.ParserOptions{
		Skip:       protocol.SkipStack,
		SkipHeader: "no_stock_skip",
		Routes:     routes,
	})
}

// Register action bodies. The s_quantity rule restocks by 91 when the
// remaining quantity would fall below 10.
const (
	ytdBody       = "rv = value;\nvalue = value + hdr.payment.h_amount;"
	nextOrderBody = "rv = value;\nvalue = value + 1;"
	sYtdBody      = "rv = value;\nvalue = value + hdr.no_stock_${i}.ol_quantity;"
	sQuantityBody = `
rv = value;
if (value < hdr.no_stock_${i}.ol_quantity + 10) {   // rewritten to keep the action compileable
    value = value + 91;
}
value = value - hdr.no_stock_${i}.ol_quantity;
`
	sOrderCntBody  = "rv = value;\nvalue = value + 1;"
	sRemoteCntBody = "rv = value;\nvalue = value + (bit<32>) hdr.no_stock_${i}.is_remote;"
)

func counter(name string, size int, body *tmpl.Node) tmpl.Seq {
	return tmpl.Lines(
		blocks.Register{Type: "bit<32>", Size: size, Default: "0x00000000", Name: name},
		blocks.RegisterAction{InType: "bit<32>", OutType: "bit<32>", Register: name, Name: name + "_access", Body: body},
	)
}

const lockFreeBody = `
// lockfree
else if (hdr.payment.isValid()) {
    reg_payment_w_ytd_access.execute(hdr.payment.w_id);
    reg_payment_d_ytd_access.execute(hdr.payment.d_id);
    hdr.payment.type = InstrType_t.SKIP;
    reply();
}
`

const newOrderBody = `
// new_order is always the last instruction, so it is only valid once every
// stock update before it has been handled
if (hdr.new_order.isValid()) {
    hdr.new_order.d_next_o_id = reg_no_d_next_o_id_access.execute(hdr.new_order.d_id);
    hdr.new_order.type = InstrType_t.SKIP;
}
`

const noStockBody = `
if (hdr.no_stock_${i}.isValid()) {
    reg_s_ytd_${i}_access.execute(hdr.no_stock_${i}.s_id);
    reg_s_quantity_${i}_access.execute(hdr.no_stock_${i}.s_id);
    reg_s_order_cnt_${i}_access.execute(hdr.no_stock_${i}.s_id);
    reg_s_remote_cnt_${i}_access.execute(hdr.no_stock_${i}.s_id);
    hdr.no_stock_${i}.type = InstrType_t.SKIP;
}
`

func ingress(p workload.Params) *tmpl.Node {
	registers := tmpl.Concat(
		counter("reg_payment_w_ytd", p.RegSize, tmpl.New(ytdBody, nil)),
		counter("reg_payment_d_ytd", p.RegSize, tmpl.New(ytdBody, nil)),
		counter("reg_no_d_next_o_id", p.RegSize, tmpl.New(nextOrderBody, nil)),
		tmpl.Range(p.NumRegs, func(i int) any {
			b := tmpl.Bindings{"i": i}
			return tmpl.Concat(
				counter(fmt.Sprintf("reg_s_ytd_%d", i), p.RegSize, tmpl.New(sYtdBody, b)),
				counter(fmt.Sprintf("reg_s_quantity_%d", i), p.RegSize, tmpl.New(sQuantityBody, b)),
				counter(fmt.Sprintf("reg_s_order_cnt_%d", i), p.RegSize, tmpl.New(sOrderCntBody, b)),
				counter(fmt.Sprintf("reg_s_remote_cnt_%d", i), p.RegSize, tmpl.New(sRemoteCntBody, b)),
			)
		}),
	)
	access := tmpl.Concat(
		tmpl.Range(p.NumRegs, func(i int) any {
			return tmpl.New(noStockBody, tmpl.Bindings{"i": i})
		}),
		tmpl.Lines(tmpl.New(newOrderBody, nil)),
	)

	return protocol.Ingress(protocol.IngressOptions{
		Guard:        "hdr.info.isValid() && !hdr.payment.isValid()",
		BypassEgress: true,
		Registers:    registers,
		Access:       access,
		LockFree:     tmpl.New(lockFreeBody, nil),
	})
}
