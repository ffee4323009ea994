// Package lockmgr generates the lock manager pipeline. It serves tuple
// get and put requests of the database directly from the switch: a get
// takes a shared or exclusive lock on the tuple and returns its fields, a
// put writes the fields back and releases the lock. Requests are marked by
// the sender so the switch only answers messages addressed to it.
package lockmgr

import (
	"fmt"

	"github.com/vk/p4dbgen/internal/blocks"
	"github.com/vk/p4dbgen/internal/registry"
	"github.com/vk/p4dbgen/internal/tmpl"
	"github.com/vk/p4dbgen/internal/wire"
	"github.com/vk/p4dbgen/internal/workload"
)

// Name is the registered workload name.
const Name = "lock_manager"

// Module registers the lock manager generator.
type Module struct{}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterWorkload(Generator{})
}

// Generator emits the lock manager pipeline.
type Generator struct{}

// Name implements workload.Generator.
func (Generator) Name() string { return Name }

// Defaults implements workload.Generator. NumInstr and MaxRecircs are
// unused.
func (Generator) Defaults() workload.Params {
	return workload.Params{
		NumRegs: 3,
		RegSize: 1024*16 + 1,
	}
}

// Validate implements workload.Generator.
func (Generator) Validate(p workload.Params) error {
	return workload.ValidateRegisters(Name, p)
}

// Program implements workload.Generator.
func (g Generator) Program(p workload.Params) (*tmpl.Node, error) {
	if err := g.Validate(p); err != nil {
		return nil, err
	}
	return blocks.Program{
		Headers: headers(p),
		Utils:   blocks.Utils(true),
		Parser:  tmpl.New(parserBody, tmpl.Bindings{"ether_type": fmt.Sprintf("0x%04x", wire.EtherType)}),
		Ingress: ingress(p),
	}.Node(), nil
}

const headersBody = `
${ethernet}

enum bit<8> AccessMode_t {
    INVALID = 0x00,
    READ = 0x01,
    WRITE = 0x02
}

header tuple_msg_t {
    bit<64> ts;
    bit<64> tid;
    bit<64> rid;
    AccessMode_t mode;
    bit<8> by_switch;
    bit<16> lock_idx;
    // tuple_data is optional payload
}

header tuple_t {
    ${data_tuples}
}

struct header_t {
    ethernet_t ethernet;
    msg_t msg;
    tuple_msg_t tuple_get_req;
    tuple_msg_t tuple_put_req;
    tuple_t data;
}

struct metadata_t {}
`

func headers(p workload.Params) *tmpl.Node {
	return tmpl.New(headersBody, tmpl.Bindings{
		"ethernet": blocks.EthernetHeaders(),
		"data_tuples": tmpl.Range(p.NumRegs, func(i int) any {
			return fmt.Sprintf("bit<32> field_%d;", i)
		}),
	})
}

const parserBody = `
parser IngressParser(
        packet_in pkt,
        out header_t hdr,
        out metadata_t ig_md,
        out ingress_intrinsic_metadata_t ig_intr_md) {

    TofinoIngressParser() tofino_parser;
    ParserPriority() parser_prio;

    state start {
        tofino_parser.apply(pkt, ig_intr_md);
        transition parse_ethernet;
    }

    state parse_ethernet {
        pkt.extract(hdr.ethernet);
        transition select(hdr.ethernet.ether_type) {
            ${ether_type}: parse_msg;
            default: accept;
        }
    }

    state parse_msg {
        pkt.extract(hdr.msg);
        transition select(hdr.msg.type) {
            MsgType_t.TUPLE_GET_REQ: parse_tuple_get_req;
            MsgType_t.TUPLE_PUT_REQ: parse_tuple_put_req;
            default: accept;
        }
    }

    state parse_tuple_get_req {
        pkt.extract(hdr.tuple_get_req);
        transition accept;
    }

    state parse_tuple_put_req {
        pkt.extract(hdr.tuple_put_req);
        transition select(hdr.tuple_put_req.mode) {
            AccessMode_t.WRITE: parse_data;
            default: accept;
        }
    }

    state parse_data {
        pkt.extract(hdr.data);
        transition accept;
    }
}

control IngressDeparser(
        packet_out pkt,
        inout header_t hdr,
        in metadata_t ig_md,
        in ingress_intrinsic_metadata_for_deparser_t ig_intr_dprsr_md) {

    apply {
        pkt.emit(hdr);
    }
}
`

const ingressBody = `
control Ingress(
        inout header_t hdr,
        inout metadata_t ig_md,
        in ingress_intrinsic_metadata_t ig_intr_md,
        in ingress_intrinsic_metadata_from_parser_t ig_prsr_md,
        inout ingress_intrinsic_metadata_for_deparser_t ig_dprsr_md,
        inout ingress_intrinsic_metadata_for_tm_t ig_tm_md) {


    ${l2fwd}

    ${recirculation_actions}

    ${locking}

    ${data_regs}

    apply {
        if (hdr.tuple_get_req.isValid() && hdr.tuple_get_req.by_switch == ${get_marker}) {
            AccessMode_t mode = hdr.tuple_get_req.mode;
            hdr.tuple_get_req.by_switch = hdr.tuple_get_req.by_switch + ${get_marker};
            bit<16> idx = hdr.tuple_get_req.lock_idx;
            bit<8> granted;
            if (mode == AccessMode_t.READ) {
                granted = try_lock_shared.execute(idx);
            } else if (mode == AccessMode_t.WRITE) {
                granted = try_lock_exclusive.execute(idx);
            }
            hdr.msg.type = MsgType_t.TUPLE_GET_RES;
            if (granted == 1) {
                hdr.data.setValid();
                ${reads}
            } else {
                hdr.tuple_get_req.mode = AccessMode_t.INVALID;
            }
            reply();
        } else if (hdr.tuple_put_req.isValid() && hdr.tuple_put_req.by_switch == ${put_marker}) {    // ${get_marker} + ${get_marker} = ${put_marker}
            bit<16> idx = hdr.tuple_put_req.lock_idx;
            unlock.execute(idx);
            if (hdr.data.isValid()) {
                ${writes}
                hdr.data.setInvalid();
            }
            hdr.msg.type = MsgType_t.TUPLE_PUT_RES;
            reply();
        }
        l2fwd.apply();
        ig_tm_md.bypass_egress = 1;
    }
}
`

const (
	tryExclusiveBody = `
if (value == 0) {
    value = ${exclusive};
    rv = 1;
} else {
    rv = 0;
}
`
	trySharedBody = `
if (value != ${exclusive}) {
    value = value + 1;
    rv = 1;
} else {
    rv = 0;
}
`
	unlockBody = `
if (value == ${exclusive}) {
    value = 0;
} else {
    value = value - 1;
}
rv = 1;
`
)

func ingress(p workload.Params) *tmpl.Node {
	excl := tmpl.Bindings{"exclusive": fmt.Sprintf("0x%08x", Exclusive)}
	lockAction := func(name, body string) blocks.RegisterAction {
		return blocks.RegisterAction{Register: "locks", Name: name, Body: tmpl.New(body, excl)}
	}

	return tmpl.New(ingressBody, tmpl.Bindings{
		"l2fwd":                 blocks.L2Forward(),
		"recirculation_actions": blocks.RecirculationActions(false),
		"locking": tmpl.Lines(
			blocks.Register{Type: "bit<32>", Size: p.RegSize, Default: "0", Name: "locks"},
			lockAction("try_lock_exclusive", tryExclusiveBody),
			lockAction("try_lock_shared", trySharedBody),
			lockAction("unlock", unlockBody),
		),
		"data_regs": tmpl.Range(p.NumRegs, func(i int) any {
			name := fmt.Sprintf("data_%d", i)
			return tmpl.Lines(
				blocks.Register{Type: "bit<32>", Size: p.RegSize, Default: "0x00000000", Name: name},
				blocks.RegisterAction{Register: name, Name: fmt.Sprintf("read_%d", i), Body: "rv = value;"},
				blocks.RegisterAction{Register: name, Name: fmt.Sprintf("write_%d", i), Body: fmt.Sprintf("value = hdr.data.field_%d;", i)},
			)
		}),
		"reads": tmpl.Range(p.NumRegs, func(i int) any {
			return fmt.Sprintf("hdr.data.field_%d = read_%d.execute(idx);", i, i)
		}),
		"writes": tmpl.Range(p.NumRegs, func(i int) any {
			return fmt.Sprintf("write_%d.execute(idx);", i)
		}),
		"get_marker": fmt.Sprintf("0x%02x", MarkerGet),
		"put_marker": fmt.Sprintf("0x%02x", MarkerPut),
	})
}
