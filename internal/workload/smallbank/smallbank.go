// Package smallbank generates the SmallBank pipeline. Each partition owns a
// saving and a checking register; instructions read, deposit into, transact
// on or drain an account of one partition. The egress pipeline rewrites the
// results of a locked first pass into the follow-up deposits of the
// write-check, amalgamate and send-payment transactions.
package smallbank

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
const Name = "smallbank"

// Module registers the SmallBank generator.
type Module struct{}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterWorkload(Generator{})
}

// Generator emits the SmallBank pipeline.
type Generator struct{}

// Name implements workload.Generator.
func (Generator) Name() string { return Name }

// Defaults implements workload.Generator. NumInstr is unused: the pipeline
// skips at most one handled instruction.
func (Generator) Defaults() workload.Params {
	return workload.Params{
		NumRegs:    10,
		RegSize:    65536 / 8,
		MaxRecircs: protocol.DefaultMaxRecircs,
	}
}

// Validate implements workload.Generator.
func (Generator) Validate(p workload.Params) error {
	if err := workload.ValidateProtocol(Name, p, false); err != nil {
		return err
	}
	if p.NumRegs > MaxPartitions {
		return &workload.ParamError{Workload: Name, Param: "num_regs", Reason: fmt.Sprintf("at most %d partitions fit the type encoding", MaxPartitions)}
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
		Utils:   blocks.Utils(false),
		Parser:  parser(p),
		Ingress: ingress(p),
		Egress: &blocks.Egress{
			Headers: tmpl.New(egressHeadersBody, nil),
			Parser:  tmpl.New(egressParserBody, tmpl.Bindings{"ether_type": fmt.Sprintf("0x%04x", wire.EtherType)}),
			Control: tmpl.New(egressBody, nil),
		},
	}.Node(), nil
}

const headersBody = `
${ethernet}

${info}

enum bit<8> InstrType_t {
    ${instr_types}
    SKIP = 0b01000000,
    STOP = 0b10000000,
    NEG_STOP = 0b01111111
}

header balance_t {
    InstrType_t type;   // set to SKIP after processing
    bit<16> c_id;
    bit<32> saving_bal;
    bit<32> checking_bal;
}

header deposit_checking_t {
    InstrType_t type;   // set to SKIP after processing
    bit<16> c_id;
    bit<32> checking_bal;
}

header transact_saving_t {
    InstrType_t type;   // set to SKIP after processing
    bit<16> c_id;
    bit<32> saving_bal;
}

header amalgamate_t {
    InstrType_t type;   // not set to SKIP after processing
    bit<16> c_id_0;
    bit<32> saving_bal;
    bit<32> checking_bal;
}



header next_type_t {
    InstrType_t type;
}


struct header_t {
    ethernet_t ethernet;
    msg_t msg;
    info_t info;
    ${instr_hdrs}

    next_type_t next_type;
}

struct metadata_t {}
`

func headers(p workload.Params) *tmpl.Node {
	return tmpl.New(headersBody, tmpl.Bindings{
		"ethernet": blocks.EthernetHeaders(),
		"info":     blocks.InfoHeader(p.MaxRecircs),
		"instr_types": tmpl.Concat(
			tmpl.Range(p.NumRegs, func(i int) any {
				return tmpl.Range(len(kinds), func(k int) any {
					return fmt.Sprintf("%s_%d = 0x%02x,", kinds[k].enum, i, uint8(Type(kinds[k].kind, i)))
				})
			}),
			tmpl.Lines(fmt.Sprintf("ABORT = 0x%02x,", uint8(InstrAbort))),
		),
		"instr_hdrs": tmpl.Concat(
			tmpl.Lines("deposit_checking_t deposit_checking_skip;"),
			tmpl.Range(p.NumRegs, func(i int) any {
				return tmpl.Range(len(kinds), func(k int) any {
					return fmt.Sprintf("%s_t %s_%d;", kinds[k].header, kinds[k].header, i)
				})
			}),
		),
	})
}

func parser(p workload.Params) *tmpl.Node {
	routes := make([]protocol.Route, 0, p.NumRegs*len(kinds))
	for i := range p.NumRegs {
		for _, k := range kinds {
			routes = append(routes, protocol.Route{
				Type:   fmt.Sprintf("%s_%d", k.enum, i),
				Header: fmt.Sprintf("%s_%d", k.header, i),
			})
		}
	}
	return protocol.Parser(wire.EtherType, protocol.ParserOptions{
		Skip:       protocol.SkipBit,
		SkipHeader: "deposit_checking_skip",
		Routes:     routes,
	})
}

const transactBody = `
int<32> a = (int<32>) value;        // signed comparison, a+b < 0x80000000 does not work on bit<32>
int<32> b = (int<32>) hdr.transact_saving_${i}.saving_bal;

if (a + b >= 0) {
    value = value + hdr.transact_saving_${i}.saving_bal;
} else {
    rv = 0xffffffff;    // signal failure
}
`

const depositBody = `
value = value + hdr.deposit_checking_${i}.checking_bal;
rv = value;
`

const readBody = `rv = value;`

const zeroBody = `
rv = value;
value = 0;
`

const instrBody = `
if (hdr.balance_${i}.isValid()) {
    hdr.balance_${i}.saving_bal = reg_saving_${i}_read.execute(hdr.balance_${i}.c_id);
    hdr.balance_${i}.checking_bal = reg_checking_${i}_read.execute(hdr.balance_${i}.c_id);
    // not skipped, balance is single pass or combined with other instructions
}
else if (hdr.deposit_checking_${i}.isValid()) {
    hdr.deposit_checking_${i}.checking_bal = reg_checking_${i}_deposit.execute(hdr.deposit_checking_${i}.c_id);
    hdr.deposit_checking_${i}.type = (InstrType_t) (InstrType_t.DEPOSIT_CHECKING_0 | InstrType_t.SKIP);
}
else if (hdr.transact_saving_${i}.isValid()) {
    hdr.transact_saving_${i}.saving_bal = reg_saving_${i}_transact.execute(hdr.transact_saving_${i}.c_id);
    hdr.transact_saving_${i}.type = InstrType_t.SKIP;
}
else if (hdr.amalgamate_${i}.isValid()) {
    hdr.amalgamate_${i}.saving_bal = reg_saving_${i}_zero.execute(hdr.amalgamate_${i}.c_id_0);
    hdr.amalgamate_${i}.checking_bal = reg_checking_${i}_zero.execute(hdr.amalgamate_${i}.c_id_0);
}
`

func account(reg string, i, size int, def uint32, actions ...[2]string) tmpl.Seq {
	name := fmt.Sprintf("reg_%s_%d", reg, i)
	out := []any{blocks.Register{
		Type:      "bit<32>",
		IndexType: "bit<16>",
		Size:      size,
		Default:   fmt.Sprintf("0x%08x", def),
		Name:      name,
	}}
	for _, a := range actions {
		out = append(out, blocks.RegisterAction{
			InType:    "bit<32>",
			IndexType: "bit<16>",
			OutType:   "bit<32>",
			Register:  name,
			Name:      name + "_" + a[0],
			Body:      tmpl.New(a[1], tmpl.Bindings{"i": i}),
		})
	}
	return tmpl.Lines(out...)
}

func ingress(p workload.Params) *tmpl.Node {
	registers := tmpl.Range(p.NumRegs, func(i int) any {
		return tmpl.Concat(
			account("saving", i, p.RegSize, DefaultSaving,
				[2]string{"read", readBody},
				[2]string{"zero", zeroBody},
				[2]string{"transact", transactBody},
			),
			account("checking", i, p.RegSize, DefaultChecking,
				[2]string{"read", readBody},
				[2]string{"zero", zeroBody},
				[2]string{"deposit", depositBody},
			),
		)
	})
	access := tmpl.Range(p.NumRegs, func(i int) any {
		return tmpl.New(instrBody, tmpl.Bindings{"i": i})
	})

	return protocol.Ingress(protocol.IngressOptions{
		Registers: registers,
		Access:    access,
	})
}

const egressHeadersBody = `
header abort_t {
    InstrType_t type;
}

header write_check_egress_t {      // for egress
    InstrType_t type;   // header will be deleted
    bit<16> c_id;
    bit<32> balance;
}

header amalgamate_egress_t {
    InstrType_t type;   // header will be deleted
    InstrType_t c_type;
    bit<16> c_id_1;
}

header send_payment_egress_t {
    InstrType_t type;   // header will be deleted
    InstrType_t c_type_0;
    InstrType_t c_type_1;
    bit<16> c_id_1;
    bit<32> balance;
}


struct egress_header_t {
    ethernet_t ethernet;
    msg_t msg;
    info_t info;

    abort_t abort;

    balance_t balance;
    write_check_egress_t write_check;
    deposit_checking_t deposit_checking;    // different types
    deposit_checking_t deposit_checking_2;    // for payment

    amalgamate_t amalgamate;
    amalgamate_egress_t amalgamate_egress;

    send_payment_egress_t send_payment;

    next_type_t next_type;
}

struct egress_metadata_t {}
`

const egressParserBody = `
parser EgressParser(
        packet_in pkt,
        out egress_header_t hdr,
        out egress_metadata_t eg_md,
        out egress_intrinsic_metadata_t eg_intr_md) {

    TofinoEgressParser() tofino_parser;

    state start {
        tofino_parser.apply(pkt, eg_intr_md);
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
            MsgType_t.SWITCH_TXN : parse_info;
            default: accept;
        }
    }

    state parse_info {
        pkt.extract(hdr.info);

        transition select(hdr.info.has_lock) {
            (1w1) : check_recircs;
            default: accept;
        }
    }

    state check_recircs {
        transition select(hdr.info.recircs) {
            0x00000001 : parse_instr;
            default: accept;
        }
    }

    state parse_instr {
        transition select(pkt.lookahead<InstrType_t>()) {
            InstrType_t.BALANCE_0 &&& 0b00110000: parse_write_check;
            InstrType_t.AMALGAMATE_0 &&& 0b00110000: parse_amalgamate;
            InstrType_t.DEPOSIT_CHECKING_0 &&& 0b00110000: parse_send_payment;
            default: accept;
        }
    }

    state parse_write_check {
        pkt.extract(hdr.balance);
        pkt.extract(hdr.write_check);
        transition accept;
    }

    state parse_amalgamate {
        pkt.extract(hdr.amalgamate);
        pkt.extract(hdr.amalgamate_egress);
        transition accept;
    }


    state parse_send_payment {
        pkt.extract(hdr.deposit_checking);
        pkt.extract(hdr.send_payment);
        transition accept;
    }
}

control EgressDeparser(
        packet_out pkt,
        inout egress_header_t hdr,
        in egress_metadata_t eg_md,
        in egress_intrinsic_metadata_for_deparser_t ig_intr_dprs_md) {

    apply {
        pkt.emit(hdr);
    }
}
`

const egressBody = `
control Egress(
        inout egress_header_t hdr,
        inout egress_metadata_t eg_md,
        in egress_intrinsic_metadata_t eg_intr_md,
        in egress_intrinsic_metadata_from_parser_t eg_intr_md_from_prsr,
        inout egress_intrinsic_metadata_for_deparser_t ig_intr_dprs_md,
        inout egress_intrinsic_metadata_for_output_port_t eg_intr_oport_md) {

    int<32> var_0;

    action sum_balance() {
        var_0 = (int<32>) hdr.balance.saving_bal + (int<32>) hdr.balance.checking_bal;
    }

    action sub_write_check_bal() {
        var_0 = var_0 - (int<32>) hdr.write_check.balance;
    }

    action sum_amalgamate() {
        var_0 = (int<32>) hdr.amalgamate.saving_bal + (int<32>) hdr.amalgamate.checking_bal;
    }

    action sub_payment() {
        var_0 = (int<32>) hdr.deposit_checking.checking_bal - (int<32>) hdr.send_payment.balance;
    }

    apply {
        // rewrite the balance read into the write_check deposit

        if (hdr.write_check.isValid()) {
            sum_balance();
            sub_write_check_bal();

            int<32> deposit_bal;
            if (var_0 < 0) {
                deposit_bal = (int<32>) hdr.write_check.balance + 1;      // overdraw
            } else {
                deposit_bal = (int<32>) hdr.write_check.balance;
            }

            bit<8> type = 4w0b01 ++ hdr.balance.type[3:0];
            bit<16> c_id = hdr.write_check.c_id;
            hdr.balance.setInvalid();
            hdr.write_check.setInvalid();

            hdr.deposit_checking.setValid();
            hdr.deposit_checking.type = (InstrType_t) type;   // same partition as balance
            hdr.deposit_checking.c_id = c_id;
            hdr.deposit_checking.checking_bal = (bit<32>) -deposit_bal;
        }
        else if (hdr.amalgamate_egress.isValid()) {
            sum_amalgamate();

            InstrType_t c_type = hdr.amalgamate_egress.c_type;
            bit<16> c_id_1 = hdr.amalgamate_egress.c_id_1;
            hdr.amalgamate.setInvalid();
            hdr.amalgamate_egress.setInvalid();

            hdr.deposit_checking.setValid();
            hdr.deposit_checking.type = c_type;
            hdr.deposit_checking.c_id = c_id_1;
            hdr.deposit_checking.checking_bal = (bit<32>) var_0;
        }
        else if (hdr.send_payment.isValid()) {
            sub_payment();

            if (var_0 < 0) {
                hdr.abort.setValid();
                hdr.abort.type = InstrType_t.ABORT;
            } else {
                InstrType_t c_type_0 = hdr.send_payment.c_type_0;
                InstrType_t c_type_2 = hdr.send_payment.c_type_1;
                bit<16> c_id_1 = hdr.send_payment.c_id_1;
                int<32> balance = (int<32>) hdr.send_payment.balance;
                hdr.send_payment.setInvalid();


                hdr.deposit_checking.type = c_type_0;
                // c_id stays the same
                hdr.deposit_checking.checking_bal = (bit<32>) -balance;  // remove from the sender

                hdr.deposit_checking_2.setValid();
                hdr.deposit_checking_2.type = (InstrType_t) (c_type_2 | InstrType_t.STOP);
                hdr.deposit_checking_2.c_id = c_id_1;
                hdr.deposit_checking_2.checking_bal = (bit<32>) balance;
            }
        }
    }
}
`
