package protocol

import (
	"fmt"

	"github.com/vk/p4dbgen/internal/blocks"
	"github.com/vk/p4dbgen/internal/tmpl"
)

// RecircPort is the port passed to recirculate() by waiting transactions.
const RecircPort = 68

// HighPriority is the parser priority given to packets that hold the lock.
const HighPriority = 7

const tryLockBody = `
if ((hdr.info.locks.left + value.left) == 2) {
    rv = 0;
} else if ((hdr.info.locks.right + value.right) == 2) {
    rv = 0;
} else {
    rv = 1;
    value.left = value.left + hdr.info.locks.left;
    value.right = value.right + hdr.info.locks.right;
}
`

const unlockBody = `
value.left = value.left - hdr.info.locks.left;
value.right = value.right - hdr.info.locks.right;
`

const isLockedBody = `
if (value.left > 0 || value.right > 0) {
    rv = 1;
} else {
    rv = 0;
}
`

// LockRegister returns the switch_lock register and its try_lock, unlock
// and is_locked actions.
func LockRegister() tmpl.Seq {
	action := func(name, body string) blocks.RegisterAction {
		return blocks.RegisterAction{
			InType:    "lock_pair",
			IndexType: "bit<1>",
			OutType:   "bit<1>",
			Register:  "switch_lock",
			Name:      name,
			Body:      tmpl.New(body, nil),
		}
	}
	return tmpl.Lines(
		blocks.Register{
			Type:      "lock_pair",
			IndexType: "bit<1>",
			Size:      1,
			Default:   "{0, 0}",
			Name:      "switch_lock",
		},
		action("try_lock", tryLockBody),
		action("unlock", unlockBody),
		action("is_locked", isLockedBody),
	)
}

const ingressBody = `
control Ingress(
        inout header_t hdr,
        inout metadata_t ig_md,
        in ingress_intrinsic_metadata_t ig_intr_md,
        in ingress_intrinsic_metadata_from_parser_t ig_prsr_md,
        inout ingress_intrinsic_metadata_for_deparser_t ig_dprsr_md,
        inout ingress_intrinsic_metadata_for_tm_t ig_tm_md) {


    ${l2fwd}

    ${locking}

    ${recirculation_actions}

    action abort_txn() {
        hdr.info.aborted = 1;
    }

    ${registers}


    bool do_recirc = false;
    bool do_access = false;

    apply {
        ${bypass}
        if (${guard}) {

            if (hdr.info.multipass == 0) {      // no lock needed, one-go
                if (is_locked.execute(0) == 1) {
                    ${retry}
                } else {
                    do_access = true;
                    reply();
                }
            } else if (hdr.info.has_lock == 0) {     // first one we lock
                if (try_lock.execute(0) == 0) {
                    ${retry}
                } else {
                    hdr.info.has_lock = 1;
                    do_access = true;

                    ${clear_stop}
                    do_recirc = true;
                    recirculate_fast();
                }
            } else if (hdr.next_type.type == InstrType_t.STOP) {    // last one we unlock
                unlock.execute(0);
                hdr.info.has_lock = 0;
                do_access = true;
                reply();
            } else {                                // we still have lock and keep it
                do_access = true;
                ${clear_stop}
                do_recirc = true;
                recirculate_fast();
            }
        }
        ${lock_free}

        if (do_access) {
            ${access}
        }

        if (!do_recirc) {
            l2fwd.apply();
        }
    }
}
`

const retryBody = `
if (hdr.info.recircs >= MAX_RECIRCS) {
    abort_txn();
    reply();
} else {
    recirculate(${port});
    do_recirc = true;
}
`

const clearStop = `hdr.next_type.type = (InstrType_t) (hdr.next_type.type & InstrType_t.NEG_STOP);     // remove stop bit`

// IngressOptions are the per-workload parts of the ingress control.
type IngressOptions struct {
	// Guard selects the packets that run the locking state machine. Empty
	// means every packet with a valid info header.
	Guard string
	// BypassEgress skips the egress pipeline for every packet.
	BypassEgress bool
	// Registers declares the data registers and their actions.
	Registers any
	// Access is applied to the current batch when do_access is set.
	Access any
	// LockFree follows the state machine block and runs for packets the
	// guard excluded. It may start with an else branch.
	LockFree any
}

// Ingress returns the ingress control implementing the recirculation
// locking protocol around the workload's register accesses.
func Ingress(opts IngressOptions) *tmpl.Node {
	guard := opts.Guard
	if guard == "" {
		guard = "hdr.info.isValid()"
	}
	bypass := ""
	if opts.BypassEgress {
		bypass = "ig_tm_md.bypass_egress = 1;"
	}

	return tmpl.New(ingressBody, tmpl.Bindings{
		"l2fwd":                 blocks.L2Forward(),
		"locking":               LockRegister(),
		"recirculation_actions": blocks.RecirculationActions(true),
		"registers":             opts.Registers,
		"bypass":                bypass,
		"guard":                 guard,
		"retry":                 tmpl.New(retryBody, tmpl.Bindings{"port": RecircPort}),
		"clear_stop":            clearStop,
		"lock_free":             opts.LockFree,
		"access":                opts.Access,
	})
}

// SkipMode selects how already processed instructions are skipped by the
// parser on later passes.
type SkipMode int

const (
	// SkipStack extracts instructions whose type equals SKIP into a header
	// stack before the instruction loop.
	SkipStack SkipMode = iota
	// SkipBit routes any instruction with the SKIP bit set into a single
	// reusable header from within the instruction loop.
	SkipBit
)

// Route maps an instruction type to the header it is extracted into.
type Route struct {
	Type   string
	Header string
}

// ParserOptions are the per-workload parts of the ingress parser.
type ParserOptions struct {
	Skip       SkipMode
	SkipHeader string
	Routes     []Route
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
            MsgType_t.SWITCH_TXN : parse_info;
            default: accept;
        }
    }

    state parse_info {
        pkt.extract(hdr.info);
        transition select(hdr.info.has_lock) {
            1: set_high_prio;
            default: ${after_info};
        }
    }

    state set_high_prio {
        parser_prio.set(${priority});
        transition ${after_info};
    }

    ${skip_states}

    state parse_instr {
        transition select(pkt.lookahead<InstrType_t>()) {
            InstrType_t.STOP &&& InstrType_t.STOP: parse_next_type;  // if first bit is STOP_BIT
            ${skip_route}
            ${routes}
            default: reject;
        }
    }

    state parse_next_type {
        pkt.extract(hdr.next_type);
        transition accept;
    }

    ${extract_states}
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

const skipStackBody = `
state parse_skips {
    transition select(pkt.lookahead<InstrType_t>()) {
        InstrType_t.SKIP: parse_${header};
        default: parse_instr;
    }
}

state parse_${header} {
    pkt.extract(hdr.${header}.next);
    transition parse_skips;
}
`

const extractBody = `
state parse_${header} {
    pkt.extract(hdr.${header});
    transition parse_instr;
}
`

func extractState(header string) *tmpl.Node {
	return tmpl.New(extractBody, tmpl.Bindings{"header": header})
}

// Parser returns the ingress parser and deparser. Lock holders are given
// high parser priority; each pass extracts the instructions up to the next
// one carrying the stop bit.
func Parser(etherType uint16, opts ParserOptions) *tmpl.Node {
	b := tmpl.Bindings{
		"ether_type": fmt.Sprintf("0x%04x", etherType),
		"priority":   HighPriority,
		"routes": tmpl.Range(len(opts.Routes), func(i int) any {
			r := opts.Routes[i]
			return fmt.Sprintf("InstrType_t.%s: parse_%s;", r.Type, r.Header)
		}),
	}

	extracts := tmpl.Range(len(opts.Routes), func(i int) any {
		return extractState(opts.Routes[i].Header)
	})

	switch opts.Skip {
	case SkipStack:
		b["after_info"] = "parse_skips"
		b["skip_states"] = tmpl.New(skipStackBody, tmpl.Bindings{"header": opts.SkipHeader})
		b["skip_route"] = ""
		b["extract_states"] = extracts
	case SkipBit:
		b["after_info"] = "parse_instr"
		b["skip_states"] = ""
		b["skip_route"] = fmt.Sprintf("InstrType_t.SKIP &&& InstrType_t.SKIP: parse_%s;  // if SKIP_BIT is set", opts.SkipHeader)
		b["extract_states"] = tmpl.Concat(tmpl.Lines(extractState(opts.SkipHeader)), extracts)
	}

	return tmpl.New(parserBody, b)
}
