package blocks

import (
	"fmt"

	"github.com/vk/p4dbgen/internal/tmpl"
)

const tofinoParsersBody = `
parser TofinoIngressParser(
        packet_in pkt,
        out ingress_intrinsic_metadata_t ig_intr_md) {
    state start {
        pkt.extract(ig_intr_md);
        transition select(ig_intr_md.resubmit_flag) {
            1 : parse_resubmit;
            0 : parse_port_metadata;
        }
    }

    state parse_resubmit {
        // Parse resubmitted packet here.
        transition reject;
    }

    state parse_port_metadata {
        pkt.advance(PORT_METADATA_SIZE);
        transition accept;
    }
}


parser TofinoEgressParser(
        packet_in pkt,
        out egress_intrinsic_metadata_t eg_intr_md) {
    state start {
        pkt.extract(eg_intr_md);
        transition accept;
    }
}
`

const bypassEgressBody = `
struct empty_header_t {}
struct empty_metadata_t {}

// Skip egress
control BypassEgress(inout ingress_intrinsic_metadata_for_tm_t ig_tm_md) {

    action set_bypass_egress() {
        ig_tm_md.bypass_egress = 1w1;
    }

    table bypass_egress {
        actions = {
            set_bypass_egress();
        }
        const default_action = set_bypass_egress;
    }

    apply {
        bypass_egress.apply();
    }
}
`

const emptyEgressBody = `
// Empty egress parser/control blocks
parser EmptyEgressParser(
        packet_in pkt,
        out empty_header_t hdr,
        out empty_metadata_t eg_md,
        out egress_intrinsic_metadata_t eg_intr_md) {
    state start {
        transition accept;
    }
}

control EmptyEgressDeparser(
        packet_out pkt,
        inout empty_header_t hdr,
        in empty_metadata_t eg_md,
        in egress_intrinsic_metadata_for_deparser_t ig_intr_dprs_md) {
    apply {}
}

control EmptyEgress(
        inout empty_header_t hdr,
        inout empty_metadata_t eg_md,
        in egress_intrinsic_metadata_t eg_intr_md,
        in egress_intrinsic_metadata_from_parser_t eg_intr_md_from_prsr,
        inout egress_intrinsic_metadata_for_deparser_t ig_intr_dprs_md,
        inout egress_intrinsic_metadata_for_output_port_t eg_intr_oport_md) {
    apply {}
}
`

// Utils returns the Tofino metadata parsers. Ingress-only programs also get
// the egress bypass control and the empty egress blocks their pipeline
// instantiation refers to.
func Utils(emptyEgress bool) *tmpl.Node {
	if !emptyEgress {
		return tmpl.New(tofinoParsersBody, nil)
	}
	return tmpl.New(`
${bypass}

${parsers}

${empty}
`, tmpl.Bindings{
		"bypass":  tmpl.New(bypassEgressBody, nil),
		"parsers": tmpl.New(tofinoParsersBody, nil),
		"empty":   tmpl.New(emptyEgressBody, nil),
	})
}

const l2ForwardBody = `
action reply() {
    mac_addr_t old_mac = hdr.ethernet.dst_addr;
    hdr.ethernet.dst_addr = hdr.ethernet.src_addr;
    hdr.ethernet.src_addr = old_mac;
}

action send(PortId_t port) {
    ig_tm_md.ucast_egress_port = port;
}

action drop() {
    ig_dprsr_md.drop_ctl = 1;
}


table l2fwd {
    key = {
        hdr.ethernet.dst_addr: exact;
    }
    actions = {
        send;
        @defaultonly drop();
    }
    const default_action = drop;
    size = ${size=32};
}
`

// L2Forward returns the reply, send and drop actions and the l2fwd table.
func L2Forward() *tmpl.Node {
	return tmpl.New(l2ForwardBody, nil)
}

const recirculateBody = `
action recirculate(PortId_t port) {
    // enable loopback on a port that is down
    ig_tm_md.ucast_egress_port = ig_intr_md.ingress_port[8:7] ++ port[6:0];
    ${count}
}
`

const recirculateFastBody = `
action recirculate_fast() {
    ig_tm_md.ucast_egress_port = ${port};
    ${count}
}
`

const countRecircs = `hdr.info.recircs = hdr.info.recircs + 1;`

// FastRecircPort is the loopback port used by recirculate_fast.
const FastRecircPort = 156

// RecirculationActions returns the recirculate actions. When the program
// carries the info header every recirculation increments its recircs
// counter and a recirculate_fast action is added.
func RecirculationActions(withInfo bool) *tmpl.Node {
	if !withInfo {
		return tmpl.New(recirculateBody, tmpl.Bindings{"count": ""})
	}
	return tmpl.New(`
${slow}

${fast}
`, tmpl.Bindings{
		"slow": tmpl.New(recirculateBody, tmpl.Bindings{"count": countRecircs}),
		"fast": tmpl.New(recirculateFastBody, tmpl.Bindings{
			"count": countRecircs,
			"port":  FastRecircPort,
		}),
	})
}

// Banner returns a section heading comment.
func Banner(title string) string {
	return fmt.Sprintf("/************************************************************/\n// %s\n/************************************************************/", title)
}
