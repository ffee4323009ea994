package blocks

import (
	"fmt"

	"github.com/vk/p4dbgen/internal/tmpl"
	"github.com/vk/p4dbgen/internal/wire"
)

const ethernetBody = `
typedef bit<48> mac_addr_t;
typedef bit<16> ether_type_t;

header ethernet_t {
    mac_addr_t dst_addr;
    mac_addr_t src_addr;
    ether_type_t ether_type;
}

enum bit<32> MsgType_t {
    ${msg_types}
}

typedef bit<32> node_t;
typedef bit<64> msgid_t;

header msg_t {
    bit<16> padding;    // 14 bytes for eth_hdr_t, add 2 bytes
    MsgType_t type;
    node_t sender;
    msgid_t msg_id;
}
`

const infoBody = `
struct lock_pair {
    bit<8> left;
    bit<8> right;
}

header info_t {
    bit<1> has_lock;
    bit<1> aborted;
    bit<5> empty;
    bit<1> multipass;   // only last bit written for bool
    bit<32> recircs;
    lock_pair locks;
}

const bit<32> MAX_RECIRCS = ${max_recircs};
`

// msgTypes yields the MsgType_t enum members from the wire definitions.
func msgTypes() tmpl.Seq {
	types := wire.MsgTypes()
	return tmpl.Range(len(types), func(i int) any {
		sep := ","
		if i == len(types)-1 {
			sep = ""
		}
		return fmt.Sprintf("%s = 0x%08x%s", types[i], uint32(types[i]), sep)
	})
}

// EthernetHeaders returns the ethernet and message header declarations.
func EthernetHeaders() *tmpl.Node {
	return tmpl.New(ethernetBody, tmpl.Bindings{"msg_types": msgTypes()})
}

// InfoHeader returns the lock pair, the transaction info header and the
// recirculation bound constant.
func InfoHeader(maxRecircs uint32) *tmpl.Node {
	return tmpl.New(infoBody, tmpl.Bindings{"max_recircs": maxRecircs})
}

const programBody = `
#include <core.p4>

#if __TARGET_TOFINO__ == 2
    #include <t2na.p4>
#else
    #include <tna.p4>
#endif

${headers_banner}
${headers}


${utils_banner}
${utils}


${parser_banner}
${parser}


${ingress_banner}
${ingress}

${egress}

Pipeline(
    IngressParser(),
    Ingress(),
    IngressDeparser(),
    ${egress_parser}(),
    ${egress_control}(),
    ${egress_deparser}()
) pipe;

Switch(pipe) main;
`

const egressBody = `
${headers_banner}
${headers}

${parser_banner}
${parser}

${egress_banner}
${egress}
`

// Program is a complete pipeline. When Egress is nil the pipeline is
// instantiated with the empty egress blocks from Utils(true).
type Program struct {
	Headers any
	Utils   any
	Parser  any
	Ingress any
	Egress  *Egress
}

// Egress holds the optional egress sections.
type Egress struct {
	Headers any
	Parser  any
	Control any
}

// Node assembles the program template.
func (p Program) Node() *tmpl.Node {
	b := tmpl.Bindings{
		"headers_banner": Banner("HEADERS"),
		"headers":        p.Headers,
		"utils_banner":   Banner("UTILS"),
		"utils":          p.Utils,
		"parser_banner":  Banner("PARSER"),
		"parser":         p.Parser,
		"ingress_banner": Banner("INGRESS"),
		"ingress":        p.Ingress,
	}

	if p.Egress == nil {
		b["egress"] = ""
		b["egress_parser"] = "EmptyEgressParser"
		b["egress_control"] = "EmptyEgress"
		b["egress_deparser"] = "EmptyEgressDeparser"
	} else {
		b["egress"] = tmpl.New(egressBody, tmpl.Bindings{
			"headers_banner": Banner("EGRESS HEADERS"),
			"headers":        p.Egress.Headers,
			"parser_banner":  Banner("EGRESS PARSER"),
			"parser":         p.Egress.Parser,
			"egress_banner":  Banner("EGRESS"),
			"egress":         p.Egress.Control,
		})
		b["egress_parser"] = "EgressParser"
		b["egress_control"] = "Egress"
		b["egress_deparser"] = "EgressDeparser"
	}

	return tmpl.New(programBody, b)
}

// Render implements tmpl.Renderer.
func (p Program) Render() (string, error) {
	return p.Node().Render()
}
