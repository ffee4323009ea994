package switchsim

import (
	"errors"
	"fmt"

	"github.com/vk/p4dbgen/internal/wire"
)

// ErrParserReject is returned for packets the generated parser would
// reject: unknown instruction types, a register class repeated within one
// batch, or more handled instructions than the skip headers can hold.
var ErrParserReject = errors.New("parser reject")

// Instr is one instruction of a transaction. The meaning of Key, Key2 and
// Data depends on the workload and on Type.
type Instr struct {
	Type wire.InstrType
	Op   uint8
	Key  uint16
	Key2 uint16
	Data [2]uint32
	// Done is set once the instruction has been applied. Done instructions
	// are skipped by the parser on later passes.
	Done bool
}

// Packet is a transaction in flight.
type Packet struct {
	ID     string
	Info   wire.Info
	Instrs []*Instr
	// Passes counts traversals of the ingress pipeline.
	Passes int
}

// batch is the result of parsing one pass.
type batch struct {
	instrs []*Instr
	// next is the index of the instruction following the batch, or
	// len(instrs) when the batch ends at the terminator.
	next int
}

func (b batch) last(p *Packet) bool {
	return b.next >= len(p.Instrs)
}

// parse extracts the instructions the parser would deliver to ingress on
// this pass: leading handled instructions are skipped, then instructions
// are collected until one carries the stop bit.
func parse(p *Packet, acc Accessor) (batch, error) {
	i := 0
	for i < len(p.Instrs) && p.Instrs[i].Done {
		i++
	}
	if i > acc.SkipCapacity() {
		return batch{}, fmt.Errorf("%w: %d handled instructions exceed skip capacity %d", ErrParserReject, i, acc.SkipCapacity())
	}

	seen := make(map[int]struct{})
	var out []*Instr
	for ; i < len(p.Instrs); i++ {
		in := p.Instrs[i]
		if in.Type.IsStop() {
			break
		}
		class, ok := acc.Class(in.Type)
		if !ok {
			return batch{}, fmt.Errorf("%w: unknown instruction type 0x%02x", ErrParserReject, uint8(in.Type))
		}
		if _, dup := seen[class]; dup {
			return batch{}, fmt.Errorf("%w: register class %d repeated in one pass", ErrParserReject, class)
		}
		seen[class] = struct{}{}
		out = append(out, in)
	}
	return batch{instrs: out, next: i}, nil
}
