package ycsb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vk/p4dbgen/internal/switchsim"
	"github.com/vk/p4dbgen/internal/wire"
)

// InstrLen is the encoded size of Instr.
const InstrLen = 8

// ErrMissingTerminator is returned when a transaction frame ends without
// the STOP byte.
var ErrMissingTerminator = errors.New("ycsb: missing STOP terminator")

// Instr is the reg_instr_t header.
type Instr struct {
	Type wire.InstrType
	Op   OpCode
	Idx  uint16
	Data uint32
}

// AppendBinary appends the encoded instruction to b.
func (in Instr) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, byte(in.Type), byte(in.Op))
	b = binary.BigEndian.AppendUint16(b, in.Idx)
	return binary.BigEndian.AppendUint32(b, in.Data), nil
}

// UnmarshalBinary decodes the instruction from the start of b.
func (in *Instr) UnmarshalBinary(b []byte) error {
	if len(b) < InstrLen {
		return fmt.Errorf("reg_instr header: %w", wire.ErrShortBuffer)
	}
	in.Type = wire.InstrType(b[0])
	in.Op = OpCode(b[1])
	in.Idx = binary.BigEndian.Uint16(b[2:4])
	in.Data = binary.BigEndian.Uint32(b[4:8])
	return nil
}

// AppendTxn appends the info header, the instructions and the STOP
// terminator of a SWITCH_TXN payload to b.
func AppendTxn(b []byte, info wire.Info, instrs []Instr) ([]byte, error) {
	b, err := info.AppendBinary(b)
	if err != nil {
		return nil, err
	}
	for _, in := range instrs {
		if b, err = in.AppendBinary(b); err != nil {
			return nil, err
		}
	}
	return append(b, byte(wire.InstrStop)), nil
}

// ParseTxn decodes a SWITCH_TXN payload produced by AppendTxn.
func ParseTxn(b []byte) (wire.Info, []Instr, error) {
	var info wire.Info
	if err := info.UnmarshalBinary(b); err != nil {
		return wire.Info{}, nil, err
	}
	b = b[wire.InfoLen:]

	var instrs []Instr
	for {
		if len(b) == 0 {
			return wire.Info{}, nil, ErrMissingTerminator
		}
		if wire.InstrType(b[0]) == wire.InstrStop {
			return info, instrs, nil
		}
		var in Instr
		if err := in.UnmarshalBinary(b); err != nil {
			return wire.Info{}, nil, err
		}
		instrs = append(instrs, in)
		b = b[InstrLen:]
	}
}

// ToSim converts decoded instructions to the simulator representation.
func ToSim(instrs []Instr) []*switchsim.Instr {
	out := make([]*switchsim.Instr, len(instrs))
	for i, in := range instrs {
		out[i] = &switchsim.Instr{Type: in.Type, Op: uint8(in.Op), Key: in.Idx, Data: [2]uint32{in.Data}}
	}
	return out
}

// FromSim converts simulator instructions back to the wire representation.
// Applied instructions are encoded with the SKIP type, as the pipeline
// rewrites them.
func FromSim(instrs []*switchsim.Instr) []Instr {
	out := make([]Instr, len(instrs))
	for i, in := range instrs {
		t := in.Type
		if in.Done {
			t = InstrSkip
		}
		out[i] = Instr{Type: t, Op: OpCode(in.Op), Idx: in.Key, Data: in.Data[0]}
	}
	return out
}
