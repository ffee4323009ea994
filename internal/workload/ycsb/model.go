package ycsb

import (
	"fmt"
	"strings"

	"github.com/vk/p4dbgen/internal/config"
	"github.com/vk/p4dbgen/internal/register"
	"github.com/vk/p4dbgen/internal/switchsim"
	"github.com/vk/p4dbgen/internal/wire"
	"github.com/vk/p4dbgen/internal/workload"
)

// MaxRegs is the largest register class count whose instruction types stay
// clear of the stop bit.
const MaxRegs = int(wire.InstrNegStop)

// InstrSkip is the type of an instruction that has already been applied.
const InstrSkip wire.InstrType = 0x00

// OpCode selects the register access.
type OpCode uint8

const (
	OpRead  OpCode = 0x00
	OpWrite OpCode = 0x01
)

func (o OpCode) String() string {
	switch o {
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	}
	return fmt.Sprintf("OpCode(%d)", uint8(o))
}

// RegType is the instruction type addressing register class i.
func RegType(i int) wire.InstrType {
	return wire.InstrType(i + 1)
}

// DefaultValue is the initial value of every cell of register class i.
func DefaultValue(i int) uint32 {
	return uint32(0x0101 * (i + 1))
}

var _ workload.Simulator = Generator{}

// Accessor implements workload.Simulator.
func (g Generator) Accessor(p workload.Params) (switchsim.Accessor, error) {
	if err := g.Validate(p); err != nil {
		return nil, err
	}
	return NewStore(p), nil
}

// Instr implements workload.Simulator. Op is "read" or "write", Reg the
// register class, Key the cell index and Data[0] the value to write.
func (Generator) Instr(p workload.Params, spec *config.InstrSpec) (*switchsim.Instr, error) {
	var op OpCode
	switch strings.ToLower(spec.Op) {
	case "read":
		op = OpRead
	case "write":
		op = OpWrite
	default:
		return nil, fmt.Errorf("ycsb: unknown op %q (want read or write)", spec.Op)
	}
	if spec.Reg < 0 || spec.Reg >= p.NumRegs {
		return nil, fmt.Errorf("ycsb: register %d out of range [0, %d)", spec.Reg, p.NumRegs)
	}
	if spec.Key < 0 || spec.Key >= p.RegSize {
		return nil, fmt.Errorf("ycsb: key %d out of range [0, %d)", spec.Key, p.RegSize)
	}

	in := &switchsim.Instr{Type: RegType(spec.Reg), Op: uint8(op), Key: uint16(spec.Key)}
	if len(spec.Data) > 0 {
		in.Data[0] = uint32(spec.Data[0])
	}
	if spec.Stop {
		in.Type = in.Type.WithStop()
	}
	return in, nil
}

// Store is the register file of a YCSB pipeline.
type Store struct {
	regs     []*register.Register[uint32]
	numInstr int
}

// NewStore creates the registers with their default values.
func NewStore(p workload.Params) *Store {
	s := &Store{regs: make([]*register.Register[uint32], p.NumRegs), numInstr: p.NumInstr}
	for i := range s.regs {
		s.regs[i] = register.New(fmt.Sprintf("reg_%d", i), p.RegSize, DefaultValue(i))
	}
	return s
}

// Class implements switchsim.Accessor.
func (s *Store) Class(t wire.InstrType) (int, bool) {
	if t == InstrSkip || int(t) > len(s.regs) {
		return 0, false
	}
	return int(t) - 1, true
}

// SkipCapacity implements switchsim.Accessor.
func (s *Store) SkipCapacity() int { return s.numInstr - 1 }

// LockFree implements switchsim.Accessor.
func (s *Store) LockFree([]*switchsim.Instr) bool { return false }

// Access implements switchsim.Accessor. The previous cell value is returned
// in Data[0].
func (s *Store) Access(in *switchsim.Instr) error {
	class, ok := s.Class(in.Type.ClearStop())
	if !ok {
		return fmt.Errorf("%w: unknown instruction type 0x%02x", switchsim.ErrParserReject, uint8(in.Type))
	}
	write := OpCode(in.Op) == OpWrite
	data := in.Data[0]
	rv, err := s.regs[class].Execute(int(in.Key), func(cell uint32) (uint32, uint32) {
		if write {
			return data, cell
		}
		return cell, cell
	})
	if err != nil {
		return err
	}
	in.Data[0] = rv
	return nil
}

// LockFor implements switchsim.LockLayout. The lower half of the register
// classes is guarded by the right lock, the upper half by the left lock.
func (s *Store) LockFor(class int) wire.LockPair {
	if class < len(s.regs)/2 {
		return wire.LockPair{Right: 1}
	}
	return wire.LockPair{Left: 1}
}

// Load returns the current value of a cell.
func (s *Store) Load(class, idx int) (uint32, error) {
	if class < 0 || class >= len(s.regs) {
		return 0, fmt.Errorf("ycsb: register %d out of range", class)
	}
	return s.regs[class].Load(idx)
}
