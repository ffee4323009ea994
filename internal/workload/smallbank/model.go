package smallbank

import (
	"fmt"
	"strings"

	"github.com/vk/p4dbgen/internal/config"
	"github.com/vk/p4dbgen/internal/register"
	"github.com/vk/p4dbgen/internal/switchsim"
	"github.com/vk/p4dbgen/internal/wire"
	"github.com/vk/p4dbgen/internal/workload"
)

// Kind is the operation encoded in the upper nibble of an instruction type.
type Kind uint8

const (
	Balance         Kind = 0x00
	DepositChecking Kind = 0x10
	TransactSaving  Kind = 0x20
	Amalgamate      Kind = 0x30
)

const (
	// InstrSkip marks an instruction the pipeline has applied.
	InstrSkip wire.InstrType = 0x40
	// InstrAbort is written by egress when a payment would overdraw.
	InstrAbort wire.InstrType = 0x80
)

// MaxPartitions is the number of partitions the lower nibble can address.
const MaxPartitions = 16

// Initial account balances.
const (
	DefaultSaving   uint32 = 0x10
	DefaultChecking uint32 = 0x20
)

// TransactFailed is returned by a transact_saving that would leave the
// saving balance negative.
const TransactFailed uint32 = 0xffffffff

var kinds = []struct {
	kind   Kind
	enum   string
	header string
}{
	{Balance, "BALANCE", "balance"},
	{DepositChecking, "DEPOSIT_CHECKING", "deposit_checking"},
	{TransactSaving, "TRANSACT_SAVING", "transact_saving"},
	{Amalgamate, "AMALGAMATE", "amalgamate"},
}

// Type is the instruction type of kind k on partition i.
func Type(k Kind, i int) wire.InstrType {
	return wire.InstrType(uint8(k) | uint8(i))
}

var _ workload.Simulator = Generator{}

// Accessor implements workload.Simulator.
func (g Generator) Accessor(p workload.Params) (switchsim.Accessor, error) {
	if err := g.Validate(p); err != nil {
		return nil, err
	}
	return NewBank(p), nil
}

// Instr implements workload.Simulator. Op names the kind, Reg the partition,
// Key the customer and Data[0] the amount of a deposit or transact.
func (Generator) Instr(p workload.Params, spec *config.InstrSpec) (*switchsim.Instr, error) {
	kind := Kind(0xff)
	for _, k := range kinds {
		if strings.EqualFold(spec.Op, k.header) {
			kind = k.kind
		}
	}
	if kind == 0xff {
		return nil, fmt.Errorf("smallbank: unknown op %q", spec.Op)
	}
	if spec.Reg < 0 || spec.Reg >= p.NumRegs {
		return nil, fmt.Errorf("smallbank: partition %d out of range [0, %d)", spec.Reg, p.NumRegs)
	}
	if spec.Key < 0 || spec.Key >= p.RegSize {
		return nil, fmt.Errorf("smallbank: customer %d out of range [0, %d)", spec.Key, p.RegSize)
	}

	in := &switchsim.Instr{Type: Type(kind, spec.Reg), Key: uint16(spec.Key)}
	if len(spec.Data) > 0 {
		in.Data[0] = uint32(int32(spec.Data[0]))
	}
	if spec.Stop {
		in.Type = in.Type.WithStop()
	}
	return in, nil
}

// Bank is the register file of a SmallBank pipeline.
type Bank struct {
	saving   []*register.Register[uint32]
	checking []*register.Register[uint32]
}

// NewBank creates the account registers with their initial balances.
func NewBank(p workload.Params) *Bank {
	b := &Bank{
		saving:   make([]*register.Register[uint32], p.NumRegs),
		checking: make([]*register.Register[uint32], p.NumRegs),
	}
	for i := range p.NumRegs {
		b.saving[i] = register.New(fmt.Sprintf("reg_saving_%d", i), p.RegSize, DefaultSaving)
		b.checking[i] = register.New(fmt.Sprintf("reg_checking_%d", i), p.RegSize, DefaultChecking)
	}
	return b
}

// Class implements switchsim.Accessor. Instructions of one partition share
// a class since ingress applies at most one of them per pass.
func (b *Bank) Class(t wire.InstrType) (int, bool) {
	if t&InstrSkip != 0 {
		return 0, false
	}
	part := int(t & 0x0f)
	if part >= len(b.saving) {
		return 0, false
	}
	return part, true
}

// SkipCapacity implements switchsim.Accessor. A single header absorbs the
// handled instruction.
func (b *Bank) SkipCapacity() int { return 1 }

// LockFree implements switchsim.Accessor.
func (b *Bank) LockFree([]*switchsim.Instr) bool { return false }

// Access implements switchsim.Accessor. Balance and amalgamate return the
// saving balance in Data[0] and the checking balance in Data[1].
func (b *Bank) Access(in *switchsim.Instr) error {
	t := in.Type.ClearStop()
	part, ok := b.Class(t)
	if !ok {
		return fmt.Errorf("%w: unknown instruction type 0x%02x", switchsim.ErrParserReject, uint8(in.Type))
	}
	idx := int(in.Key)
	saving, checking := b.saving[part], b.checking[part]

	var err error
	switch Kind(t & 0x30) {
	case Balance:
		if in.Data[0], err = saving.Execute(idx, read); err != nil {
			return err
		}
		in.Data[1], err = checking.Execute(idx, read)

	case DepositChecking:
		amount := in.Data[0]
		in.Data[0], err = checking.Execute(idx, func(cell uint32) (uint32, uint32) {
			cell += amount
			return cell, cell
		})

	case TransactSaving:
		amount := in.Data[0]
		in.Data[0], err = saving.Execute(idx, func(cell uint32) (uint32, uint32) {
			if int32(cell)+int32(amount) >= 0 {
				return cell + amount, 0
			}
			return cell, TransactFailed
		})

	case Amalgamate:
		if in.Data[0], err = saving.Execute(idx, zero); err != nil {
			return err
		}
		in.Data[1], err = checking.Execute(idx, zero)
	}
	return err
}

func read(cell uint32) (uint32, uint32) { return cell, cell }

func zero(cell uint32) (uint32, uint32) { return 0, cell }

// Balances returns the saving and checking balance of a customer.
func (b *Bank) Balances(part, customer int) (saving, checking uint32, err error) {
	if part < 0 || part >= len(b.saving) {
		return 0, 0, fmt.Errorf("smallbank: partition %d out of range", part)
	}
	if saving, err = b.saving[part].Load(customer); err != nil {
		return 0, 0, err
	}
	checking, err = b.checking[part].Load(customer)
	return saving, checking, err
}
