package tpcc

import (
	"fmt"
	"strings"

	"github.com/vk/p4dbgen/internal/config"
	"github.com/vk/p4dbgen/internal/register"
	"github.com/vk/p4dbgen/internal/switchsim"
	"github.com/vk/p4dbgen/internal/wire"
	"github.com/vk/p4dbgen/internal/workload"
)

// Instruction types.
const (
	InstrSkip     wire.InstrType = 0x00
	InstrPayment  wire.InstrType = 0x01
	InstrNewOrder wire.InstrType = 0x02
)

// MaxPartitions is the largest stock partition count whose NO_STOCK types
// stay clear of the stop bit.
const MaxPartitions = int(wire.InstrNegStop) - 2

// NoStockType is the instruction type updating stock partition i.
func NoStockType(i int) wire.InstrType {
	return wire.InstrType(i + 3)
}

// Restock applies the s_quantity update for an order line of qty items.
func Restock(quantity, qty uint32) uint32 {
	if quantity < qty+10 {
		quantity += 91
	}
	return quantity - qty
}

var _ workload.Simulator = Generator{}

// Accessor implements workload.Simulator.
func (g Generator) Accessor(p workload.Params) (switchsim.Accessor, error) {
	if err := g.Validate(p); err != nil {
		return nil, err
	}
	return NewWarehouse(p), nil
}

// Instr implements workload.Simulator.
//
//	payment:   Key = w_id, Key2 = d_id, Data[0] = h_amount
//	new_order: Key = d_id, Data[0] receives d_next_o_id
//	no_stock:  Reg = partition, Key = s_id, Data = [ol_quantity, is_remote]
func (Generator) Instr(p workload.Params, spec *config.InstrSpec) (*switchsim.Instr, error) {
	in := &switchsim.Instr{}
	switch strings.ToLower(spec.Op) {
	case "payment":
		in.Type = InstrPayment
	case "new_order":
		in.Type = InstrNewOrder
	case "no_stock":
		if spec.Reg < 0 || spec.Reg >= p.NumRegs {
			return nil, fmt.Errorf("tpcc: stock partition %d out of range [0, %d)", spec.Reg, p.NumRegs)
		}
		in.Type = NoStockType(spec.Reg)
	default:
		return nil, fmt.Errorf("tpcc: unknown op %q (want payment, new_order or no_stock)", spec.Op)
	}
	for _, k := range []int{spec.Key, spec.Key2} {
		if k < 0 || k >= p.RegSize {
			return nil, fmt.Errorf("tpcc: key %d out of range [0, %d)", k, p.RegSize)
		}
	}
	in.Key, in.Key2 = uint16(spec.Key), uint16(spec.Key2)
	for i := 0; i < len(spec.Data) && i < len(in.Data); i++ {
		in.Data[i] = uint32(spec.Data[i])
	}
	if spec.Stop {
		in.Type = in.Type.WithStop()
	}
	return in, nil
}

type stock struct {
	ytd      *register.Register[uint32]
	quantity *register.Register[uint32]
	orderCnt *register.Register[uint32]
	remote   *register.Register[uint32]
}

// Warehouse is the register file of a TPC-C pipeline.
type Warehouse struct {
	wYtd      *register.Register[uint32]
	dYtd      *register.Register[uint32]
	nextOrder *register.Register[uint32]
	stocks    []stock
	numInstr  int
}

// NewWarehouse creates the zeroed registers.
func NewWarehouse(p workload.Params) *Warehouse {
	w := &Warehouse{
		wYtd:      register.New("reg_payment_w_ytd", p.RegSize, uint32(0)),
		dYtd:      register.New("reg_payment_d_ytd", p.RegSize, uint32(0)),
		nextOrder: register.New("reg_no_d_next_o_id", p.RegSize, uint32(0)),
		stocks:    make([]stock, p.NumRegs),
		numInstr:  p.NumInstr,
	}
	for i := range w.stocks {
		w.stocks[i] = stock{
			ytd:      register.New(fmt.Sprintf("reg_s_ytd_%d", i), p.RegSize, uint32(0)),
			quantity: register.New(fmt.Sprintf("reg_s_quantity_%d", i), p.RegSize, uint32(0)),
			orderCnt: register.New(fmt.Sprintf("reg_s_order_cnt_%d", i), p.RegSize, uint32(0)),
			remote:   register.New(fmt.Sprintf("reg_s_remote_cnt_%d", i), p.RegSize, uint32(0)),
		}
	}
	return w
}

// Class implements switchsim.Accessor. Stock partitions are classes
// 0..NumRegs-1, payment and new_order follow.
func (w *Warehouse) Class(t wire.InstrType) (int, bool) {
	switch {
	case t == InstrPayment:
		return len(w.stocks), true
	case t == InstrNewOrder:
		return len(w.stocks) + 1, true
	case t >= NoStockType(0) && int(t) < len(w.stocks)+3:
		return int(t) - 3, true
	}
	return 0, false
}

// SkipCapacity implements switchsim.Accessor.
func (w *Warehouse) SkipCapacity() int { return w.numInstr - 1 }

// LockFree implements switchsim.Accessor. Payments never take the lock.
func (w *Warehouse) LockFree(instrs []*switchsim.Instr) bool {
	for _, in := range instrs {
		if in.Type == InstrPayment {
			return true
		}
	}
	return false
}

func add(v uint32) register.Action[uint32] {
	return func(cell uint32) (uint32, uint32) { return cell + v, cell }
}

// Access implements switchsim.Accessor.
func (w *Warehouse) Access(in *switchsim.Instr) error {
	t := in.Type.ClearStop()
	class, ok := w.Class(t)
	if !ok {
		return fmt.Errorf("%w: unknown instruction type 0x%02x", switchsim.ErrParserReject, uint8(in.Type))
	}

	switch t {
	case InstrPayment:
		if _, err := w.wYtd.Execute(int(in.Key), add(in.Data[0])); err != nil {
			return err
		}
		_, err := w.dYtd.Execute(int(in.Key2), add(in.Data[0]))
		return err

	case InstrNewOrder:
		next, err := w.nextOrder.Execute(int(in.Key), add(1))
		if err != nil {
			return err
		}
		in.Data[0] = next
		return nil
	}

	s := w.stocks[class]
	idx := int(in.Key)
	qty, remote := in.Data[0], in.Data[1]
	if _, err := s.ytd.Execute(idx, add(qty)); err != nil {
		return err
	}
	if _, err := s.quantity.Execute(idx, func(cell uint32) (uint32, uint32) {
		return Restock(cell, qty), cell
	}); err != nil {
		return err
	}
	if _, err := s.orderCnt.Execute(idx, add(1)); err != nil {
		return err
	}
	_, err := s.remote.Execute(idx, add(remote))
	return err
}

// LockFor implements switchsim.LockLayout. Stock partitions alternate
// between the two lock halves.
func (w *Warehouse) LockFor(class int) wire.LockPair {
	if class%2 == 0 {
		return wire.LockPair{Left: 1}
	}
	return wire.LockPair{Right: 1}
}

// Stock returns s_ytd, s_quantity, s_order_cnt and s_remote_cnt of a stock
// item.
func (w *Warehouse) Stock(part, item int) ([4]uint32, error) {
	var out [4]uint32
	if part < 0 || part >= len(w.stocks) {
		return out, fmt.Errorf("tpcc: stock partition %d out of range", part)
	}
	s := w.stocks[part]
	for i, r := range []*register.Register[uint32]{s.ytd, s.quantity, s.orderCnt, s.remote} {
		v, err := r.Load(item)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// YearToDate returns the warehouse and district payment totals.
func (w *Warehouse) YearToDate(wID, dID int) (uint32, uint32, error) {
	wv, err := w.wYtd.Load(wID)
	if err != nil {
		return 0, 0, err
	}
	dv, err := w.dYtd.Load(dID)
	return wv, dv, err
}
