package switchsim

import (
	"fmt"
	"sort"

	"github.com/vk/p4dbgen/internal/wire"
)

// LockLayout is implemented by accessors that partition their registers
// between the two halves of the switch lock. Accessors without a layout
// guard every register with both halves.
type LockLayout interface {
	LockFor(class int) wire.LockPair
}

// Prepare encodes a transaction the way the database client does. When no
// instruction carries a stop bit, instructions are ordered by occurrence of
// their register class and then by class, so every pass touches ascending
// classes. A stop bit is set wherever a class does not ascend. The info
// header is multipass with the union of the needed lock halves when more
// than one pass is required, and lock-free otherwise. A transaction whose
// later passes would need more skip headers than the parser has is
// rejected.
func Prepare(acc Accessor, instrs []*Instr) (wire.Info, error) {
	type access struct {
		in    *Instr
		class int
		occ   int
	}

	explicit := false
	accesses := make([]access, len(instrs))
	counts := make(map[int]int)
	for i, in := range instrs {
		class, ok := acc.Class(in.Type.ClearStop())
		if !ok {
			return wire.Info{}, fmt.Errorf("%w: unknown instruction type 0x%02x", ErrParserReject, uint8(in.Type))
		}
		explicit = explicit || in.Type.IsStop()
		accesses[i] = access{in: in, class: class, occ: counts[class]}
		counts[class]++
	}

	if !explicit {
		sort.SliceStable(accesses, func(i, j int) bool {
			if accesses[i].occ != accesses[j].occ {
				return accesses[i].occ < accesses[j].occ
			}
			return accesses[i].class < accesses[j].class
		})
	}

	layout, hasLayout := acc.(LockLayout)
	var (
		conflicts int
		lastStart int
		locks     wire.LockPair
		seen      = make(map[int]struct{})
	)
	last := -1
	for i, a := range accesses {
		instrs[i] = a.in
		stop := false
		if i > 0 {
			if explicit {
				_, dup := seen[a.class]
				stop = a.in.Type.IsStop() || dup
			} else {
				stop = a.class <= last
			}
		}
		if stop {
			a.in.Type = a.in.Type.WithStop()
			conflicts++
			lastStart = i
			seen = make(map[int]struct{})
		} else {
			a.in.Type = a.in.Type.ClearStop()
		}
		seen[a.class] = struct{}{}
		last = a.class

		half := wire.LockPair{Left: 1, Right: 1}
		if hasLayout {
			half = layout.LockFor(a.class)
		}
		locks.Left |= half.Left
		locks.Right |= half.Right
	}

	if conflicts == 0 {
		return wire.Info{}, nil
	}
	if lastStart > acc.SkipCapacity() {
		return wire.Info{}, fmt.Errorf("%w: pass %d skips %d handled instructions, capacity %d",
			ErrParserReject, conflicts+1, lastStart, acc.SkipCapacity())
	}
	return wire.Info{Multipass: true, Locks: locks}, nil
}
