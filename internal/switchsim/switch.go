package switchsim

import (
	"fmt"

	"github.com/vk/p4dbgen/internal/protocol"
	"github.com/vk/p4dbgen/internal/wire"
)

// Accessor is the workload-specific half of the pipeline: which register
// class an instruction touches and what accessing it does.
type Accessor interface {
	// Class returns the register class of an instruction type without its
	// stop bit. ok is false for types the parser does not know.
	Class(t wire.InstrType) (class int, ok bool)
	// SkipCapacity is how many handled instructions the parser can skip.
	SkipCapacity() int
	// LockFree reports whether a batch bypasses the locking protocol.
	LockFree(instrs []*Instr) bool
	// Access applies one instruction to the data registers.
	Access(in *Instr) error
}

// Options configure a Switch.
type Options struct {
	// MaxRecircs bounds the recirculations of a transaction waiting for the
	// lock. Zero means protocol.DefaultMaxRecircs.
	MaxRecircs uint32
	// RecircLatency is the number of ticks a recirculated packet needs to
	// re-enter the pipeline. Zero means one tick.
	RecircLatency int
	// Tracer receives one event per traversal. Nil disables tracing.
	Tracer Tracer
}

// Switch is a model of the generated pipeline.
type Switch struct {
	acc  Accessor
	lock *protocol.SwitchLock
	opts Options
}

// New creates a switch around a workload accessor.
func New(acc Accessor, opts Options) *Switch {
	if opts.MaxRecircs == 0 {
		opts.MaxRecircs = protocol.DefaultMaxRecircs
	}
	if opts.RecircLatency <= 0 {
		opts.RecircLatency = 1
	}
	return &Switch{acc: acc, lock: protocol.NewSwitchLock(), opts: opts}
}

// Lock exposes the switch lock register.
func (s *Switch) Lock() *protocol.SwitchLock {
	return s.lock
}

// Accessor returns the workload accessor the switch was built with.
func (s *Switch) Accessor() Accessor {
	return s.acc
}

// Outcome is how a traversal left the pipeline.
type Outcome int

const (
	Recirculated Outcome = iota
	Replied
	Aborted
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Recirculated:
		return "recirculated"
	case Replied:
		return "committed"
	case Aborted:
		return "aborted"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Traverse runs p through the pipeline once.
func (s *Switch) Traverse(p *Packet) (Outcome, protocol.Verdict, error) {
	p.Passes++

	b, err := parse(p, s.acc)
	if err != nil {
		s.release(p)
		return Rejected, protocol.Verdict{}, err
	}

	if s.acc.LockFree(b.instrs) {
		if err := s.access(b.instrs); err != nil {
			return Rejected, protocol.Verdict{}, err
		}
		return Replied, protocol.Verdict{Access: true, Reply: true, To: protocol.Done}, nil
	}

	v := protocol.Step(&p.Info, b.last(p), s.lock, s.opts.MaxRecircs)
	if v.Access {
		if err := s.access(b.instrs); err != nil {
			s.release(p)
			return Rejected, v, err
		}
	}
	if v.ClearNextStop && !b.last(p) {
		next := p.Instrs[b.next]
		next.Type = next.Type.ClearStop()
	}

	switch {
	case v.Aborted:
		return Aborted, v, nil
	case v.Reply:
		return Replied, v, nil
	}
	return Recirculated, v, nil
}

// release drops the lock halves of a packet that leaves the switch early.
func (s *Switch) release(p *Packet) {
	if p.Info.HasLock {
		s.lock.Unlock(p.Info.Locks)
		p.Info.HasLock = false
	}
}

func (s *Switch) access(instrs []*Instr) error {
	for _, in := range instrs {
		if err := s.acc.Access(in); err != nil {
			return err
		}
		in.Done = true
	}
	return nil
}
