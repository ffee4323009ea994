package protocol

import (
	"fmt"

	"github.com/vk/p4dbgen/internal/wire"
)

// DefaultMaxRecircs bounds how often a transaction that does not hold the
// lock may recirculate before it is aborted.
const DefaultMaxRecircs uint32 = 10000

// State is the position of a transaction in the locking protocol.
type State int

const (
	// Unlocked: no lock held and no attempt has failed yet.
	Unlocked State = iota
	// LockPending: recirculating after the lock was found busy.
	LockPending
	// Locked: the lock is held and more batches remain.
	Locked
	// Unlocking: the lock is held and this pass carries the last batch.
	Unlocking
	// Done: the packet was replied to.
	Done
)

func (s State) String() string {
	switch s {
	case Unlocked:
		return "UNLOCKED"
	case LockPending:
		return "LOCK_PENDING"
	case Locked:
		return "LOCKED"
	case Unlocking:
		return "UNLOCKING"
	case Done:
		return "DONE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// stateOf derives the protocol state from the info header. last reports
// whether the batch about to be processed is the final one.
func stateOf(info wire.Info, last bool) State {
	switch {
	case info.HasLock && last:
		return Unlocking
	case info.HasLock:
		return Locked
	case info.Recircs > 0:
		return LockPending
	}
	return Unlocked
}

// Verdict is the outcome of one pass through the ingress pipeline.
type Verdict struct {
	// Access is set when the current batch is applied to the data registers.
	Access bool
	// Recirculate and Reply are mutually exclusive.
	Recirculate bool
	Reply       bool
	// ClearNextStop is set when the stop bit of the next batch's first
	// instruction must be removed so the next pass parses it.
	ClearNextStop bool
	// Aborted is set when the recirculation bound was hit.
	Aborted bool

	From State
	To   State
}

// Step runs the ingress state machine for one pass and updates info the way
// the pipeline updates the packet header. last reports whether the batch in
// this pass is the final one. A transaction that does not hold the lock and
// has already recirculated maxRecircs times is aborted instead of
// recirculated again.
func Step(info *wire.Info, last bool, lk Locker, maxRecircs uint32) Verdict {
	v := Verdict{From: stateOf(*info, last)}

	retry := func() {
		if info.Recircs >= maxRecircs {
			info.Aborted = true
			v.Aborted = true
			v.Reply = true
			return
		}
		v.Recirculate = true
	}

	switch {
	case !info.Multipass:
		if lk.IsLocked() {
			retry()
		} else {
			v.Access = true
			v.Reply = true
		}

	case !info.HasLock:
		if !lk.TryLock(info.Locks) {
			retry()
		} else {
			info.HasLock = true
			v.Access = true
			v.ClearNextStop = true
			v.Recirculate = true
		}

	case last:
		lk.Unlock(info.Locks)
		info.HasLock = false
		v.Access = true
		v.Reply = true

	default:
		v.Access = true
		v.ClearNextStop = true
		v.Recirculate = true
	}

	if v.Recirculate {
		info.Recircs++
		v.To = stateOf(*info, false)
	} else {
		v.To = Done
	}
	return v
}
