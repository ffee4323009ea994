package protocol

import (
	"github.com/vk/p4dbgen/internal/register"
	"github.com/vk/p4dbgen/internal/wire"
)

// TryLock adds req to the held counters unless either side would reach
// two. It reports whether the lock was granted.
func TryLock(cell, req wire.LockPair) (wire.LockPair, bool) {
	if cell.Left+req.Left >= 2 || cell.Right+req.Right >= 2 {
		return cell, false
	}
	cell.Left += req.Left
	cell.Right += req.Right
	return cell, true
}

// Unlock subtracts req from the held counters.
func Unlock(cell, req wire.LockPair) wire.LockPair {
	cell.Left -= req.Left
	cell.Right -= req.Right
	return cell
}

// IsLocked reports whether any partition is held.
func IsLocked(cell wire.LockPair) bool {
	return cell.Left > 0 || cell.Right > 0
}

// Locker is the switch-wide lock consulted by Step.
type Locker interface {
	TryLock(req wire.LockPair) bool
	Unlock(req wire.LockPair)
	IsLocked() bool
}

// SwitchLock is the single-cell switch_lock register.
type SwitchLock struct {
	reg *register.Register[wire.LockPair]
}

// NewSwitchLock returns an unlocked switch lock.
func NewSwitchLock() *SwitchLock {
	return &SwitchLock{reg: register.New("switch_lock", 1, wire.LockPair{})}
}

func boolRV(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// TryLock implements Locker.
func (l *SwitchLock) TryLock(req wire.LockPair) bool {
	rv, _ := l.reg.Execute(0, func(cell wire.LockPair) (wire.LockPair, uint32) {
		next, ok := TryLock(cell, req)
		return next, boolRV(ok)
	})
	return rv == 1
}

// Unlock implements Locker.
func (l *SwitchLock) Unlock(req wire.LockPair) {
	_, _ = l.reg.Execute(0, func(cell wire.LockPair) (wire.LockPair, uint32) {
		return Unlock(cell, req), 0
	})
}

// IsLocked implements Locker.
func (l *SwitchLock) IsLocked() bool {
	rv, _ := l.reg.Execute(0, func(cell wire.LockPair) (wire.LockPair, uint32) {
		return cell, boolRV(IsLocked(cell))
	})
	return rv == 1
}

// Held returns the counters currently held.
func (l *SwitchLock) Held() wire.LockPair {
	cell, _ := l.reg.Load(0)
	return cell
}
