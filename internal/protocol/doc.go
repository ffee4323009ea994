// Package protocol defines the recirculation based locking protocol shared
// by every generated pipeline, both as an executable model and as the
// pipeline source that implements it.
//
// A transaction arrives as one packet carrying an info header and a
// sequence of instructions split into batches by a stop bit. Single-pass
// transactions (multipass = 0) run only when no partition is held and
// otherwise recirculate unchanged. Multi-pass transactions first acquire
// the partitions named in info.locks through the two-sided switch lock,
// then apply one batch per pass while holding it, and release it together
// with the last batch before replying. Every recirculation increments
// info.recircs, and a transaction that has waited DefaultMaxRecircs passes
// without acquiring the lock is tagged aborted and returned to its sender.
//
// The model functions (TryLock, Unlock, IsLocked, Step) are pure or operate
// on an explicit register cell, so the same rules drive both the simulator
// and the tests that check mutual exclusion and bounded progress.
package protocol
