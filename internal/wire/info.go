package wire

import (
	"encoding/binary"
	"fmt"
)

// LockPair is the pair of partition counters. In a packet it is the amount
// requested on each side; in the switch lock register it is the amount
// currently held.
type LockPair struct {
	Left  uint8
	Right uint8
}

func (p LockPair) String() string {
	return fmt.Sprintf("{%d, %d}", p.Left, p.Right)
}

const (
	flagHasLock   = 0x80
	flagAborted   = 0x40
	flagMultipass = 0x01
)

// InfoLen is the encoded size of Info.
const InfoLen = 7

// Info is the transaction info header that precedes the instruction
// sequence. It is the only per-transaction state that survives a
// recirculation.
type Info struct {
	HasLock   bool
	Aborted   bool
	Multipass bool
	Recircs   uint32
	Locks     LockPair
}

// AppendBinary appends the encoded header to b.
func (i Info) AppendBinary(b []byte) ([]byte, error) {
	var flags byte
	if i.HasLock {
		flags |= flagHasLock
	}
	if i.Aborted {
		flags |= flagAborted
	}
	if i.Multipass {
		flags |= flagMultipass
	}
	b = append(b, flags)
	b = binary.BigEndian.AppendUint32(b, i.Recircs)
	return append(b, i.Locks.Left, i.Locks.Right), nil
}

// MarshalBinary returns the encoded header.
func (i Info) MarshalBinary() ([]byte, error) {
	return i.AppendBinary(make([]byte, 0, InfoLen))
}

// UnmarshalBinary decodes the header from the start of b.
func (i *Info) UnmarshalBinary(b []byte) error {
	if len(b) < InfoLen {
		return fmt.Errorf("info header: %w", ErrShortBuffer)
	}
	flags := b[0]
	i.HasLock = flags&flagHasLock != 0
	i.Aborted = flags&flagAborted != 0
	i.Multipass = flags&flagMultipass != 0
	i.Recircs = binary.BigEndian.Uint32(b[1:5])
	i.Locks = LockPair{Left: b[5], Right: b[6]}
	return nil
}

// InstrType is the leading byte of every instruction. The top bit marks the
// last instruction of a pass.
type InstrType uint8

const (
	InstrStop    InstrType = 0x80
	InstrNegStop InstrType = 0x7f
)

// IsStop reports whether the stop bit is set.
func (t InstrType) IsStop() bool {
	return t&InstrStop != 0
}

// ClearStop returns t without the stop bit.
func (t InstrType) ClearStop() InstrType {
	return t & InstrNegStop
}

// WithStop returns t with the stop bit set.
func (t InstrType) WithStop() InstrType {
	return t | InstrStop
}
