// Package wire encodes and decodes the headers exchanged between database
// nodes and the switch: the ethernet frame header, the message header, the
// transaction info header and the instruction type byte.
//
// All multi-byte fields are big-endian.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// EtherType marks frames carrying database messages.
const EtherType uint16 = 0x1000

// MsgType identifies the message carried after the ethernet header.
type MsgType uint32

const (
	MsgInit        MsgType = 0x01000100
	MsgBarrier     MsgType = 0x02000100
	MsgTupleGetReq MsgType = 0x01000000
	MsgTupleGetRes MsgType = 0x02000000
	MsgTuplePutReq MsgType = 0x03000000
	MsgTuplePutRes MsgType = 0x04000000
	MsgSwitchTxn   MsgType = 0x05000000
)

var msgTypeNames = map[MsgType]string{
	MsgInit:        "INIT",
	MsgBarrier:     "BARRIER",
	MsgTupleGetReq: "TUPLE_GET_REQ",
	MsgTupleGetRes: "TUPLE_GET_RES",
	MsgTuplePutReq: "TUPLE_PUT_REQ",
	MsgTuplePutRes: "TUPLE_PUT_RES",
	MsgSwitchTxn:   "SWITCH_TXN",
}

// MsgTypes returns every message type in declaration order.
func MsgTypes() []MsgType {
	return []MsgType{MsgInit, MsgBarrier, MsgTupleGetReq, MsgTupleGetRes, MsgTuplePutReq, MsgTuplePutRes, MsgSwitchTxn}
}

func (t MsgType) String() string {
	if n, ok := msgTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("MsgType(0x%08x)", uint32(t))
}

// ErrShortBuffer is returned when a buffer is too small for the header
// being decoded.
var ErrShortBuffer = errors.New("wire: short buffer")

// MAC is a 48-bit hardware address.
type MAC [6]byte

// Ethernet is the 14 byte frame header.
type Ethernet struct {
	Dst  MAC
	Src  MAC
	Type uint16
}

// EthernetLen is the encoded size of Ethernet.
const EthernetLen = 14

// Reply swaps source and destination, as the switch does before returning a
// packet to its sender.
func (e *Ethernet) Reply() {
	e.Dst, e.Src = e.Src, e.Dst
}

// AppendBinary appends the encoded header to b.
func (e Ethernet) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, e.Dst[:]...)
	b = append(b, e.Src[:]...)
	return binary.BigEndian.AppendUint16(b, e.Type), nil
}

// UnmarshalBinary decodes the header from the start of b.
func (e *Ethernet) UnmarshalBinary(b []byte) error {
	if len(b) < EthernetLen {
		return fmt.Errorf("ethernet header: %w", ErrShortBuffer)
	}
	copy(e.Dst[:], b[0:6])
	copy(e.Src[:], b[6:12])
	e.Type = binary.BigEndian.Uint16(b[12:14])
	return nil
}

// Msg is the message header. Two bytes of padding align the header after
// the 14 byte ethernet header.
type Msg struct {
	Type   MsgType
	Sender uint32
	ID     uint64
}

// MsgLen is the encoded size of Msg.
const MsgLen = 18

// AppendBinary appends the encoded header to b.
func (m Msg) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, 0, 0)
	b = binary.BigEndian.AppendUint32(b, uint32(m.Type))
	b = binary.BigEndian.AppendUint32(b, m.Sender)
	return binary.BigEndian.AppendUint64(b, m.ID), nil
}

// UnmarshalBinary decodes the header from the start of b.
func (m *Msg) UnmarshalBinary(b []byte) error {
	if len(b) < MsgLen {
		return fmt.Errorf("msg header: %w", ErrShortBuffer)
	}
	m.Type = MsgType(binary.BigEndian.Uint32(b[2:6]))
	m.Sender = binary.BigEndian.Uint32(b[6:10])
	m.ID = binary.BigEndian.Uint64(b[10:18])
	return nil
}
