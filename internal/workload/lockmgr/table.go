package lockmgr

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/vk/p4dbgen/internal/config"
	"github.com/vk/p4dbgen/internal/register"
	"github.com/vk/p4dbgen/internal/wire"
	"github.com/vk/p4dbgen/internal/workload"
)

// AccessMode is the lock mode of a request.
type AccessMode uint8

const (
	ModeInvalid AccessMode = 0x00
	ModeRead    AccessMode = 0x01
	ModeWrite   AccessMode = 0x02
)

func (m AccessMode) String() string {
	switch m {
	case ModeInvalid:
		return "INVALID"
	case ModeRead:
		return "READ"
	case ModeWrite:
		return "WRITE"
	}
	return fmt.Sprintf("AccessMode(%d)", uint8(m))
}

const (
	// MarkerGet is the by_switch value of a get request for the switch.
	MarkerGet uint8 = 0xaa
	// MarkerPut is the by_switch value of a put request for the switch,
	// which is the marker a get response carries back.
	MarkerPut uint8 = 0x54 // MarkerGet + MarkerGet, wrapped to 8 bits
	// Exclusive is the lock word of an exclusively held tuple.
	Exclusive uint32 = 0x7fffffff
)

// TupleMsgLen is the encoded size of TupleMsg.
const TupleMsgLen = 28

// TupleMsg is the tuple_msg_t header.
type TupleMsg struct {
	TS       uint64
	TID      uint64
	RID      uint64
	Mode     AccessMode
	BySwitch uint8
	LockIdx  uint16
}

// AppendBinary appends the encoded header to b.
func (m TupleMsg) AppendBinary(b []byte) ([]byte, error) {
	b = binary.BigEndian.AppendUint64(b, m.TS)
	b = binary.BigEndian.AppendUint64(b, m.TID)
	b = binary.BigEndian.AppendUint64(b, m.RID)
	b = append(b, byte(m.Mode), m.BySwitch)
	return binary.BigEndian.AppendUint16(b, m.LockIdx), nil
}

// UnmarshalBinary decodes the header from the start of b.
func (m *TupleMsg) UnmarshalBinary(b []byte) error {
	if len(b) < TupleMsgLen {
		return fmt.Errorf("tuple_msg header: %w", wire.ErrShortBuffer)
	}
	m.TS = binary.BigEndian.Uint64(b[0:8])
	m.TID = binary.BigEndian.Uint64(b[8:16])
	m.RID = binary.BigEndian.Uint64(b[16:24])
	m.Mode = AccessMode(b[24])
	m.BySwitch = b[25]
	m.LockIdx = binary.BigEndian.Uint16(b[26:28])
	return nil
}

// Request is a tuple message in flight. Data holds the tuple fields and is
// nil when the packet carries no tuple_t header.
type Request struct {
	Type  wire.MsgType
	Tuple TupleMsg
	Data  []uint32
}

// Table is the register file of a lock manager pipeline.
type Table struct {
	locks  *register.Register[uint32]
	fields []*register.Register[uint32]
}

// NewTable creates an unlocked, zeroed table.
func NewTable(p workload.Params) *Table {
	t := &Table{
		locks:  register.New("locks", p.RegSize, uint32(0)),
		fields: make([]*register.Register[uint32], p.NumRegs),
	}
	for i := range t.fields {
		t.fields[i] = register.New(fmt.Sprintf("data_%d", i), p.RegSize, uint32(0))
	}
	return t
}

func tryExclusive(cell uint32) (uint32, uint32) {
	if cell == 0 {
		return Exclusive, 1
	}
	return cell, 0
}

func tryShared(cell uint32) (uint32, uint32) {
	if cell != Exclusive {
		return cell + 1, 1
	}
	return cell, 0
}

func unlock(cell uint32) (uint32, uint32) {
	if cell == Exclusive {
		return 0, 1
	}
	return cell - 1, 1
}

// Handle processes req the way ingress does and rewrites it into the
// response. It reports false for requests the switch forwards untouched.
func (t *Table) Handle(req *Request) (bool, error) {
	idx := int(req.Tuple.LockIdx)

	switch {
	case req.Type == wire.MsgTupleGetReq && req.Tuple.BySwitch == MarkerGet:
		req.Tuple.BySwitch += MarkerGet
		var granted uint32
		var err error
		switch req.Tuple.Mode {
		case ModeRead:
			granted, err = t.locks.Execute(idx, tryShared)
		case ModeWrite:
			granted, err = t.locks.Execute(idx, tryExclusive)
		}
		if err != nil {
			return false, err
		}
		req.Type = wire.MsgTupleGetRes
		if granted != 1 {
			req.Tuple.Mode = ModeInvalid
			req.Data = nil
			return true, nil
		}
		req.Data = make([]uint32, len(t.fields))
		for i, f := range t.fields {
			if req.Data[i], err = f.Load(idx); err != nil {
				return false, err
			}
		}
		return true, nil

	case req.Type == wire.MsgTuplePutReq && req.Tuple.BySwitch == MarkerPut:
		if _, err := t.locks.Execute(idx, unlock); err != nil {
			return false, err
		}
		if req.Tuple.Mode == ModeWrite && req.Data != nil {
			for i, f := range t.fields {
				var v uint32
				if i < len(req.Data) {
					v = req.Data[i]
				}
				if _, err := f.Execute(idx, func(uint32) (uint32, uint32) { return v, 0 }); err != nil {
					return false, err
				}
			}
			req.Data = nil
		}
		req.Type = wire.MsgTuplePutRes
		return true, nil
	}
	return false, nil
}

// LockWord returns the lock register cell of a tuple.
func (t *Table) LockWord(idx int) (uint32, error) {
	return t.locks.Load(idx)
}

var _ workload.RequestHandler = Generator{}

func parseMode(s string) (AccessMode, error) {
	switch strings.ToLower(s) {
	case "read", "shared":
		return ModeRead, nil
	case "write", "exclusive":
		return ModeWrite, nil
	case "", "invalid":
		return ModeInvalid, nil
	}
	return 0, fmt.Errorf("lock_manager: unknown mode %q", s)
}

// Serve implements workload.RequestHandler. It runs the requests in order
// against a fresh table.
func (g Generator) Serve(p workload.Params, reqs []*config.RequestSpec) ([]workload.RequestResult, error) {
	if err := g.Validate(p); err != nil {
		return nil, err
	}
	table := NewTable(p)

	results := make([]workload.RequestResult, 0, len(reqs))
	for i, spec := range reqs {
		mode, err := parseMode(spec.Mode)
		if err != nil {
			return nil, err
		}
		if spec.Key < 0 || spec.Key >= p.RegSize {
			return nil, fmt.Errorf("lock_manager: request %d: key %d out of range [0, %d)", i, spec.Key, p.RegSize)
		}
		if len(spec.Values) > p.NumRegs {
			return nil, fmt.Errorf("lock_manager: request %d: %d values exceed %d fields", i, len(spec.Values), p.NumRegs)
		}

		req := &Request{Tuple: TupleMsg{RID: uint64(i), Mode: mode, LockIdx: uint16(spec.Key)}}
		switch strings.ToLower(spec.Op) {
		case "get":
			req.Type = wire.MsgTupleGetReq
			req.Tuple.BySwitch = MarkerGet
		case "put":
			req.Type = wire.MsgTuplePutReq
			req.Tuple.BySwitch = MarkerPut
			if mode == ModeWrite {
				req.Data = make([]uint32, p.NumRegs)
				for j, v := range spec.Values {
					req.Data[j] = uint32(v)
				}
			}
		default:
			return nil, fmt.Errorf("lock_manager: request %d: unknown op %q (want get or put)", i, spec.Op)
		}

		handled, err := table.Handle(req)
		if err != nil {
			return nil, fmt.Errorf("lock_manager: request %d: %w", i, err)
		}
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("req%d", i)
		}
		results = append(results, workload.RequestResult{
			Name:    name,
			Op:      strings.ToLower(spec.Op) + "/" + mode.String(),
			Granted: handled && (req.Type == wire.MsgTuplePutRes || req.Tuple.Mode != ModeInvalid),
			Values:  req.Data,
		})
	}
	return results, nil
}
