package protocol_test

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/p4dbgen/internal/indent"
	"github.com/vk/p4dbgen/internal/protocol"
	"github.com/vk/p4dbgen/internal/wire"
)

var (
	left  = wire.LockPair{Left: 1}
	right = wire.LockPair{Right: 1}
	both  = wire.LockPair{Left: 1, Right: 1}
)

func TestTryLock(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		cell    wire.LockPair
		req     wire.LockPair
		granted bool
		after   wire.LockPair
	}{
		{name: "free left", cell: wire.LockPair{}, req: left, granted: true, after: left},
		{name: "held left", cell: left, req: left, granted: false, after: left},
		{name: "disjoint partitions", cell: left, req: right, granted: true, after: both},
		{name: "both against one", cell: right, req: both, granted: false, after: right},
		{name: "empty request", cell: both, req: wire.LockPair{}, granted: true, after: both},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			after, ok := protocol.TryLock(tc.cell, tc.req)
			assert.Equal(t, tc.granted, ok)
			assert.Equal(t, tc.after, after)
		})
	}
}

func TestUnlockAndIsLocked(t *testing.T) {
	t.Parallel()

	cell := protocol.Unlock(both, left)
	assert.Equal(t, right, cell)
	assert.True(t, protocol.IsLocked(cell))
	assert.False(t, protocol.IsLocked(protocol.Unlock(cell, right)))
}

func TestSwitchLock_MutualExclusion(t *testing.T) {
	t.Parallel()

	lk := protocol.NewSwitchLock()
	var holders [2]atomic.Int32
	var wg sync.WaitGroup

	for g := range 16 {
		req := left
		side := 0
		if g%2 == 1 {
			req = right
			side = 1
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for acquired := 0; acquired < 200; {
				if !lk.TryLock(req) {
					continue
				}
				acquired++
				n := holders[side].Add(1)
				assert.Equal(t, int32(1), n, "two holders on the same partition")
				holders[side].Add(-1)
				lk.Unlock(req)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, wire.LockPair{}, lk.Held())
}

func TestStep_SinglePassOnFreeLock(t *testing.T) {
	t.Parallel()

	lk := protocol.NewSwitchLock()
	info := wire.Info{Locks: left}

	v := protocol.Step(&info, true, lk, protocol.DefaultMaxRecircs)

	assert.True(t, v.Access)
	assert.True(t, v.Reply)
	assert.False(t, v.Recirculate)
	assert.Zero(t, info.Recircs)
	assert.Equal(t, protocol.Unlocked, v.From)
	assert.Equal(t, protocol.Done, v.To)
}

func TestStep_SinglePassWaitsForHolder(t *testing.T) {
	t.Parallel()

	lk := protocol.NewSwitchLock()
	require.True(t, lk.TryLock(right))

	info := wire.Info{}
	v := protocol.Step(&info, true, lk, protocol.DefaultMaxRecircs)
	assert.False(t, v.Access)
	assert.True(t, v.Recirculate)
	assert.Equal(t, uint32(1), info.Recircs)
	assert.Equal(t, protocol.LockPending, v.To)

	lk.Unlock(right)
	v = protocol.Step(&info, true, lk, protocol.DefaultMaxRecircs)
	assert.True(t, v.Access)
	assert.True(t, v.Reply)
	assert.Equal(t, uint32(1), info.Recircs)
}

func TestStep_TwoConflictingTransactions(t *testing.T) {
	t.Parallel()

	lk := protocol.NewSwitchLock()
	a := wire.Info{Multipass: true, Locks: left}
	b := wire.Info{Multipass: true, Locks: left}

	va := protocol.Step(&a, false, lk, protocol.DefaultMaxRecircs)
	require.True(t, va.Access)
	require.True(t, va.ClearNextStop)
	require.True(t, a.HasLock)
	assert.Equal(t, protocol.Locked, va.To)

	vb := protocol.Step(&b, false, lk, protocol.DefaultMaxRecircs)
	assert.False(t, vb.Access)
	assert.True(t, vb.Recirculate)
	assert.False(t, b.HasLock)
	assert.Equal(t, protocol.LockPending, vb.To)

	va = protocol.Step(&a, true, lk, protocol.DefaultMaxRecircs)
	assert.Equal(t, protocol.Unlocking, va.From)
	assert.True(t, va.Reply)
	assert.False(t, a.HasLock)
	assert.False(t, lk.IsLocked())

	vb = protocol.Step(&b, false, lk, protocol.DefaultMaxRecircs)
	assert.True(t, vb.Access)
	assert.True(t, b.HasLock)
	assert.Equal(t, protocol.LockPending, vb.From)
}

func TestStep_BoundedProgressAfterAcquisition(t *testing.T) {
	t.Parallel()

	const batches = 8
	lk := protocol.NewSwitchLock()
	info := wire.Info{Multipass: true, Locks: both}

	for i := 0; ; i++ {
		require.Less(t, i, batches, "transaction did not finish within its batch count")
		v := protocol.Step(&info, i == batches-1, lk, protocol.DefaultMaxRecircs)
		require.True(t, v.Access)
		if v.Reply {
			break
		}
	}
	assert.LessOrEqual(t, info.Recircs, uint32(batches))
	assert.False(t, lk.IsLocked())
}

func TestStep_AbortsAtRecircBound(t *testing.T) {
	t.Parallel()

	lk := protocol.NewSwitchLock()
	require.True(t, lk.TryLock(left))

	info := wire.Info{Multipass: true, Locks: left}
	var v protocol.Verdict
	for range 4 {
		v = protocol.Step(&info, false, lk, 3)
		if v.Reply {
			break
		}
	}

	assert.True(t, v.Aborted)
	assert.True(t, info.Aborted)
	assert.False(t, v.Access)
	assert.Equal(t, uint32(3), info.Recircs)
	assert.Equal(t, left, lk.Held(), "aborted transaction must not touch the lock")
}

func TestIngress_Codegen(t *testing.T) {
	t.Parallel()

	out, err := protocol.Ingress(protocol.IngressOptions{
		BypassEgress: true,
		Registers:    "// registers",
		Access:       "// access",
	}).Render()
	require.NoError(t, err)

	for _, want := range []string{
		"if (hdr.info.isValid()) {",
		"ig_tm_md.bypass_egress = 1;",
		"Register<lock_pair, bit<1>>(1, {0, 0}) switch_lock;",
		"RegisterAction<lock_pair, bit<1>, bit<1>>(switch_lock) try_lock = {",
		"RegisterAction<lock_pair, bit<1>, bit<1>>(switch_lock) unlock = {",
		"RegisterAction<lock_pair, bit<1>, bit<1>>(switch_lock) is_locked = {",
		"if (hdr.info.recircs >= MAX_RECIRCS) {",
		"recirculate(68);",
		"recirculate_fast();",
	} {
		assert.Contains(t, out, want)
	}

	_, depth := indent.Lines(strings.Split(out, "\n"))
	assert.Zero(t, depth)
}

func TestParser_SkipModes(t *testing.T) {
	t.Parallel()

	routes := []protocol.Route{{Type: "REG_0", Header: "reg_0"}}

	stack, err := protocol.Parser(wire.EtherType, protocol.ParserOptions{
		Skip: protocol.SkipStack, SkipHeader: "reg_skip", Routes: routes,
	}).Render()
	require.NoError(t, err)
	assert.Contains(t, stack, "pkt.extract(hdr.reg_skip.next);")
	assert.Contains(t, stack, "InstrType_t.REG_0: parse_reg_0;")
	assert.Contains(t, stack, "0x1000: parse_msg;")
	assert.Contains(t, stack, "parser_prio.set(7);")

	bit, err := protocol.Parser(wire.EtherType, protocol.ParserOptions{
		Skip: protocol.SkipBit, SkipHeader: "deposit_checking_skip", Routes: routes,
	}).Render()
	require.NoError(t, err)
	assert.NotContains(t, bit, "parse_skips")
	assert.Contains(t, bit, "InstrType_t.SKIP &&& InstrType_t.SKIP: parse_deposit_checking_skip;")
	assert.Contains(t, bit, "pkt.extract(hdr.deposit_checking_skip);")

	for _, out := range []string{stack, bit} {
		_, depth := indent.Lines(strings.Split(out, "\n"))
		assert.Zero(t, depth)
	}
}
