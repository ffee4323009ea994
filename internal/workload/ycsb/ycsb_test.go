package ycsb_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/p4dbgen/internal/config"
	"github.com/vk/p4dbgen/internal/indent"
	"github.com/vk/p4dbgen/internal/switchsim"
	"github.com/vk/p4dbgen/internal/wire"
	"github.com/vk/p4dbgen/internal/workload"
	"github.com/vk/p4dbgen/internal/workload/ycsb"
)

func TestGenerator_DefaultProgram(t *testing.T) {
	t.Parallel()

	g := ycsb.Generator{}
	prog, err := g.Program(g.Defaults())
	require.NoError(t, err)

	text, err := prog.Render()
	require.NoError(t, err)

	_, depth := indent.Lines(strings.Split(text, "\n"))
	assert.Zero(t, depth, "generated program must be balanced")

	assert.Contains(t, text, "Register<bit<32>, bit<16>>(32768, 0x0101) reg_0;")
	assert.Contains(t, text, "Register<bit<32>, bit<16>>(32768, 0x1414) reg_19;")
	assert.Contains(t, text, "reg_instr_t[7] reg_skip;")
	assert.Contains(t, text, "REG_19 = 0x14,")
	assert.Contains(t, text, "InstrType_t.REG_19: parse_reg_19;")
	assert.Contains(t, text, "const bit<32> MAX_RECIRCS = 10000;")
	assert.Contains(t, text, "ig_tm_md.bypass_egress = 1;")
	assert.Contains(t, text, "EmptyEgressParser(),")
	assert.NotContains(t, text, "${")

	// 20 data registers plus try_lock, unlock and is_locked.
	assert.Equal(t, 23, strings.Count(text, "RegisterAction<"))
}

func TestGenerator_RenderIsRepeatable(t *testing.T) {
	t.Parallel()

	g := ycsb.Generator{}
	p := g.Defaults().Merge(workload.Params{NumRegs: 4, NumInstr: 3, RegSize: 128})

	first, err := workload.Render(g, p)
	require.NoError(t, err)
	second, err := workload.Render(g, p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasSuffix(first, "\n"))
	assert.Contains(t, first, "reg_instr_t[2] reg_skip;")
}

func TestGenerator_Validate(t *testing.T) {
	t.Parallel()

	base := ycsb.Generator{}.Defaults()
	testCases := []struct {
		name      string
		override  workload.Params
		wantParam string
	}{
		{name: "single register", override: workload.Params{NumRegs: 1, NumInstr: 2}, wantParam: "num_regs"},
		{name: "more instructions than registers", override: workload.Params{NumRegs: 4, NumInstr: 5}, wantParam: "num_instr"},
		{name: "no skip stack", override: workload.Params{NumInstr: 1}, wantParam: "num_instr"},
		{name: "register too large", override: workload.Params{RegSize: 1<<16 + 1}, wantParam: "reg_size"},
		{name: "too many registers", override: workload.Params{NumRegs: 200}, wantParam: "num_regs"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ycsb.Generator{}.Validate(base.Merge(tc.override))
			var perr *workload.ParamError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, tc.wantParam, perr.Param)
			assert.Equal(t, ycsb.Name, perr.Workload)
		})
	}
}

func TestWrite_NoOutputOnInvalidParams(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	loc, err := workload.Write(&sb, ycsb.Generator{}, workload.Params{NumRegs: 1})
	require.Error(t, err)
	assert.Zero(t, loc)
	assert.Empty(t, sb.String())
}

func TestStore_ReadAndWrite(t *testing.T) {
	t.Parallel()

	store := ycsb.NewStore(workload.Params{NumRegs: 2, NumInstr: 2, RegSize: 4})

	read := &switchsim.Instr{Type: ycsb.RegType(1), Op: uint8(ycsb.OpRead), Key: 2}
	require.NoError(t, store.Access(read))
	assert.Equal(t, uint32(0x0202), read.Data[0])

	write := &switchsim.Instr{Type: ycsb.RegType(1), Op: uint8(ycsb.OpWrite), Key: 2, Data: [2]uint32{99}}
	require.NoError(t, store.Access(write))
	assert.Equal(t, uint32(0x0202), write.Data[0], "write returns the previous value")

	v, err := store.Load(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), v)

	err = store.Access(&switchsim.Instr{Type: ycsb.RegType(0), Key: 4})
	assert.Error(t, err)
}

func TestSimulation_RepeatedRegisterTakesTwoPasses(t *testing.T) {
	t.Parallel()

	g := ycsb.Generator{}
	p := g.Defaults().Merge(workload.Params{NumRegs: 4, NumInstr: 4, RegSize: 16})

	acc, err := g.Accessor(p)
	require.NoError(t, err)

	var instrs []*switchsim.Instr
	for _, spec := range []*config.InstrSpec{
		{Op: "write", Reg: 1, Key: 3, Data: []int64{7}},
		{Op: "read", Reg: 1, Key: 3},
		{Op: "read", Reg: 2, Key: 0},
	} {
		in, err := g.Instr(p, spec)
		require.NoError(t, err)
		instrs = append(instrs, in)
	}

	info, err := switchsim.Prepare(acc, instrs)
	require.NoError(t, err)
	assert.True(t, info.Multipass)
	// reg 1 sits in the lower half (right lock), reg 2 in the upper half.
	assert.Equal(t, wire.LockPair{Left: 1, Right: 1}, info.Locks)

	sw := switchsim.New(acc, switchsim.Options{})
	results, err := sw.Run(context.Background(), []switchsim.Arrival{
		{Packet: &switchsim.Packet{ID: "t", Info: info, Instrs: instrs}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, switchsim.Replied, results[0].Outcome)
	assert.Equal(t, 2, results[0].Passes)
	assert.Equal(t, uint32(1), results[0].Recircs)

	// First pass: write reg 1 and read reg 2. Second pass: read reg 1.
	assert.Equal(t, uint32(0x0202), instrs[0].Data[0])
	assert.Equal(t, uint32(0x0303), instrs[1].Data[0])
	assert.Equal(t, uint32(7), instrs[2].Data[0])
	assert.False(t, sw.Lock().IsLocked())
}

func TestInstr_RejectsBadSpecs(t *testing.T) {
	t.Parallel()

	p := ycsb.Generator{}.Defaults()
	for _, spec := range []*config.InstrSpec{
		{Op: "scan", Reg: 0},
		{Op: "read", Reg: p.NumRegs},
		{Op: "read", Reg: 0, Key: 1 << 16},
		{Op: "read", Reg: 0, Key: p.RegSize},
		{Op: "read", Reg: 0, Key: -1},
	} {
		_, err := ycsb.Generator{}.Instr(p, spec)
		assert.Error(t, err, "%+v", spec)
	}
}

func TestFrame_EncodeDecode(t *testing.T) {
	t.Parallel()

	info := wire.Info{Multipass: true, Locks: wire.LockPair{Left: 1}}
	instrs := []ycsb.Instr{
		{Type: ycsb.RegType(0), Op: ycsb.OpWrite, Idx: 0x0102, Data: 0xdeadbeef},
		{Type: ycsb.RegType(0).WithStop(), Op: ycsb.OpRead, Idx: 5},
	}

	b, err := ycsb.AppendTxn(nil, info, instrs)
	require.NoError(t, err)
	require.Len(t, b, wire.InfoLen+2*ycsb.InstrLen+1)
	assert.Equal(t, []byte{0x01, 0x01, 0x01, 0x02, 0xde, 0xad, 0xbe, 0xef}, b[wire.InfoLen:wire.InfoLen+ycsb.InstrLen])
	assert.Equal(t, byte(0x81), b[wire.InfoLen+ycsb.InstrLen])
	assert.Equal(t, byte(0x80), b[len(b)-1])

	gotInfo, gotInstrs, err := ycsb.ParseTxn(b)
	require.NoError(t, err)
	assert.Equal(t, info, gotInfo)
	assert.Equal(t, instrs, gotInstrs)

	_, _, err = ycsb.ParseTxn(b[:len(b)-1])
	assert.ErrorIs(t, err, ycsb.ErrMissingTerminator)

	_, _, err = ycsb.ParseTxn(b[:wire.InfoLen+3])
	assert.ErrorIs(t, err, wire.ErrShortBuffer)
}

func TestFrame_SimRoundTripMarksSkips(t *testing.T) {
	t.Parallel()

	sim := ycsb.ToSim([]ycsb.Instr{{Type: ycsb.RegType(2), Op: ycsb.OpRead, Idx: 1}})
	sim[0].Done = true
	sim[0].Data[0] = 42

	out := ycsb.FromSim(sim)
	assert.Equal(t, []ycsb.Instr{{Type: ycsb.InstrSkip, Op: ycsb.OpRead, Idx: 1, Data: 42}}, out)
}
