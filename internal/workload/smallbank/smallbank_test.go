package smallbank_test

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
	"github.com/vk/p4dbgen/internal/workload/smallbank"
)

func TestGenerator_DefaultProgram(t *testing.T) {
	t.Parallel()

	g := smallbank.Generator{}
	prog, err := g.Program(g.Defaults())
	require.NoError(t, err)

	text, err := prog.Render()
	require.NoError(t, err)

	_, depth := indent.Lines(strings.Split(text, "\n"))
	assert.Zero(t, depth, "generated program must be balanced")

	for _, want := range []string{
		"BALANCE_0 = 0x00,",
		"DEPOSIT_CHECKING_9 = 0x19,",
		"AMALGAMATE_9 = 0x39,",
		"ABORT = 0x80,",
		"deposit_checking_t deposit_checking_skip;",
		"InstrType_t.SKIP &&& InstrType_t.SKIP: parse_deposit_checking_skip;  // if SKIP_BIT is set",
		"InstrType_t.TRANSACT_SAVING_3: parse_transact_saving_3;",
		"Register<bit<32>, bit<16>>(8192, 0x00000010) reg_saving_0;",
		"Register<bit<32>, bit<16>>(8192, 0x00000020) reg_checking_9;",
		"control Egress(",
		"EgressParser(),",
		"EgressDeparser()",
	} {
		assert.Contains(t, text, want)
	}
	assert.NotContains(t, text, "bypass_egress")
	assert.NotContains(t, text, "EmptyEgress")

	// Six actions per partition plus the three lock actions.
	assert.Equal(t, 63, strings.Count(text, "RegisterAction<"))
}

func TestGenerator_Validate(t *testing.T) {
	t.Parallel()

	g := smallbank.Generator{}
	require.NoError(t, g.Validate(g.Defaults()))

	err := g.Validate(g.Defaults().Merge(workload.Params{NumRegs: 17}))
	var perr *workload.ParamError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "num_regs", perr.Param)
}

func TestBank_Operations(t *testing.T) {
	t.Parallel()

	bank := smallbank.NewBank(workload.Params{NumRegs: 2, RegSize: 4})

	transact := &switchsim.Instr{Type: smallbank.Type(smallbank.TransactSaving, 1), Key: 2, Data: [2]uint32{uint32(0xffffffe0)}}
	require.NoError(t, bank.Access(transact))
	assert.Equal(t, smallbank.TransactFailed, transact.Data[0], "saving must not go negative")

	transact = &switchsim.Instr{Type: smallbank.Type(smallbank.TransactSaving, 1), Key: 2, Data: [2]uint32{uint32(0xfffffff0)}}
	require.NoError(t, bank.Access(transact))
	assert.Zero(t, transact.Data[0])

	deposit := &switchsim.Instr{Type: smallbank.Type(smallbank.DepositChecking, 1), Key: 2, Data: [2]uint32{5}}
	require.NoError(t, bank.Access(deposit))
	assert.Equal(t, uint32(0x25), deposit.Data[0])

	balance := &switchsim.Instr{Type: smallbank.Type(smallbank.Balance, 1), Key: 2}
	require.NoError(t, bank.Access(balance))
	assert.Equal(t, [2]uint32{0, 0x25}, balance.Data)

	amalgamate := &switchsim.Instr{Type: smallbank.Type(smallbank.Amalgamate, 0), Key: 0}
	require.NoError(t, bank.Access(amalgamate))
	assert.Equal(t, [2]uint32{smallbank.DefaultSaving, smallbank.DefaultChecking}, amalgamate.Data)

	saving, checking, err := bank.Balances(0, 0)
	require.NoError(t, err)
	assert.Zero(t, saving)
	assert.Zero(t, checking)

	err = bank.Access(&switchsim.Instr{Type: smallbank.Type(smallbank.Balance, 1), Key: 4})
	assert.Error(t, err)
}

func TestSimulation_SkipCapacity(t *testing.T) {
	t.Parallel()

	g := smallbank.Generator{}
	p := g.Defaults().Merge(workload.Params{NumRegs: 2, RegSize: 8})

	build := func(specs ...*config.InstrSpec) *switchsim.Packet {
		acc, err := g.Accessor(p)
		require.NoError(t, err)
		var instrs []*switchsim.Instr
		for _, spec := range specs {
			in, err := g.Instr(p, spec)
			require.NoError(t, err)
			instrs = append(instrs, in)
		}
		info, err := switchsim.Prepare(acc, instrs)
		require.NoError(t, err)
		return &switchsim.Packet{ID: "t", Info: info, Instrs: instrs}
	}

	t.Run("two passes fit", func(t *testing.T) {
		acc, err := g.Accessor(p)
		require.NoError(t, err)
		pkt := build(
			&config.InstrSpec{Op: "deposit_checking", Reg: 0, Key: 1, Data: []int64{10}},
			&config.InstrSpec{Op: "balance", Reg: 0, Key: 1},
		)
		sw := switchsim.New(acc, switchsim.Options{})
		results, err := sw.Run(context.Background(), []switchsim.Arrival{{Packet: pkt}})
		require.NoError(t, err)
		assert.Equal(t, switchsim.Replied, results[0].Outcome)
		assert.Equal(t, [2]uint32{smallbank.DefaultSaving, smallbank.DefaultChecking + 10}, pkt.Instrs[1].Data)
	})

	t.Run("third pass is rejected before it enters the switch", func(t *testing.T) {
		acc, err := g.Accessor(p)
		require.NoError(t, err)
		var instrs []*switchsim.Instr
		for _, spec := range []*config.InstrSpec{
			{Op: "deposit_checking", Reg: 0, Key: 1, Data: []int64{1}},
			{Op: "deposit_checking", Reg: 0, Key: 1, Data: []int64{1}},
			{Op: "balance", Reg: 0, Key: 1},
		} {
			in, err := g.Instr(p, spec)
			require.NoError(t, err)
			instrs = append(instrs, in)
		}
		_, err = switchsim.Prepare(acc, instrs)
		assert.ErrorIs(t, err, switchsim.ErrParserReject)
	})
}

func TestSimulation_RejectedLockHolderReleasesLock(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	g := smallbank.Generator{}
	p := g.Defaults().Merge(workload.Params{RegSize: 4, MaxRecircs: 50})
	acc, err := g.Accessor(p)
	require.NoError(t, err)
	sw := switchsim.New(acc, switchsim.Options{MaxRecircs: p.MaxRecircs})

	// A customer beyond the register bypasses Instr validation here.
	holder := &switchsim.Packet{
		ID:   "holder",
		Info: wire.Info{Multipass: true, Locks: wire.LockPair{Left: 1, Right: 1}},
		Instrs: []*switchsim.Instr{
			{Type: smallbank.Type(smallbank.DepositChecking, 0), Key: 9, Data: [2]uint32{1}},
			{Type: smallbank.Type(smallbank.Balance, 0).WithStop(), Key: 1},
		},
	}
	in, err := g.Instr(p, &config.InstrSpec{Op: "deposit_checking", Reg: 0, Key: 1, Data: []int64{5}})
	require.NoError(t, err)
	next := &switchsim.Packet{ID: "next", Instrs: []*switchsim.Instr{in}}

	// --- Act ---
	results, err := sw.Run(context.Background(), []switchsim.Arrival{
		{Packet: holder},
		{At: 5, Packet: next},
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, switchsim.Rejected, results[0].Outcome)
	assert.Error(t, results[0].Err)
	assert.Equal(t, switchsim.Replied, results[1].Outcome)
	assert.Zero(t, results[1].Recircs)
	assert.Equal(t, wire.LockPair{}, sw.Lock().Held())
}

func TestInstr_RejectsCustomerBeyondRegister(t *testing.T) {
	t.Parallel()

	g := smallbank.Generator{}
	p := g.Defaults().Merge(workload.Params{RegSize: 4})

	_, err := g.Instr(p, &config.InstrSpec{Op: "balance", Reg: 0, Key: 3})
	assert.NoError(t, err)
	_, err = g.Instr(p, &config.InstrSpec{Op: "balance", Reg: 0, Key: 4})
	assert.ErrorContains(t, err, "customer 4 out of range [0, 4)")
}

func TestInstr_Encoding(t *testing.T) {
	t.Parallel()

	g := smallbank.Generator{}
	p := g.Defaults()

	in, err := g.Instr(p, &config.InstrSpec{Op: "Transact_Saving", Reg: 3, Key: 9, Data: []int64{-4}})
	require.NoError(t, err)
	assert.Equal(t, smallbank.Type(smallbank.TransactSaving, 3), in.Type)
	assert.Equal(t, uint32(0xfffffffc), in.Data[0])

	_, err = g.Instr(p, &config.InstrSpec{Op: "send_payment"})
	assert.Error(t, err)
}
