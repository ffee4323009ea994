package switchsim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/p4dbgen/internal/switchsim"
	"github.com/vk/p4dbgen/internal/wire"
)

// layoutAccessor puts classes below 4 in the left lock half.
type layoutAccessor struct {
	fakeAccessor
}

func (l *layoutAccessor) LockFor(class int) wire.LockPair {
	if class < 4 {
		return wire.LockPair{Left: 1}
	}
	return wire.LockPair{Right: 1}
}

func types(instrs []*switchsim.Instr) []wire.InstrType {
	out := make([]wire.InstrType, len(instrs))
	for i, in := range instrs {
		out[i] = in.Type
	}
	return out
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	stop := func(t wire.InstrType) wire.InstrType { return t.WithStop() }

	testCases := []struct {
		name      string
		acc       switchsim.Accessor
		in        []wire.InstrType
		wantTypes []wire.InstrType
		wantInfo  wire.Info
	}{
		{
			name:      "distinct classes sort into one pass",
			acc:       &fakeAccessor{capacity: 8},
			in:        []wire.InstrType{3, 1, 2},
			wantTypes: []wire.InstrType{1, 2, 3},
			wantInfo:  wire.Info{},
		},
		{
			name:      "repeated class starts a second pass",
			acc:       &fakeAccessor{capacity: 8},
			in:        []wire.InstrType{2, 1, 2},
			wantTypes: []wire.InstrType{1, 2, stop(2)},
			wantInfo:  wire.Info{Multipass: true, Locks: wire.LockPair{Left: 1, Right: 1}},
		},
		{
			name:      "explicit stops keep the given order",
			acc:       &fakeAccessor{capacity: 8},
			in:        []wire.InstrType{3, stop(1), 2, 1},
			wantTypes: []wire.InstrType{3, stop(1), 2, stop(1)},
			wantInfo:  wire.Info{Multipass: true, Locks: wire.LockPair{Left: 1, Right: 1}},
		},
		{
			name:      "leading stop is cleared",
			acc:       &fakeAccessor{capacity: 8},
			in:        []wire.InstrType{stop(1), 2},
			wantTypes: []wire.InstrType{1, 2},
			wantInfo:  wire.Info{},
		},
		{
			name:      "layout narrows the lock",
			acc:       &layoutAccessor{fakeAccessor{capacity: 8}},
			in:        []wire.InstrType{1, 2, 1},
			wantTypes: []wire.InstrType{1, 2, stop(1)},
			wantInfo:  wire.Info{Multipass: true, Locks: wire.LockPair{Left: 1}},
		},
		{
			name:      "layout spanning both halves",
			acc:       &layoutAccessor{fakeAccessor{capacity: 8}},
			in:        []wire.InstrType{5, 1, 5},
			wantTypes: []wire.InstrType{1, 5, stop(5)},
			wantInfo:  wire.Info{Multipass: true, Locks: wire.LockPair{Left: 1, Right: 1}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			instrs := make([]*switchsim.Instr, len(tc.in))
			for i, typ := range tc.in {
				instrs[i] = instr(typ, uint16(i))
			}

			info, err := switchsim.Prepare(tc.acc, instrs)
			require.NoError(t, err)
			assert.Equal(t, tc.wantInfo, info)
			assert.Equal(t, tc.wantTypes, types(instrs))
		})
	}
}

func TestPrepare_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := switchsim.Prepare(&fakeAccessor{}, []*switchsim.Instr{instr(0x20, 0)})
	assert.ErrorIs(t, err, switchsim.ErrParserReject)
}

func TestPrepare_SkipCapacity(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		capacity int
		in       []wire.InstrType
		wantErr  bool
	}{
		{name: "second pass skips one", capacity: 1, in: []wire.InstrType{1, 1}},
		{name: "third pass skips two", capacity: 1, in: []wire.InstrType{1, 1, 1}, wantErr: true},
		{name: "wide first batch", capacity: 1, in: []wire.InstrType{1, 2, 1}, wantErr: true},
		{name: "single pass needs no skips", capacity: 0, in: []wire.InstrType{1, 2, 3}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			instrs := make([]*switchsim.Instr, len(tc.in))
			for i, typ := range tc.in {
				instrs[i] = instr(typ, uint16(i))
			}

			_, err := switchsim.Prepare(&fakeAccessor{capacity: tc.capacity}, instrs)
			if tc.wantErr {
				assert.ErrorIs(t, err, switchsim.ErrParserReject)
				return
			}
			assert.NoError(t, err)
		})
	}
}
