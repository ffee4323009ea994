package workload_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/p4dbgen/internal/tmpl"
	"github.com/vk/p4dbgen/internal/workload"
)

// nested renders one brace block per register.
type nested struct{}

func (nested) Name() string { return "nested" }
func (nested) Defaults() workload.Params {
	return workload.Params{NumRegs: 2, RegSize: 4, MaxRecircs: 1, NumInstr: 2}
}
func (nested) Validate(p workload.Params) error { return workload.ValidateProtocol("nested", p, true) }
func (nested) Program(p workload.Params) (*tmpl.Node, error) {
	return tmpl.New(`
control C {
${blocks}
}`, tmpl.Bindings{"blocks": tmpl.Range(p.NumRegs, func(i int) any {
		return tmpl.New("apply {\nreg_${i}.execute(${size});\n}", tmpl.Bindings{"i": i, "size": p.RegSize})
	})}), nil
}

// unresolved leaves a placeholder without a value or default.
type unresolved struct{ nested }

func (unresolved) Program(workload.Params) (*tmpl.Node, error) {
	return tmpl.New("control C {\n${missing}\n}", nil), nil
}

func TestParams_Merge(t *testing.T) {
	t.Parallel()

	base := workload.Params{NumRegs: 10, NumInstr: 15, RegSize: 100, MaxRecircs: 7}
	got := base.Merge(workload.Params{NumRegs: 3, MaxRecircs: 9})
	assert.Equal(t, workload.Params{NumRegs: 3, NumInstr: 15, RegSize: 100, MaxRecircs: 9}, got)
	assert.Equal(t, base, base.Merge(workload.Params{}))
}

func TestValidateProtocol(t *testing.T) {
	t.Parallel()

	ok := nested{}.Defaults()
	testCases := []struct {
		name      string
		p         workload.Params
		needs     bool
		wantParam string
	}{
		{name: "valid", p: ok, needs: true},
		{name: "no registers", p: workload.Params{RegSize: 4, MaxRecircs: 1}, wantParam: "num_regs"},
		{name: "empty register", p: workload.Params{NumRegs: 1, MaxRecircs: 1}, wantParam: "reg_size"},
		{name: "unbounded recirculation", p: workload.Params{NumRegs: 1, RegSize: 4}, wantParam: "max_recircs"},
		{name: "single instruction with skip stack", p: workload.Params{NumRegs: 1, RegSize: 4, MaxRecircs: 1, NumInstr: 1}, needs: true, wantParam: "num_instr"},
		{name: "single instruction without skip stack", p: workload.Params{NumRegs: 1, RegSize: 4, MaxRecircs: 1, NumInstr: 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := workload.ValidateProtocol("w", tc.p, tc.needs)
			if tc.wantParam == "" {
				assert.NoError(t, err)
				return
			}
			var pe *workload.ParamError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.wantParam, pe.Param)
			assert.Equal(t, "w", pe.Workload)
		})
	}
}

func TestRender_FormatsOutput(t *testing.T) {
	t.Parallel()

	text, err := workload.Render(nested{}, nested{}.Defaults())
	require.NoError(t, err)
	assert.Equal(t, "control C {\n"+
		"    apply {\n"+
		"        reg_0.execute(4);\n"+
		"    }\n"+
		"    apply {\n"+
		"        reg_1.execute(4);\n"+
		"    }\n"+
		"}\n", text)
}

func TestWrite(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	loc, err := workload.Write(&buf, nested{}, nested{}.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 9, loc)
	assert.Equal(t, 8, bytes.Count(buf.Bytes(), []byte("\n")))

	text, err := workload.Render(nested{}, nested{}.Defaults())
	require.NoError(t, err)
	assert.Equal(t, text, buf.String())
}

func TestWrite_NothingOnError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := workload.Write(&buf, unresolved{}, nested{}.Defaults())
	assert.True(t, errors.Is(err, tmpl.ErrUnresolvedPlaceholder), "got %v", err)
	assert.Zero(t, buf.Len())

	_, err = workload.Write(&buf, nested{}, workload.Params{})
	var pe *workload.ParamError
	assert.ErrorAs(t, err, &pe)
	assert.Zero(t, buf.Len())
}
