package tmpl_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/p4dbgen/internal/tmpl"
	"github.com/zclconf/go-cty/cty"
)

func TestRender_BoundValueWinsOverDefault(t *testing.T) {
	t.Parallel()

	n := tmpl.New(`Register<${type="bit<32>"}>(${size}) ${name};`, tmpl.Bindings{
		"type": "lock_pair",
		"size": 1,
		"name": "switch_lock",
	})

	out, err := n.Render()
	require.NoError(t, err)
	assert.Equal(t, "Register<lock_pair>(1) switch_lock;", out)
}

func TestRender_DefaultFallbackEquivalence(t *testing.T) {
	t.Parallel()

	body := `Register<${type="bit<32>"}, ${idx="bit<32>"}>(${size}, ${default_val=0}) ${name};`

	withDefaults, err := tmpl.New(body, tmpl.Bindings{"size": 16, "name": "r"}).Render()
	require.NoError(t, err)

	explicit, err := tmpl.New(body, tmpl.Bindings{
		"type":        "bit<32>",
		"idx":         "bit<32>",
		"size":        16,
		"default_val": 0,
		"name":        "r",
	}).Render()
	require.NoError(t, err)

	assert.Equal(t, explicit, withDefaults)
	assert.Equal(t, "Register<bit<32>, bit<32>>(16, 0) r;", withDefaults)
}

func TestRender_IsIdempotent(t *testing.T) {
	t.Parallel()

	seq := tmpl.Range(3, func(i int) any { return fmt.Sprintf("REG_%d = 0x%02x,", i, i+1) })
	n := tmpl.New(`
		enum bit<8> InstrType_t {
		    ${types}
		}
	`, tmpl.Bindings{"types": seq})

	first, err := n.Render()
	require.NoError(t, err)
	second, err := n.Render()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "enum bit<8> InstrType_t {\n    REG_0 = 0x01,\nREG_1 = 0x02,\nREG_2 = 0x03,\n}", first)
}

func TestRender_EachOccurrenceResolvedIndependently(t *testing.T) {
	t.Parallel()

	n := tmpl.New(`inout ${in_type="bit<32>"} value; ${in_type="bit<32>"} copy;`, nil)
	out, err := n.Render()
	require.NoError(t, err)
	assert.Equal(t, "inout bit<32> value; bit<32> copy;", out)

	out, err = n.With(tmpl.Bindings{"in_type": "lock_pair"}).Render()
	require.NoError(t, err)
	assert.Equal(t, "inout lock_pair value; lock_pair copy;", out)
}

func TestRender_NestedNodesRenderFirst(t *testing.T) {
	t.Parallel()

	inner := tmpl.New(`rv = ${what};`, tmpl.Bindings{"what": "value"})
	outer := tmpl.New(`
		void apply() {
		    ${body}
		}
	`, tmpl.Bindings{"body": inner})

	out, err := outer.Render()
	require.NoError(t, err)
	assert.Equal(t, "void apply() {\n    rv = value;\n}", out)
}

func TestRender_UnresolvedPlaceholder(t *testing.T) {
	t.Parallel()

	n := tmpl.New(`Register(${size}) ${name};`, tmpl.Bindings{"name": "r"})
	out, err := n.Render()

	require.Error(t, err)
	assert.Empty(t, out, "no partial output on failure")
	assert.True(t, errors.Is(err, tmpl.ErrUnresolvedPlaceholder))

	var unresolved *tmpl.UnresolvedPlaceholderError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "size", unresolved.Name)
}

func TestRender_UnresolvedInsideNestedNode(t *testing.T) {
	t.Parallel()

	inner := tmpl.New(`${missing}`, nil)
	outer := tmpl.New(`a ${child} b`, tmpl.Bindings{"child": tmpl.Lines("ok", inner)})

	_, err := outer.Render()
	require.Error(t, err)

	var unresolved *tmpl.UnresolvedPlaceholderError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "missing", unresolved.Name)
	assert.Contains(t, err.Error(), "rendering ${child}")
}

func TestRender_InvalidDefault(t *testing.T) {
	t.Parallel()

	_, err := tmpl.New(`${x=bit<32>}`, nil).Render()
	require.Error(t, err)

	var invalid *tmpl.InvalidDefaultError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "x", invalid.Name)
}

func TestText_Values(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "int", in: 42, want: "42"},
		{name: "bool", in: true, want: "true"},
		{name: "cty number", in: cty.NumberIntVal(32768), want: "32768"},
		{name: "cty fraction", in: cty.NumberFloatVal(1.5), want: "1.5"},
		{name: "cty string", in: cty.StringVal("{0, 0}"), want: "{0, 0}"},
		{name: "string slice", in: []string{"a;", "b;"}, want: "a;\nb;"},
		{name: "concat", in: tmpl.Concat(tmpl.Lines("x"), tmpl.Lines("y", 1)), want: "x\ny\n1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tmpl.Text(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	ps := tmpl.Placeholders(`${a} and ${b="x"} and ${a}`)
	require.Len(t, ps, 3)

	assert.Equal(t, "a", ps[0].Name)
	assert.False(t, ps[0].HasDefault)
	assert.Equal(t, "b", ps[1].Name)
	assert.True(t, ps[1].HasDefault)
	assert.Equal(t, `"x"`, ps[1].Default)
	assert.Equal(t, 9, ps[1].Start)
	assert.Equal(t, "a", ps[2].Name)
}

func TestNew_Dedent(t *testing.T) {
	t.Parallel()

	n := tmpl.New(`
		header msg_t {
		    bit<16> padding;

		    node_t sender;
		}
	`, nil)

	assert.Equal(t, "header msg_t {\n    bit<16> padding;\n\n    node_t sender;\n}", n.Body())
}
