package blocks_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/p4dbgen/internal/blocks"
	"github.com/vk/p4dbgen/internal/indent"
	"github.com/vk/p4dbgen/internal/tmpl"
)

func TestRegister_Defaults(t *testing.T) {
	t.Parallel()

	out, err := blocks.Register{Size: 32768, Name: "reg_0"}.Render()
	require.NoError(t, err)
	assert.Equal(t, "Register<bit<32>, bit<32>>(32768, 0) reg_0;", out)

	out, err = blocks.Register{
		Type:      "lock_pair",
		IndexType: "bit<1>",
		Size:      1,
		Default:   "{0, 0}",
		Name:      "switch_lock",
	}.Render()
	require.NoError(t, err)
	assert.Equal(t, "Register<lock_pair, bit<1>>(1, {0, 0}) switch_lock;", out)
}

func TestRegister_MissingSize(t *testing.T) {
	t.Parallel()

	_, err := blocks.Register{Name: "r"}.Render()
	require.Error(t, err)
	assert.True(t, errors.Is(err, tmpl.ErrUnresolvedPlaceholder))
}

func TestRegisterAction_RendersBodyAndTypes(t *testing.T) {
	t.Parallel()

	out, err := blocks.RegisterAction{
		IndexType: "bit<16>",
		Register:  "reg_3",
		Name:      "reg_3_access",
		Body:      tmpl.New("rv = value;", nil),
	}.Render()
	require.NoError(t, err)

	lines, depth := indent.Lines(strings.Split(out, "\n"))
	assert.Zero(t, depth)
	assert.Equal(t, []string{
		"RegisterAction<bit<32>, bit<16>, bit<32>>(reg_3) reg_3_access = {",
		"    void apply(inout bit<32> value, out bit<32> rv) {",
		"        rv = value;",
		"    }",
		"};",
	}, lines)
}

func TestProgram_EmptyEgress(t *testing.T) {
	t.Parallel()

	out, err := blocks.Program{
		Headers: blocks.EthernetHeaders(),
		Utils:   blocks.Utils(true),
		Parser:  "// parser",
		Ingress: "// ingress",
	}.Render()
	require.NoError(t, err)

	assert.Contains(t, out, "EmptyEgressParser(),")
	assert.Contains(t, out, "control EmptyEgress(")
	assert.Contains(t, out, "SWITCH_TXN = 0x05000000\n")
	assert.Contains(t, out, "INIT = 0x01000100,")
	assert.NotContains(t, out, "EGRESS HEADERS")

	_, depth := indent.Lines(strings.Split(out, "\n"))
	assert.Zero(t, depth)
}

func TestProgram_WithEgress(t *testing.T) {
	t.Parallel()

	out, err := blocks.Program{
		Headers: "",
		Utils:   blocks.Utils(false),
		Parser:  "",
		Ingress: "",
		Egress: &blocks.Egress{
			Headers: "// eh",
			Parser:  "// ep",
			Control: "// ec",
		},
	}.Render()
	require.NoError(t, err)

	assert.Contains(t, out, "// EGRESS HEADERS")
	assert.Contains(t, out, "    EgressParser(),")
	assert.NotContains(t, out, "EmptyEgress")
}

func TestRecirculationActions(t *testing.T) {
	t.Parallel()

	withInfo, err := blocks.RecirculationActions(true).Render()
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(withInfo, "hdr.info.recircs = hdr.info.recircs + 1;"))
	assert.Contains(t, withInfo, "ig_tm_md.ucast_egress_port = 156;")

	without, err := blocks.RecirculationActions(false).Render()
	require.NoError(t, err)
	assert.NotContains(t, without, "hdr.info")
	assert.NotContains(t, without, "recirculate_fast")
}
