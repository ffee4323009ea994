package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot is used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Targets   []*Target   `hcl:"target,block"`
	Scenarios []*Scenario `hcl:"scenario,block"`
	Remain    hcl.Body    `hcl:",remain"`
}

// Target maps a `target "name" { ... }` block.
type Target struct {
	Name       string `hcl:"name,label"`
	Workload   string `hcl:"workload"`
	Output     string `hcl:"output,optional"`
	NumRegs    int    `hcl:"num_regs,optional"`
	NumInstr   int    `hcl:"num_instr,optional"`
	RegSize    int    `hcl:"reg_size,optional"`
	MaxRecircs int64  `hcl:"max_recircs,optional"`
}

// Scenario maps a `scenario "name" { ... }` block.
type Scenario struct {
	Name          string     `hcl:"name,label"`
	Workload      string     `hcl:"workload"`
	NumRegs       int        `hcl:"num_regs,optional"`
	NumInstr      int        `hcl:"num_instr,optional"`
	RegSize       int        `hcl:"reg_size,optional"`
	MaxRecircs    int64      `hcl:"max_recircs,optional"`
	RecircLatency int        `hcl:"recirc_latency,optional"`
	Txns          []*Txn     `hcl:"txn,block"`
	Requests      []*Request `hcl:"request,block"`
}

// Txn maps a `txn "name" { ... }` block inside a scenario.
type Txn struct {
	Name      string         `hcl:"name,label"`
	At        int            `hcl:"at,optional"`
	Locks     hcl.Expression `hcl:"locks,optional"`
	Multipass *bool          `hcl:"multipass,optional"`
	Instrs    []*Instr       `hcl:"instr,block"`
}

// Instr maps an `instr { ... }` block inside a txn.
type Instr struct {
	Op   string  `hcl:"op"`
	Reg  int     `hcl:"reg,optional"`
	Key  int     `hcl:"key,optional"`
	Key2 int     `hcl:"key2,optional"`
	Data []int64 `hcl:"data,optional"`
	Stop bool    `hcl:"stop,optional"`
}

// Request maps a `request "name" { ... }` block inside a scenario.
type Request struct {
	Name   string  `hcl:"name,label"`
	Op     string  `hcl:"op"`
	Mode   string  `hcl:"mode,optional"`
	Key    int     `hcl:"key,optional"`
	Values []int64 `hcl:"values,optional"`
}
