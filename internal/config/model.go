package config

// Model is the unified, format-agnostic representation of the entire
// application configuration.
type Model struct {
	Targets   []*Target
	Scenarios []*Scenario
}

// Params are the optional build parameters of a target or scenario. Zero
// values fall back to the workload defaults.
type Params struct {
	NumRegs    int
	NumInstr   int
	RegSize    int
	MaxRecircs uint32
}

// Target is the format-agnostic representation of a `target` block: one
// pipeline to generate.
type Target struct {
	Name     string
	Workload string
	Output   string
	Params   Params
}

// Scenario is the format-agnostic representation of a `scenario` block: a
// set of transactions or tuple requests to run through the pipeline model.
type Scenario struct {
	Name          string
	Workload      string
	Params        Params
	RecircLatency int
	Txns          []*TxnSpec
	Requests      []*RequestSpec
}

// LockSpec selects the switch lock halves a transaction acquires.
type LockSpec struct {
	Left  uint8
	Right uint8
}

// TxnSpec is one transaction of a scenario.
type TxnSpec struct {
	Name string
	// At is the tick the transaction arrives at the switch.
	At int
	// Locks overrides the lock halves derived from the instructions.
	Locks *LockSpec
	// Multipass overrides the multipass flag derived from the instructions.
	Multipass *bool
	Instrs    []*InstrSpec
}

// InstrSpec is one instruction. Op names a workload instruction type, Reg
// selects the register or partition and the remaining fields carry the
// workload-specific operands.
type InstrSpec struct {
	Op   string
	Reg  int
	Key  int
	Key2 int
	Data []int64
	// Stop forces a stop bit, starting a new batch at this instruction.
	Stop bool
}

// RequestSpec is a single tuple request for the lock manager pipeline.
type RequestSpec struct {
	Name   string
	Op     string
	Mode   string
	Key    int
	Values []int64
}
