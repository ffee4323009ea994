package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/vk/p4dbgen/internal/app"
	"github.com/vk/p4dbgen/internal/workload"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("p4dbgen", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
p4dbgen - Generates Tofino pipelines for in-network transaction processing.

Usage:
  p4dbgen -workload NAME [options] [OUTPUT]
  p4dbgen -config PATH [options]
  p4dbgen -simulate PATH [options]

Arguments:
  OUTPUT
    File the generated program is written to. Defaults to standard output.

Workloads:
  lock_manager, smallbank, tpcc, ycsb

Options:
`)
		flagSet.PrintDefaults()
	}

	workloadFlag := flagSet.String("workload", "", "Workload to generate: lock_manager, smallbank, tpcc or ycsb.")
	wFlag := flagSet.String("w", "", "Workload to generate (shorthand).")
	numRegsFlag := flagSet.Int("num-regs", 0, "Number of data registers or partitions. 0 uses the workload default.")
	numInstrFlag := flagSet.Int("num-instr", 0, "Maximum instructions per transaction. 0 uses the workload default.")
	regSizeFlag := flagSet.Int("reg-size", 0, "Cells per register. 0 uses the workload default.")
	maxRecircsFlag := flagSet.Int64("max-recircs", 0, "Recirculations before a waiting transaction aborts. 0 uses the workload default.")
	configFlag := flagSet.String("config", "", "Path to an .hcl file or directory with target blocks to generate.")
	simulateFlag := flagSet.String("simulate", "", "Path to an .hcl file or directory with scenario blocks to simulate.")
	workersFlag := flagSet.Int("workers", 4, "Number of concurrent workers for -config.")
	traceURLFlag := flagSet.String("trace-url", "", "Socket.IO observer receiving simulation events.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	workloadName := *workloadFlag
	if workloadName == "" {
		workloadName = *wFlag
	}

	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("too many arguments: %v", flagSet.Args())}
	}
	outputPath := flagSet.Arg(0)
	if outputPath != "" && (*configFlag != "" || *simulateFlag != "") {
		return nil, false, &ExitError{Code: 2, Message: "OUTPUT cannot be combined with -config or -simulate"}
	}

	if workloadName == "" && *configFlag == "" && *simulateFlag == "" {
		slog.Debug("Nothing to do, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *maxRecircsFlag < 0 || *maxRecircsFlag > math.MaxUint32 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid max-recircs: must be in [0, %d]", uint32(math.MaxUint32))}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		Workload: workloadName,
		Output:   outputPath,
		Params: workload.Params{
			NumRegs:    *numRegsFlag,
			NumInstr:   *numInstrFlag,
			RegSize:    *regSizeFlag,
			MaxRecircs: uint32(*maxRecircsFlag),
		},
		ConfigPath:   *configFlag,
		SimulatePath: *simulateFlag,
		TraceURL:     *traceURLFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		WorkerCount:  *workersFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
