package app

import (
	"errors"
	"fmt"

	"github.com/vk/p4dbgen/internal/workload"
)

// StdoutName is how a program written to standard output is reported.
const StdoutName = "/dev/stdout"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Workload and Output select the single program to render when neither
	// ConfigPath nor SimulatePath is set. An empty Output means stdout.
	Workload string
	Output   string
	// Params override the workload defaults for the single program.
	Params workload.Params

	ConfigPath   string // hcl files with target blocks
	SimulatePath string // hcl files with scenario blocks
	TraceURL     string // Socket.IO observer for simulation events

	LogFormat   string
	LogLevel    string
	WorkerCount int
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath != "" && cfg.SimulatePath != "" {
		return nil, errors.New("-config and -simulate are mutually exclusive")
	}
	if cfg.ConfigPath == "" && cfg.SimulatePath == "" && cfg.Workload == "" {
		return nil, errors.New("a workload is required unless -config or -simulate is given")
	}
	if cfg.TraceURL != "" && cfg.SimulatePath == "" {
		return nil, errors.New("-trace-url requires -simulate")
	}
	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", cfg.WorkerCount)
	}
	for name, v := range map[string]int{
		"num-regs":  cfg.Params.NumRegs,
		"num-instr": cfg.Params.NumInstr,
		"reg-size":  cfg.Params.RegSize,
	} {
		if v < 0 {
			return nil, fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}
	return &cfg, nil
}

// OutputName returns the name an output path is reported under.
func OutputName(path string) string {
	if path == "" || path == "-" {
		return StdoutName
	}
	return path
}
