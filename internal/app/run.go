package app

import (
	"context"
	"fmt"

	"github.com/vk/p4dbgen/internal/config"
	"github.com/vk/p4dbgen/internal/ctxlog"
)

// Run executes the mode selected by cfg.
func (a *App) Run(ctx context.Context, cfg *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	defer a.logger.Debug("App.Run method finished.")

	switch {
	case cfg.SimulatePath != "":
		model, err := a.load(ctx, cfg.SimulatePath)
		if err != nil {
			return err
		}
		if len(model.Scenarios) == 0 {
			a.logger.Warn("No scenarios found, nothing to simulate.", "path", cfg.SimulatePath)
			return nil
		}
		return a.Simulate(ctx, model.Scenarios, cfg.TraceURL)

	case cfg.ConfigPath != "":
		model, err := a.load(ctx, cfg.ConfigPath)
		if err != nil {
			return err
		}
		if len(model.Targets) == 0 {
			a.logger.Warn("No targets found, nothing to generate.", "path", cfg.ConfigPath)
			return nil
		}
		return a.GenerateAll(ctx, model.Targets, cfg.WorkerCount)
	}

	target := &config.Target{
		Name:     cfg.Workload,
		Workload: cfg.Workload,
		Output:   cfg.Output,
		Params: config.Params{
			NumRegs:    cfg.Params.NumRegs,
			NumInstr:   cfg.Params.NumInstr,
			RegSize:    cfg.Params.RegSize,
			MaxRecircs: cfg.Params.MaxRecircs,
		},
	}
	loc, err := a.Generate(ctx, target)
	if err != nil {
		return err
	}
	a.reportLOC(target.Output, loc)
	return nil
}

func (a *App) load(ctx context.Context, path string) (*config.Model, error) {
	if a.loader == nil {
		return nil, fmt.Errorf("no configuration loader available for %s", path)
	}
	model, err := a.loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	a.logger.Debug("Configuration loaded and translated into unified model.", "targets", len(model.Targets), "scenarios", len(model.Scenarios))
	return model, nil
}

func (a *App) reportLOC(output string, loc int) {
	fmt.Fprintf(a.errW, "%-16s: %d LOC generated\n", OutputName(output), loc)
}
