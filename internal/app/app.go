package app

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/vk/p4dbgen/internal/config"
	"github.com/vk/p4dbgen/internal/ctxlog"
	"github.com/vk/p4dbgen/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	errW     io.Writer
	outMu    sync.Mutex
	logger   *slog.Logger
	registry *registry.Registry
	loader   config.Loader
}

// NewApp is the constructor for the main application. Generated source and
// result tables go to outW; logs and the LOC summary go to errW. It panics
// when a registered workload rejects its own defaults, which is a
// programming error.
func NewApp(outW, errW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All workload modules registered.", "count", len(modules), "workloads", reg.Names())

	if err := reg.ValidateRegistry(ctx); err != nil {
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		errW:     errW,
		logger:   logger,
		registry: reg,
		loader:   loader,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// writeOut writes p to the output stream. Concurrent targets never
// interleave their programs.
func (a *App) writeOut(p []byte) error {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	_, err := a.outW.Write(p)
	return err
}
