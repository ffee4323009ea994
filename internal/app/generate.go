package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vk/p4dbgen/internal/config"
	"github.com/vk/p4dbgen/internal/ctxlog"
	"github.com/vk/p4dbgen/internal/workload"
)

func toParams(p config.Params) workload.Params {
	return workload.Params{
		NumRegs:    p.NumRegs,
		NumInstr:   p.NumInstr,
		RegSize:    p.RegSize,
		MaxRecircs: p.MaxRecircs,
	}
}

// Generate renders one target and writes it to its output file, or to the
// output stream when it has none. It returns the generated line count. On
// error nothing is written.
func (a *App) Generate(ctx context.Context, t *config.Target) (int, error) {
	logger := ctxlog.FromContext(ctx).With("target", t.Name, "workload", t.Workload)

	g, err := a.registry.Workload(t.Workload)
	if err != nil {
		return 0, fmt.Errorf("target '%s': %w", t.Name, err)
	}
	p := g.Defaults().Merge(toParams(t.Params))
	logger.Debug("Rendering program.", "params", fmt.Sprintf("%+v", p))

	var buf bytes.Buffer
	loc, err := workload.Write(&buf, g, p)
	if err != nil {
		return 0, fmt.Errorf("target '%s': %w", t.Name, err)
	}

	if OutputName(t.Output) == StdoutName {
		if err := a.writeOut(buf.Bytes()); err != nil {
			return 0, fmt.Errorf("target '%s': %w", t.Name, err)
		}
	} else {
		if dir := filepath.Dir(t.Output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return 0, fmt.Errorf("target '%s': %w", t.Name, err)
			}
		}
		if err := os.WriteFile(t.Output, buf.Bytes(), 0o644); err != nil {
			return 0, fmt.Errorf("target '%s': %w", t.Name, err)
		}
	}
	logger.Info("Program generated.", "output", OutputName(t.Output), "loc", loc)
	return loc, nil
}

type genResult struct {
	loc int
	err error
}

// GenerateAll renders every target with workerCount concurrent workers. The
// first failure cancels targets that have not started yet. LOC lines are
// reported in target order once all workers are done.
func (a *App) GenerateAll(ctx context.Context, targets []*config.Target, workerCount int) error {
	if workerCount < 1 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]genResult, len(targets))
	readyChan := make(chan int)
	var wg sync.WaitGroup

	a.logger.Info("Generating targets.", "count", len(targets), "workers", workerCount)
	for workerID := 1; workerID <= workerCount; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.worker(ctx, readyChan, cancel, workerID, targets, results)
		}()
	}

	for i := range targets {
		readyChan <- i
	}
	close(readyChan)
	wg.Wait()

	var errs []error
	for i, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		a.reportLOC(targets[i].Output, r.loc)
	}
	return errors.Join(errs...)
}

// worker is the processing loop for a single concurrent worker.
func (a *App) worker(ctx context.Context, readyChan <-chan int, cancel context.CancelFunc, workerID int, targets []*config.Target, results []genResult) {
	logger := ctxlog.FromContext(ctx).With("workerID", workerID)
	logger.Debug("Worker started.")

	for i := range readyChan {
		t := targets[i]
		if err := ctx.Err(); err != nil {
			results[i].err = fmt.Errorf("target '%s' skipped: %w", t.Name, err)
			continue
		}

		logger.Debug("Worker picked up target.", "target", t.Name)
		loc, err := a.Generate(ctxlog.WithLogger(ctx, logger), t)
		if err != nil {
			logger.Error("Target generation failed.", "target", t.Name, "error", err)
			results[i].err = err
			cancel()
			continue
		}
		results[i].loc = loc
	}
	logger.Debug("Worker finished.")
}
