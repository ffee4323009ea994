package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/vk/p4dbgen/internal/config"
	"github.com/vk/p4dbgen/internal/ctxlog"
	"github.com/vk/p4dbgen/internal/switchsim"
	"github.com/vk/p4dbgen/internal/tracesink"
	"github.com/vk/p4dbgen/internal/wire"
	"github.com/vk/p4dbgen/internal/workload"
)

// Simulate runs every scenario against a fresh pipeline model and prints
// one result table per scenario. When traceURL is set every traversal is
// also streamed to that Socket.IO observer.
func (a *App) Simulate(ctx context.Context, scenarios []*config.Scenario, traceURL string) error {
	tracers := switchsim.Tracers{switchsim.LogTracer{Logger: ctxlog.FromContext(ctx)}}
	if traceURL != "" {
		sink, err := tracesink.Dial(ctx, tracesink.Options{URL: traceURL})
		if err != nil {
			return fmt.Errorf("failed to connect trace sink: %w", err)
		}
		defer func() {
			sink.Close()
			ctxlog.FromContext(ctx).Info("Trace sink closed.", "events", sink.Sent())
		}()
		tracers = append(tracers, sink)
	}

	for _, s := range scenarios {
		sctx := ctxlog.With(ctx, "scenario", s.Name, "workload", s.Workload)
		if err := a.simulateScenario(sctx, s, tracers); err != nil {
			return fmt.Errorf("scenario '%s': %w", s.Name, err)
		}
	}
	return nil
}

func (a *App) simulateScenario(ctx context.Context, s *config.Scenario, tracer switchsim.Tracer) error {
	logger := ctxlog.FromContext(ctx)

	g, err := a.registry.Workload(s.Workload)
	if err != nil {
		return err
	}
	p := g.Defaults().Merge(toParams(s.Params))

	var out strings.Builder
	if len(s.Requests) > 0 {
		h, ok := g.(workload.RequestHandler)
		if !ok {
			return fmt.Errorf("workload %s does not answer tuple requests", g.Name())
		}
		results, err := h.Serve(p, s.Requests)
		if err != nil {
			return err
		}
		writeRequestTable(&out, s.Name, results)
	}

	if len(s.Txns) > 0 {
		sim, ok := g.(workload.Simulator)
		if !ok {
			return fmt.Errorf("workload %s does not run transactions", g.Name())
		}
		acc, err := sim.Accessor(p)
		if err != nil {
			return err
		}
		sw := switchsim.New(acc, switchsim.Options{
			MaxRecircs:    p.MaxRecircs,
			RecircLatency: s.RecircLatency,
			Tracer:        tracer,
		})

		arrivals, err := buildArrivals(sim, p, acc, s.Txns)
		if err != nil {
			return err
		}
		results, err := sw.Run(ctx, arrivals)
		if err != nil {
			return err
		}
		logger.Info("Scenario simulated.", "txns", len(results))
		writeTxnTable(&out, s.Name, results)
	}

	if out.Len() == 0 {
		logger.Warn("Scenario has neither transactions nor requests.")
		return nil
	}
	return a.writeOut([]byte(out.String()))
}

// buildArrivals encodes each transaction the way a database node would and
// applies the explicit lock and multipass overrides.
func buildArrivals(sim workload.Simulator, p workload.Params, acc switchsim.Accessor, txns []*config.TxnSpec) ([]switchsim.Arrival, error) {
	arrivals := make([]switchsim.Arrival, 0, len(txns))
	for i, txn := range txns {
		name := txn.Name
		if name == "" {
			name = fmt.Sprintf("txn%d", i)
		}
		if len(txn.Instrs) == 0 {
			return nil, fmt.Errorf("txn '%s': no instructions", name)
		}

		instrs := make([]*switchsim.Instr, len(txn.Instrs))
		for j, spec := range txn.Instrs {
			in, err := sim.Instr(p, spec)
			if err != nil {
				return nil, fmt.Errorf("txn '%s', instr %d: %w", name, j, err)
			}
			instrs[j] = in
		}

		info, err := switchsim.Prepare(acc, instrs)
		if err != nil {
			return nil, fmt.Errorf("txn '%s': %w", name, err)
		}
		if txn.Multipass != nil {
			info.Multipass = *txn.Multipass
		}
		if txn.Locks != nil {
			info.Locks = wire.LockPair{Left: txn.Locks.Left, Right: txn.Locks.Right}
		}

		arrivals = append(arrivals, switchsim.Arrival{
			At:     txn.At,
			Packet: &switchsim.Packet{ID: name, Info: info, Instrs: instrs},
		})
	}
	return arrivals, nil
}

func writeTxnTable(out *strings.Builder, scenario string, results []switchsim.Result) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "SCENARIO\tTXN\tOUTCOME\tPASSES\tRECIRCS\tFINISHED\tDATA\tERROR\n")
	for _, r := range results {
		errStr := "-"
		if r.Err != nil {
			errStr = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			scenario, r.ID, r.Outcome, r.Passes, r.Recircs, r.Finished, instrData(r.Packet), errStr)
	}
	tw.Flush()
}

// instrData lists the first data word of every instruction, which is where
// the pipeline returns read values.
func instrData(p *switchsim.Packet) string {
	if p == nil {
		return "-"
	}
	words := make([]string, len(p.Instrs))
	for i, in := range p.Instrs {
		words[i] = fmt.Sprintf("0x%x", in.Data[0])
	}
	return "[" + strings.Join(words, " ") + "]"
}

func writeRequestTable(out *strings.Builder, scenario string, results []workload.RequestResult) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "SCENARIO\tREQUEST\tOP\tGRANTED\tVALUES\n")
	for _, r := range results {
		values := "-"
		if r.Values != nil {
			values = fmt.Sprint(r.Values)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", scenario, r.Name, r.Op, r.Granted, values)
	}
	tw.Flush()
}
