package switchsim

import (
	"log/slog"

	"github.com/vk/p4dbgen/internal/protocol"
)

// Event describes one traversal.
type Event struct {
	Tick    int
	Packet  *Packet
	Outcome Outcome
	Verdict protocol.Verdict
	Err     error
}

// Tracer observes traversals.
type Tracer interface {
	Trace(ev Event)
}

// Tracers fans an event out to several tracers.
type Tracers []Tracer

// Trace implements Tracer.
func (ts Tracers) Trace(ev Event) {
	for _, t := range ts {
		t.Trace(ev)
	}
}

// LogTracer logs every traversal at debug level.
type LogTracer struct {
	Logger *slog.Logger
}

// Trace implements Tracer.
func (t LogTracer) Trace(ev Event) {
	attrs := []any{
		"tick", ev.Tick,
		"txn", ev.Packet.ID,
		"outcome", ev.Outcome.String(),
		"from", ev.Verdict.From.String(),
		"to", ev.Verdict.To.String(),
		"recircs", ev.Packet.Info.Recircs,
	}
	if ev.Err != nil {
		t.Logger.Warn("Transaction rejected by pipeline.", append(attrs, "error", ev.Err)...)
		return
	}
	t.Logger.Debug("Pipeline traversal.", attrs...)
}
