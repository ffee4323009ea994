// Package tracesink streams simulator traversal events to a Socket.IO
// observer, one event per pipeline pass, so a dashboard can replay how
// transactions recirculate and acquire the switch lock.
package tracesink

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/p4dbgen/internal/ctxlog"
	"github.com/vk/p4dbgen/internal/switchsim"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Default option values.
const (
	DefaultEvent   = "packet"
	DefaultTimeout = 10 * time.Second
)

// ErrConnectTimeout is returned when the observer does not accept the
// connection in time.
var ErrConnectTimeout = errors.New("timed out while waiting for initial connection")

// Options configure a Sink.
type Options struct {
	// URL of the observer, e.g. http://localhost:3000/socket.io/.
	URL string
	// Namespace defaults to "/".
	Namespace string
	// Event is the emitted event name. Defaults to DefaultEvent.
	Event string
	// Timeout bounds the initial connection. Defaults to DefaultTimeout.
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Sink is a switchsim.Tracer emitting every event to the observer.
type Sink struct {
	io     *socket.Socket
	event  string
	logger *slog.Logger

	sent      atomic.Int64
	closeOnce sync.Once
}

var _ switchsim.Tracer = (*Sink)(nil)

// Dial connects to the observer and waits until the connection is accepted.
func Dial(ctx context.Context, o Options) (*Sink, error) {
	if o.Namespace == "" {
		o.Namespace = "/"
	}
	if o.Event == "" {
		o.Event = DefaultEvent
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	logger := ctxlog.FromContext(ctx).With("component", "tracesink", "url", o.URL, "event", o.Event)

	parsedURL, err := url.Parse(o.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("trace URL %q must include scheme and host", o.URL)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(o.Namespace, opts)

	done := make(chan error, 1)
	report := func(err error) {
		select {
		case done <- err:
		default:
		}
	}
	io.On(types.EventName("connect"), func(...any) {
		logger.Info("Connected to trace observer.", "sid", io.Id())
		report(nil)
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			report(fmt.Errorf("trace observer refused connection: %v", errs[0]))
			return
		}
		report(errors.New("trace observer refused connection"))
	})

	io.Connect()

	opCtx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	select {
	case <-opCtx.Done():
		io.Disconnect()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrConnectTimeout
	case err := <-done:
		if err != nil {
			io.Disconnect()
			return nil, err
		}
	}

	return &Sink{io: io, event: o.Event, logger: logger}, nil
}

// Trace implements switchsim.Tracer.
func (s *Sink) Trace(ev switchsim.Event) {
	s.io.Emit(s.event, Payload(ev))
	s.sent.Add(1)
}

// Sent returns the number of emitted events.
func (s *Sink) Sent() int64 {
	return s.sent.Load()
}

// Close disconnects from the observer.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Debug("Disconnecting trace sink.", "sent", s.sent.Load())
		s.io.Disconnect()
	})
	return nil
}

// Payload is the JSON-friendly form of an event.
func Payload(ev switchsim.Event) map[string]any {
	p := map[string]any{
		"tick":      ev.Tick,
		"outcome":   ev.Outcome.String(),
		"from":      ev.Verdict.From.String(),
		"to":        ev.Verdict.To.String(),
		"access":    ev.Verdict.Access,
		"has_lock":  false,
		"recircs":   uint32(0),
		"txn":       "",
		"passes":    0,
		"multipass": false,
	}
	if ev.Packet != nil {
		p["txn"] = ev.Packet.ID
		p["passes"] = ev.Packet.Passes
		p["has_lock"] = ev.Packet.Info.HasLock
		p["multipass"] = ev.Packet.Info.Multipass
		p["recircs"] = ev.Packet.Info.Recircs
		p["locks"] = map[string]uint8{
			"left":  ev.Packet.Info.Locks.Left,
			"right": ev.Packet.Info.Locks.Right,
		}
	}
	if ev.Err != nil {
		p["error"] = ev.Err.Error()
	}
	return p
}
