// Package toggler turns pipe messages into pane lifecycle transitions.
//
// Handler owns the registry and talks to the host. It is not safe for
// concurrent use; Loop serialises pipe messages, host events and snapshot
// reads onto one goroutine.
package toggler

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/timvw/pane-toggler/internal/events"
	"github.com/timvw/pane-toggler/internal/mux"
	ptotel "github.com/timvw/pane-toggler/internal/otel"
	"github.com/timvw/pane-toggler/internal/protocol"
	"github.com/timvw/pane-toggler/internal/registry"
)

var tracer = otel.Tracer("pane-toggler")

// Reply delivers the response for one message. It is called exactly once.
type Reply func(protocol.Response)

// Options configures a Handler.
type Options struct {
	// Prefix is the optional channel namespace, e.g. "toggler::".
	Prefix string
	// Logger receives diagnostics. Nil discards them.
	Logger *log.Logger
	// Metrics are nil-safe.
	Metrics *ptotel.Metrics
	// Sinks receive every lifecycle event (dashboard store, journal).
	Sinks []events.Sink
}

// waiter is a request blocked on a host confirmation.
type waiter struct {
	pipeID  string
	command protocol.Command
	reply   Reply
}

// Handler executes open/close/toggle against the host.
type Handler struct {
	reg     *registry.Registry
	host    mux.Multiplexer
	prefix  string
	log     *log.Logger
	metrics *ptotel.Metrics
	sinks   []events.Sink
	waiters map[string]waiter
	now     func() time.Time
}

// NewHandler returns a handler driving host and recording into reg.
func NewHandler(reg *registry.Registry, host mux.Multiplexer, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Handler{
		reg:     reg,
		host:    host,
		prefix:  opts.Prefix,
		log:     logger,
		metrics: opts.Metrics,
		sinks:   opts.Sinks,
		waiters: make(map[string]waiter),
		now:     time.Now,
	}
}

// Handle processes one pipe message. Outcomes that need no host work are
// replied to before Handle returns; opens and closes are replied to when the
// host confirms them (see HandleEvent).
func (h *Handler) Handle(ctx context.Context, msg protocol.Message, reply Reply) {
	ctx, span := tracer.Start(ctx, "pipe.message",
		trace.WithAttributes(
			attribute.String("pipe.name", msg.Name),
			attribute.String("pipe.id", msg.ID),
		))
	defer span.End()

	cmd, ok := protocol.ParseCommand(msg.Name, h.prefix)
	if !ok {
		h.log.Warn("unknown command", "name", msg.Name, "pipe_id", msg.ID)
		h.respond(ctx, "unknown", reply, protocol.UnknownCommand(msg.Name))
		return
	}

	req, err := protocol.Decode(msg.Payload)
	if err != nil {
		h.log.Debug("rejected payload", "command", cmd, "pipe_id", msg.ID, "error", err)
		h.respond(ctx, string(cmd), reply, protocol.Fail(err.Error()))
		return
	}
	span.SetAttributes(attribute.String("pane.id", req.PaneID))

	w := waiter{pipeID: msg.ID, command: cmd, reply: reply}
	switch cmd {
	case protocol.CommandOpen:
		if err := protocol.RequireCmd(req); err != nil {
			h.respond(ctx, string(cmd), reply, protocol.Fail(err.Error()))
			return
		}
		h.open(ctx, req, w)
	case protocol.CommandClose:
		h.close(ctx, req.PaneID, w)
	case protocol.CommandToggle:
		h.toggle(ctx, req, w)
	}
}

func (h *Handler) toggle(ctx context.Context, req protocol.Request, w waiter) {
	state, _ := h.reg.StateOf(req.PaneID)
	switch {
	case state.Busy():
		h.rejectBusy(ctx, w, &registry.BusyError{PaneID: req.PaneID, State: state})
	case state == registry.StateOpen:
		h.close(ctx, req.PaneID, w)
	default:
		if err := protocol.RequireCmd(req); err != nil {
			h.respond(ctx, string(w.command), w.reply, protocol.Fail(err.Error()))
			return
		}
		h.open(ctx, req, w)
	}
}

func (h *Handler) open(ctx context.Context, req protocol.Request, w waiter) {
	id := req.PaneID
	spec := req.Spec()
	prev, _ := h.reg.StateOf(id)

	if err := h.reg.BeginOpen(id, spec); err != nil {
		var busy *registry.BusyError
		var already *registry.AlreadyOpenError
		switch {
		case errors.As(err, &busy):
			h.rejectBusy(ctx, w, busy)
		case errors.As(err, &already):
			h.respond(ctx, string(w.command), w.reply, protocol.Warn(protocol.WarnAlreadyOpened))
		default:
			h.respond(ctx, string(w.command), w.reply, protocol.Fail(err.Error()))
		}
		return
	}

	h.waiters[id] = w
	h.record(ctx, events.Event{
		Kind:    events.KindOpenRequested,
		PaneID:  id,
		From:    prev.String(),
		To:      registry.StateOpening.String(),
		PipeID:  w.pipeID,
		Command: spec.CommandLine(),
	})

	if err := h.host.OpenCommandPane(ctx, spec, id); err != nil {
		delete(h.waiters, id)
		_ = h.reg.AbortOpen(id)
		h.log.Error("open failed", "pane_id", id, "cmd", spec.Cmd, "error", err)
		h.record(ctx, events.Event{
			Kind:   events.KindOpenFailed,
			PaneID: id,
			From:   registry.StateOpening.String(),
			To:     registry.StateClosed.String(),
			PipeID: w.pipeID,
			Detail: err.Error(),
		})
		h.respond(ctx, string(w.command), w.reply, protocol.Failf("open pane: %v", err))
		return
	}
	h.metrics.RecordSpawn(ctx)
	h.log.Info("opening pane", "pane_id", id, "cmd", spec.CommandLine(), "pipe_id", w.pipeID)
}

func (h *Handler) close(ctx context.Context, id string, w waiter) {
	handle, err := h.reg.BeginClose(id)
	if err != nil {
		var busy *registry.BusyError
		switch {
		case errors.As(err, &busy):
			h.rejectBusy(ctx, w, busy)
		case errors.Is(err, registry.ErrNotFound):
			h.respond(ctx, string(w.command), w.reply, protocol.Warn(protocol.WarnNotFound))
		default:
			h.respond(ctx, string(w.command), w.reply, protocol.Fail(err.Error()))
		}
		return
	}

	h.waiters[id] = w
	h.record(ctx, events.Event{
		Kind:   events.KindCloseRequested,
		PaneID: id,
		Handle: handle,
		From:   registry.StateOpen.String(),
		To:     registry.StateClosing.String(),
		PipeID: w.pipeID,
	})

	if err := h.host.ClosePane(ctx, handle); err != nil {
		delete(h.waiters, id)
		_ = h.reg.AbortClose(id)
		h.log.Error("close failed", "pane_id", id, "handle", handle, "error", err)
		h.record(ctx, events.Event{
			Kind:   events.KindCloseFailed,
			PaneID: id,
			Handle: handle,
			From:   registry.StateClosing.String(),
			To:     registry.StateOpen.String(),
			PipeID: w.pipeID,
			Detail: err.Error(),
		})
		h.respond(ctx, string(w.command), w.reply, protocol.Failf("close pane: %v", err))
		return
	}
	h.log.Info("closing pane", "pane_id", id, "handle", handle, "pipe_id", w.pipeID)
}

// HandleEvent applies a host notification and answers the request waiting
// on it, if any.
func (h *Handler) HandleEvent(ctx context.Context, ev mux.Event) {
	switch ev.Kind {
	case mux.EventPaneOpened:
		h.paneOpened(ctx, ev)
	case mux.EventPaneClosed:
		h.paneClosed(ctx, ev)
	default:
		h.log.Debug("ignoring host event", "kind", ev.Kind, "handle", ev.Handle)
	}
}

func (h *Handler) paneOpened(ctx context.Context, ev mux.Event) {
	id := ev.Tag
	if err := h.reg.ConfirmOpen(id, ev.Handle); err != nil {
		h.log.Warn("unexpected pane opened event", "pane_id", id, "handle", ev.Handle, "error", err)
		return
	}
	h.record(ctx, events.Event{
		Kind:   events.KindOpened,
		PaneID: id,
		Handle: ev.Handle,
		From:   registry.StateOpening.String(),
		To:     registry.StateOpen.String(),
		PipeID: h.waiters[id].pipeID,
	})
	h.log.Info("pane opened", "pane_id", id, "handle", ev.Handle)

	if w, ok := h.waiters[id]; ok {
		delete(h.waiters, id)
		h.respond(ctx, string(w.command), w.reply, protocol.Done(protocol.ActionOpened))
	}
}

func (h *Handler) paneClosed(ctx context.Context, ev mux.Event) {
	id, ok := h.reg.FindByHandle(ev.Handle)
	if !ok {
		h.log.Debug("closed event for untracked pane", "handle", ev.Handle)
		return
	}
	prev, err := h.reg.ConfirmClosed(id)
	if err != nil {
		h.log.Warn("unexpected pane closed event", "pane_id", id, "handle", ev.Handle, "error", err)
		return
	}

	if prev == registry.StateOpen {
		h.metrics.RecordExit(ctx)
		h.record(ctx, events.Event{
			Kind:   events.KindExited,
			PaneID: id,
			Handle: ev.Handle,
			From:   prev.String(),
			To:     registry.StateClosed.String(),
		})
		h.log.Info("pane exited", "pane_id", id, "handle", ev.Handle)
		return
	}

	h.metrics.RecordClose(ctx)
	w, waiting := h.waiters[id]
	delete(h.waiters, id)
	h.record(ctx, events.Event{
		Kind:   events.KindClosed,
		PaneID: id,
		Handle: ev.Handle,
		From:   prev.String(),
		To:     registry.StateClosed.String(),
		PipeID: w.pipeID,
	})
	h.log.Info("pane closed", "pane_id", id, "handle", ev.Handle)
	if waiting {
		h.respond(ctx, string(w.command), w.reply, protocol.Done(protocol.ActionClosed))
	}
}

// Snapshot returns the current registry contents.
func (h *Handler) Snapshot() []registry.Entry {
	return h.reg.Snapshot()
}

// Pending returns the number of requests waiting on the host.
func (h *Handler) Pending() int {
	return len(h.waiters)
}

// Abandon fails every request still waiting on the host. Registry state is
// left as is.
func (h *Handler) Abandon(ctx context.Context, reason string) {
	for id, w := range h.waiters {
		delete(h.waiters, id)
		h.respond(ctx, string(w.command), w.reply, protocol.Fail(reason))
	}
}

func (h *Handler) rejectBusy(ctx context.Context, w waiter, busy *registry.BusyError) {
	h.metrics.RecordBusy(ctx, string(w.command), busy.State.String())
	h.log.Debug("busy", "pane_id", busy.PaneID, "state", busy.State, "command", w.command)
	h.respond(ctx, string(w.command), w.reply, protocol.Fail(busy.Error()))
}

func (h *Handler) respond(ctx context.Context, command string, reply Reply, resp protocol.Response) {
	outcome := resp.Action
	switch {
	case !resp.OK:
		outcome = "error"
	case resp.Warning != "":
		outcome = "warning"
	case outcome == "":
		outcome = "ok"
	}
	h.metrics.RecordRequest(ctx, command, outcome)
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("pipe.outcome", outcome))
	}
	reply(resp)
}

func (h *Handler) record(ctx context.Context, e events.Event) {
	e.TS = h.now().UTC()
	for _, s := range h.sinks {
		if err := s.Record(ctx, e); err != nil {
			h.log.Warn("could not record event", "kind", e.Kind, "pane_id", e.PaneID, "error", err)
		}
	}
}
