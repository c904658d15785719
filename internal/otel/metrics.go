package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "pane-toggler"

// Metrics holds the OTEL instruments for pane-toggler.
// All counters are cumulative and safe for concurrent use.
type Metrics struct {
	// Pipe messages partitioned by command and outcome.
	Requests metric.Int64Counter
	// Requests rejected because the pane was mid-transition.
	BusyRejections metric.Int64Counter

	// Native side effects.
	PanesSpawned metric.Int64Counter
	PanesClosed  metric.Int64Counter
	// Panes whose command exited without a close request.
	PanesExited metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Requests, err = meter.Int64Counter("pipe.requests",
		metric.WithDescription("Pipe messages handled, partitioned by command and outcome"))
	if err != nil {
		return nil, err
	}

	m.BusyRejections, err = meter.Int64Counter("pipe.busy_rejections",
		metric.WithDescription("Requests rejected because the pane was opening or closing"))
	if err != nil {
		return nil, err
	}

	m.PanesSpawned, err = meter.Int64Counter("panes.spawned",
		metric.WithDescription("Native panes created"),
		metric.WithUnit("{pane}"))
	if err != nil {
		return nil, err
	}

	m.PanesClosed, err = meter.Int64Counter("panes.closed",
		metric.WithDescription("Native panes closed on request"),
		metric.WithUnit("{pane}"))
	if err != nil {
		return nil, err
	}

	m.PanesExited, err = meter.Int64Counter("panes.exited",
		metric.WithDescription("Tracked panes that went away without a close request"),
		metric.WithUnit("{pane}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRequest records a handled pipe message. outcome is the response
// action, "warning", or "error".
func (m *Metrics) RecordRequest(ctx context.Context, command, outcome string) {
	if m == nil {
		return
	}
	m.Requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipe.command", command),
		attribute.String("pipe.outcome", outcome),
	))
}

// RecordBusy records a busy-state rejection.
func (m *Metrics) RecordBusy(ctx context.Context, command, state string) {
	if m == nil {
		return
	}
	m.BusyRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipe.command", command),
		attribute.String("pane.state", state),
	))
}

// RecordSpawn records a native pane creation.
func (m *Metrics) RecordSpawn(ctx context.Context) {
	if m == nil {
		return
	}
	m.PanesSpawned.Add(ctx, 1)
}

// RecordClose records a requested native pane close.
func (m *Metrics) RecordClose(ctx context.Context) {
	if m == nil {
		return
	}
	m.PanesClosed.Add(ctx, 1)
}

// RecordExit records a pane that went away on its own.
func (m *Metrics) RecordExit(ctx context.Context) {
	if m == nil {
		return
	}
	m.PanesExited.Add(ctx, 1)
}
