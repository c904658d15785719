package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{name: "empty", raw: "", want: map[string]string{}},
		{name: "single", raw: "Authorization=Basic abc", want: map[string]string{"Authorization": "Basic abc"}},
		{name: "multiple with spaces", raw: " a=1 , b = 2 ", want: map[string]string{"a": "1", "b": "2"}},
		{name: "value containing equals", raw: "token=a=b", want: map[string]string{"token": "a=b"}},
		{name: "malformed pairs skipped", raw: "novalue,=x,ok=1", want: map[string]string{"ok": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseHeaders(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("parseHeaders(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("header %q = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestInit_NoEndpointIsNoop(t *testing.T) {
	ctx := context.Background()
	tel, err := Init(ctx, OTELConfig{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if tel.Tracer == nil || tel.Metrics == nil {
		t.Fatal("expected tracer and metrics even without an endpoint")
	}
	if tel.tp != nil || tel.mp != nil {
		t.Error("no providers should be installed without an endpoint")
	}

	// Instruments must be usable against the no-op provider.
	tel.Metrics.RecordRequest(ctx, "open", "opened")
	tel.Metrics.RecordBusy(ctx, "close", "opening")
	tel.Metrics.RecordSpawn(ctx)
	tel.Metrics.RecordClose(ctx)
	tel.Metrics.RecordExit(ctx)

	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestInit_RejectsEndpointWithoutHost(t *testing.T) {
	if _, err := Init(context.Background(), OTELConfig{Endpoint: "localhost"}); err == nil {
		t.Fatal("expected error for endpoint without scheme/host")
	}
}

func TestNilReceiversAreSafe(t *testing.T) {
	ctx := context.Background()
	var m *Metrics
	m.RecordRequest(ctx, "open", "error")
	m.RecordBusy(ctx, "open", "closing")
	m.RecordSpawn(ctx)
	m.RecordClose(ctx)
	m.RecordExit(ctx)

	var tel *Telemetry
	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("nil Shutdown: %v", err)
	}
}
