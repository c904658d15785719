package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		prefix string
		want   Command
		wantOK bool
	}{
		{name: "bare open", input: "open", prefix: DefaultPrefix, want: CommandOpen, wantOK: true},
		{name: "prefixed close", input: "toggler::close", prefix: DefaultPrefix, want: CommandClose, wantOK: true},
		{name: "prefixed toggle", input: "toggler::toggle", prefix: DefaultPrefix, want: CommandToggle, wantOK: true},
		{name: "unknown", input: "toggler::list", prefix: DefaultPrefix, wantOK: false},
		{name: "other prefix", input: "other::open", prefix: DefaultPrefix, wantOK: false},
		{name: "empty name", input: "", prefix: DefaultPrefix, wantOK: false},
		{name: "case sensitive", input: "OPEN", prefix: DefaultPrefix, wantOK: false},
		{name: "no prefix configured", input: "toggler::open", prefix: "", wantOK: false},
		{name: "custom prefix", input: "panes/open", prefix: "panes/", want: CommandOpen, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCommand(tt.input, tt.prefix)
			if ok != tt.wantOK {
				t.Fatalf("ParseCommand(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantErr     string
		wantMissing bool
		want        Request
	}{
		{
			name:    "full request",
			payload: `{"pane_id":"a","cmd":"htop","args":["-d","10"],"cwd":"/tmp"}`,
			want:    Request{PaneID: "a", Cmd: "htop", Args: []string{"-d", "10"}, Cwd: "/tmp"},
		},
		{
			name:    "pane id only",
			payload: `{"pane_id":"a"}`,
			want:    Request{PaneID: "a"},
		},
		{
			name:    "unknown fields are ignored",
			payload: `{"pane_id":"a","floating":true}`,
			want:    Request{PaneID: "a"},
		},
		{
			name:    "empty payload",
			payload: "",
			wantErr: "invalid json:",
		},
		{
			name:    "not json",
			payload: "htop",
			wantErr: "invalid json:",
		},
		{
			name:    "wrong type",
			payload: `{"pane_id":42}`,
			wantErr: "invalid json:",
		},
		{
			name:        "missing pane id",
			payload:     `{"cmd":"htop"}`,
			wantErr:     "invalid request: pane_id is required",
			wantMissing: true,
		},
		{
			name:        "blank pane id",
			payload:     `{"pane_id":"  "}`,
			wantErr:     "invalid request: pane_id is required",
			wantMissing: true,
		},
		{
			name:        "null payload",
			payload:     "null",
			wantErr:     "invalid request: pane_id is required",
			wantMissing: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.payload)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
				}
				if errors.Is(err, ErrMissingField) != tt.wantMissing {
					t.Errorf("errors.Is(ErrMissingField) = %v, want %v", !tt.wantMissing, tt.wantMissing)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.PaneID != tt.want.PaneID || got.Cmd != tt.want.Cmd || got.Cwd != tt.want.Cwd {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
			if strings.Join(got.Args, ",") != strings.Join(tt.want.Args, ",") {
				t.Errorf("Args = %v, want %v", got.Args, tt.want.Args)
			}
		})
	}
}

func TestRequireCmd(t *testing.T) {
	if err := RequireCmd(Request{PaneID: "a", Cmd: "htop"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := RequireCmd(Request{PaneID: "a"})
	if err == nil {
		t.Fatal("expected error for missing cmd")
	}
	if err.Error() != "invalid request: cmd is required" {
		t.Errorf("error = %q", err.Error())
	}
}

func TestResponse_JSONShapes(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{name: "bare success", resp: OK(), want: `{"ok":true}`},
		{name: "opened", resp: Done(ActionOpened), want: `{"ok":true,"action":"opened"}`},
		{name: "closed", resp: Done(ActionClosed), want: `{"ok":true,"action":"closed"}`},
		{name: "warning", resp: Warn(WarnNotFound), want: `{"ok":true,"warning":"pane not found"}`},
		{name: "failure", resp: Fail("pane is closing"), want: `{"ok":false,"error":"pane is closing"}`},
		{name: "unknown command", resp: UnknownCommand("toggler::nope"), want: `{"ok":false,"error":"unknown command: toggler::nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.resp)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}

func TestEncodeRequest_DecodesBack(t *testing.T) {
	payload, err := EncodeRequest(Request{PaneID: "logs", Cmd: "tail", Args: []string{"-f", "x.log"}})
	if err != nil {
		t.Fatalf("EncodeRequest error: %v", err)
	}
	if strings.Contains(payload, "cwd") {
		t.Errorf("empty cwd should be omitted, got %s", payload)
	}
	req, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if req.Spec().CommandLine() != "tail -f x.log" {
		t.Errorf("round trip spec = %q", req.Spec().CommandLine())
	}
}
