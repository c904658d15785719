package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/timvw/pane-toggler/internal/events"
	"github.com/timvw/pane-toggler/internal/model"
	"github.com/timvw/pane-toggler/internal/pipe"
	"github.com/timvw/pane-toggler/internal/protocol"
)

type stubDispatcher struct {
	mu   sync.Mutex
	got  protocol.Message
	resp protocol.Response
}

func (s *stubDispatcher) Submit(_ context.Context, msg protocol.Message) (protocol.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = msg
	return s.resp, nil
}

func (s *stubDispatcher) received() protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got
}

func startStubServer(t *testing.T, d pipe.Dispatcher) string {
	t.Helper()
	base := filepath.Join(os.TempDir(), "pt-cmd")
	if err := os.MkdirAll(base, 0o700); err != nil {
		t.Fatal(err)
	}
	socket := filepath.Join(base, fmt.Sprintf("%d-%d.sock", time.Now().UnixNano(), os.Getpid()))
	ctx, cancel := context.WithCancel(context.Background())
	srv := pipe.NewServer(d, socket, nil)
	if err := srv.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		srv.Wait()
	})
	return socket
}

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name string
		args []string
		cwd  string
		want protocol.Request
	}{
		{name: "id only", args: []string{"logs"}, want: protocol.Request{PaneID: "logs"}},
		{name: "command without args", args: []string{"top", "htop"}, want: protocol.Request{PaneID: "top", Cmd: "htop"}},
		{
			name: "command with args and cwd",
			args: []string{"logs", "tail", "-f", "app.log"},
			cwd:  "/var/log",
			want: protocol.Request{PaneID: "logs", Cmd: "tail", Args: []string{"-f", "app.log"}, Cwd: "/var/log"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildRequest(tt.args, tt.cwd); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildRequest(%v) = %+v, want %+v", tt.args, got, tt.want)
			}
		})
	}
}

func TestSendMessage_PrintsResponse(t *testing.T) {
	d := &stubDispatcher{resp: protocol.Done(protocol.ActionOpened)}
	socket := startStubServer(t, d)

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	msg := protocol.Message{Name: "toggler::open", Payload: `{"pane_id":"a","cmd":"htop"}`}
	if err := sendMessage(c, socket, msg); err != nil {
		t.Fatalf("sendMessage: %v", err)
	}

	if got := out.String(); got != `{"ok":true,"action":"opened"}`+"\n" {
		t.Errorf("output = %q", got)
	}
	if got := d.received(); got.Name != msg.Name || got.Payload != msg.Payload {
		t.Errorf("server received %+v", got)
	}
}

func TestSendMessage_FailureResponseIsAnError(t *testing.T) {
	socket := startStubServer(t, &stubDispatcher{resp: protocol.Fail("pane is opening")})

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	err := sendMessage(c, socket, protocol.Message{Name: "toggler::close", Payload: `{"pane_id":"a"}`})

	if !errors.Is(err, errRequestFailed) {
		t.Fatalf("err = %v, want errRequestFailed", err)
	}
	if !c.SilenceErrors {
		t.Error("the JSON response already explains the failure; cobra should not print it again")
	}
	if !strings.Contains(out.String(), `"error":"pane is opening"`) {
		t.Errorf("output = %q", out.String())
	}
}

func TestPrintPanes(t *testing.T) {
	var out bytes.Buffer
	err := printPanes(&out, []model.Pane{
		{Handle: "%3", Target: "work:1.0", PID: 4242, Command: "zsh"},
		{Handle: "%7", Target: "work:1.1", PID: 4343, Command: "htop", Tag: "monitor"},
	})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "HANDLE") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "-") || !strings.Contains(lines[1], "work:1.0") {
		t.Errorf("untagged row = %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "monitor") {
		t.Errorf("tagged row = %q", lines[2])
	}
}

func TestPrintHistory(t *testing.T) {
	var out bytes.Buffer
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := printHistory(&out, []events.Event{
		{Kind: events.KindOpenFailed, PaneID: "logs", From: "opening", To: "closed", Detail: "no space for new pane", TS: ts},
		{Kind: events.KindOpenRequested, PaneID: "logs", From: "closed", To: "opening", Command: "tail -f app.log", TS: ts},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{"open_failed", "opening → closed", "no space for new pane", "tail -f app.log"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
