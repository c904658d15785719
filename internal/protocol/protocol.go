// Package protocol defines the pipe message format understood by pane-toggler.
//
// A message is a channel name plus a JSON payload. The channel name selects
// the command (open, close, toggle); the payload names the pane and, for
// commands that spawn, the command to run.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/timvw/pane-toggler/internal/model"
)

// Command is a pipe channel name after the namespace prefix is removed.
type Command string

const (
	CommandOpen   Command = "open"
	CommandClose  Command = "close"
	CommandToggle Command = "toggle"
)

// DefaultPrefix is the namespace accepted in front of channel names,
// so "toggler::open" and "open" address the same command.
const DefaultPrefix = "toggler::"

// Actions reported in state-changing responses.
const (
	ActionOpened = "opened"
	ActionClosed = "closed"
)

// Warnings and errors surfaced to callers.
const (
	WarnAlreadyOpened = "pane is already opened"
	WarnNotFound      = "pane not found"
)

// Message is one inbound pipe message.
type Message struct {
	// ID identifies the pipe connection that delivered the message.
	ID string `json:"id,omitempty"`
	// Name is the channel name, e.g. "toggler::open".
	Name string `json:"name"`
	// Payload is the raw JSON request body.
	Payload string `json:"payload"`
}

// Request is the decoded payload of a message.
type Request struct {
	PaneID string   `json:"pane_id"`
	Cmd    string   `json:"cmd,omitempty"`
	Args   []string `json:"args,omitempty"`
	Cwd    string   `json:"cwd,omitempty"`
}

// Spec returns the spawn spec carried by the request.
func (r Request) Spec() model.SpawnSpec {
	return model.SpawnSpec{Cmd: r.Cmd, Args: r.Args, Cwd: r.Cwd}
}

// Response is the single JSON object written back for every message.
type Response struct {
	OK      bool   `json:"ok"`
	Action  string `json:"action,omitempty"`
	Warning string `json:"warning,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK returns a bare success response.
func OK() Response { return Response{OK: true} }

// Done returns a state-changing success response.
func Done(action string) Response { return Response{OK: true, Action: action} }

// Warn returns a success response carrying a caveat.
func Warn(msg string) Response { return Response{OK: true, Warning: msg} }

// Fail returns an error response.
func Fail(msg string) Response { return Response{OK: false, Error: msg} }

// Failf returns an error response with a formatted message.
func Failf(format string, args ...any) Response {
	return Fail(fmt.Sprintf(format, args...))
}

// ErrMissingField is wrapped by validation errors for absent required fields.
var ErrMissingField = errors.New("missing required field")

// ValidationError reports a request that decoded but is unusable.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s is required", e.Field)
}

func (e *ValidationError) Unwrap() error { return ErrMissingField }

// ParseCommand resolves a channel name to a command. The prefix is optional
// on the wire; names that do not resolve return false.
func ParseCommand(name, prefix string) (Command, bool) {
	trimmed := name
	if prefix != "" {
		trimmed = strings.TrimPrefix(name, prefix)
	}
	switch c := Command(trimmed); c {
	case CommandOpen, CommandClose, CommandToggle:
		return c, true
	default:
		return "", false
	}
}

// UnknownCommand is the response for a channel name that does not resolve.
func UnknownCommand(name string) Response {
	return Failf("unknown command: %s", name)
}

// Decode parses a payload into a Request and checks that pane_id is set.
// Whether cmd is required depends on the resolved action, so it is checked
// separately with RequireCmd.
func Decode(payload string) (Request, error) {
	var req Request
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return Request{}, fmt.Errorf("invalid json: %w", err)
	}
	if strings.TrimSpace(req.PaneID) == "" {
		return Request{}, &ValidationError{Field: "pane_id"}
	}
	return req, nil
}

// RequireCmd reports a validation error when the request cannot spawn.
func RequireCmd(req Request) error {
	if strings.TrimSpace(req.Cmd) == "" {
		return &ValidationError{Field: "cmd"}
	}
	return nil
}

// EncodeRequest marshals a request payload for sending.
func EncodeRequest(req Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	return string(data), nil
}
