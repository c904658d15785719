package model

import (
	"fmt"
	"strings"
)

// SpawnSpec describes the command a tracked pane runs.
type SpawnSpec struct {
	// Cmd is the program to execute (e.g., "htop", "lazygit").
	Cmd string `json:"cmd"`
	// Args are passed to Cmd verbatim.
	Args []string `json:"args,omitempty"`
	// Cwd is the working directory. Empty means the host decides.
	Cwd string `json:"cwd,omitempty"`
}

// CommandLine renders the command and args as a single shell-like line for display.
// It is not meant to be re-parsed.
func (s SpawnSpec) CommandLine() string {
	if s.Cmd == "" {
		return ""
	}
	parts := make([]string, 0, len(s.Args)+1)
	parts = append(parts, s.Cmd)
	for _, a := range s.Args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			parts = append(parts, fmt.Sprintf("%q", a))
			continue
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Pane represents a native terminal multiplexer pane as reported by the host.
type Pane struct {
	// Handle is the host-native pane identifier (e.g., "%12" for tmux).
	Handle string `json:"handle"`
	// Target is the positional pane address (e.g., "session:0.1").
	Target string `json:"target"`
	// Session is the session name.
	Session string `json:"session"`
	// Window is the window index.
	Window int `json:"window"`
	// Pane is the pane index.
	Pane int `json:"pane"`
	// PID is the pane's root process ID.
	PID int `json:"pid"`
	// Command is the current command running in the pane.
	Command string `json:"command"`
	// Tag is the client pane_id this pane was opened for, if any.
	Tag string `json:"tag,omitempty"`
}
