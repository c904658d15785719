// Package dashboard is the interactive view of a running pane-toggler: the
// tracked panes with their lifecycle state and the most recent transitions.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/timvw/pane-toggler/internal/events"
	"github.com/timvw/pane-toggler/internal/protocol"
	"github.com/timvw/pane-toggler/internal/registry"
)

const recentEvents = 8

// Source is the running toggler. toggler.Loop implements it.
type Source interface {
	Snapshot(ctx context.Context) ([]registry.Entry, error)
	Submit(ctx context.Context, msg protocol.Message) (protocol.Response, error)
}

// Dashboard runs the TUI.
type Dashboard struct {
	Source          Source
	Events          *events.Store // optional
	Prefix          string
	RefreshInterval time.Duration // 0 disables auto-refresh
	Theme           string
}

// Run blocks until the user quits or ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	m := newModel(ctx, d)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// messages
type snapshotMsg struct {
	entries []registry.Entry
	recent  []events.Event
	err     error
}

type actionMsg struct {
	paneID  string
	command protocol.Command
	resp    protocol.Response
	err     error
}

type tickMsg struct{}

type dashModel struct {
	ctx     context.Context
	source  Source
	store   *events.Store
	prefix  string
	refresh time.Duration

	entries []registry.Entry
	recent  []events.Event

	table  table.Model
	help   help.Model
	keys   keyMap
	styles styles

	width      int
	height     int
	refreshing bool
	message    string
	messageErr bool
}

func newModel(ctx context.Context, d *Dashboard) *dashModel {
	st := newStyles(ThemeByName(d.Theme))
	t := table.New(
		table.WithColumns(columns(100)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(st.table)

	return &dashModel{
		ctx:     ctx,
		source:  d.Source,
		store:   d.Events,
		prefix:  d.Prefix,
		refresh: d.RefreshInterval,
		table:   t,
		help:    help.New(),
		keys:    defaultKeyMap(),
		styles:  st,
	}
}

// columns sizes the table for a terminal of the given width.
func columns(width int) []table.Column {
	command := width - 16 - 9 - 8 - 10 - 10
	if command < 12 {
		command = 12
	}
	return []table.Column{
		{Title: "PANE ID", Width: 16},
		{Title: "STATE", Width: 9},
		{Title: "HANDLE", Width: 8},
		{Title: "COMMAND", Width: command},
		{Title: "UPDATED", Width: 10},
	}
}

func (m *dashModel) Init() tea.Cmd {
	m.refreshing = true
	return m.fetch()
}

func (m *dashModel) fetch() tea.Cmd {
	ctx, src, store := m.ctx, m.source, m.store
	return func() tea.Msg {
		entries, err := src.Snapshot(ctx)
		var recent []events.Event
		if store != nil {
			recent = store.Recent(time.Now().UTC(), recentEvents)
		}
		return snapshotMsg{entries: entries, recent: recent, err: err}
	}
}

// scheduleTick returns nil when auto-refresh is disabled.
func (m *dashModel) scheduleTick() tea.Cmd {
	if m.refresh <= 0 {
		return nil
	}
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *dashModel) submit(command protocol.Command, e registry.Entry) tea.Cmd {
	req := protocol.Request{PaneID: e.PaneID}
	if command == protocol.CommandToggle {
		req.Cmd, req.Args, req.Cwd = e.Spec.Cmd, e.Spec.Args, e.Spec.Cwd
	}
	payload, encErr := protocol.EncodeRequest(req)
	ctx, src := m.ctx, m.source
	name := m.prefix + string(command)

	return func() tea.Msg {
		if encErr != nil {
			return actionMsg{paneID: e.PaneID, command: command, err: encErr}
		}
		resp, err := src.Submit(ctx, protocol.Message{ID: "dashboard", Name: name, Payload: payload})
		return actionMsg{paneID: e.PaneID, command: command, resp: resp, err: err}
	}
}

func (m *dashModel) selected() (registry.Entry, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.entries) {
		return registry.Entry{}, false
	}
	return m.entries[i], true
}

func (m *dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.table.SetColumns(columns(msg.Width))
		// title, section header, events, message, help
		h := msg.Height - recentEvents - 6
		if h < 3 {
			h = 3
		}
		m.table.SetHeight(h)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case snapshotMsg:
		m.refreshing = false
		if msg.err != nil {
			m.setMessage(fmt.Sprintf("Refresh failed: %v", msg.err), true)
		} else {
			m.setEntries(msg.entries)
			m.recent = msg.recent
		}
		return m, m.scheduleTick()

	case tickMsg:
		if m.refreshing {
			return m, m.scheduleTick()
		}
		m.refreshing = true
		return m, m.fetch()

	case actionMsg:
		m.setMessage(describeAction(msg))
		m.refreshing = true
		return m, m.fetch()
	}
	return m, nil
}

func (m *dashModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		if m.refreshing {
			return m, nil
		}
		m.refreshing = true
		return m, m.fetch()
	case key.Matches(msg, m.keys.Close):
		e, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.setMessage(fmt.Sprintf("Closing %s...", e.PaneID), false)
		return m, m.submit(protocol.CommandClose, e)
	case key.Matches(msg, m.keys.Toggle):
		e, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.setMessage(fmt.Sprintf("Toggling %s...", e.PaneID), false)
		return m, m.submit(protocol.CommandToggle, e)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *dashModel) setEntries(entries []registry.Entry) {
	m.entries = entries
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		handle := e.Handle
		if handle == "" {
			handle = "-"
		}
		rows = append(rows, table.Row{
			e.PaneID,
			e.State.String(),
			handle,
			e.Spec.CommandLine(),
			e.UpdatedAt.Local().Format("15:04:05"),
		})
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) {
		m.table.SetCursor(max(0, len(rows)-1))
	}
}

func (m *dashModel) setMessage(s string, isErr bool) {
	m.message = s
	m.messageErr = isErr
}

func describeAction(msg actionMsg) (string, bool) {
	switch {
	case msg.err != nil:
		return fmt.Sprintf("%s %s: %v", msg.command, msg.paneID, msg.err), true
	case !msg.resp.OK:
		return fmt.Sprintf("%s %s: %s", msg.command, msg.paneID, msg.resp.Error), true
	case msg.resp.Warning != "":
		return fmt.Sprintf("%s %s: %s", msg.command, msg.paneID, msg.resp.Warning), false
	case msg.resp.Action != "":
		return fmt.Sprintf("%s %s", msg.paneID, msg.resp.Action), false
	default:
		return fmt.Sprintf("%s %s: ok", msg.command, msg.paneID), false
	}
}

func (m *dashModel) View() string {
	var b strings.Builder

	var open, busy, closed int
	for _, e := range m.entries {
		switch {
		case e.State == registry.StateOpen:
			open++
		case e.State.Busy():
			busy++
		default:
			closed++
		}
	}
	b.WriteString(m.styles.title.Render("pane-toggler"))
	b.WriteString(m.styles.dim.Render(fmt.Sprintf("  %d tracked · ", len(m.entries))))
	b.WriteString(m.styles.open.Render(fmt.Sprintf("%d open", open)))
	b.WriteString(m.styles.dim.Render(" · "))
	b.WriteString(m.styles.busy.Render(fmt.Sprintf("%d busy", busy)))
	b.WriteString(m.styles.dim.Render(" · "))
	b.WriteString(m.styles.closed.Render(fmt.Sprintf("%d closed", closed)))
	if m.refreshing {
		b.WriteString(m.styles.dim.Render("  refreshing..."))
	}
	b.WriteString("\n")

	if len(m.entries) == 0 {
		b.WriteString(m.styles.dim.Render("No tracked panes."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	b.WriteString(m.styles.section.Render("Recent activity"))
	b.WriteString("\n")
	if len(m.recent) == 0 {
		b.WriteString(m.styles.dim.Render("  none"))
		b.WriteString("\n")
	}
	for _, e := range m.recent {
		b.WriteString(m.renderEvent(e))
		b.WriteString("\n")
	}

	if m.message != "" {
		style := m.styles.text
		if m.messageErr {
			style = m.styles.err
		}
		b.WriteString(style.Render(m.message))
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *dashModel) renderEvent(e events.Event) string {
	kind := fmt.Sprintf("%-15s", e.Kind)
	switch {
	case events.IsFailure(e.Kind):
		kind = m.styles.err.Render(kind)
	case e.Kind == events.KindOpened:
		kind = m.styles.open.Render(kind)
	case e.Kind == events.KindExited, e.Kind == events.KindOpenRequested, e.Kind == events.KindCloseRequested:
		kind = m.styles.busy.Render(kind)
	default:
		kind = m.styles.closed.Render(kind)
	}

	line := fmt.Sprintf("  %s %s %s", m.styles.dim.Render(e.TS.Local().Format("15:04:05")), kind, e.PaneID)
	if e.Handle != "" {
		line += m.styles.dim.Render(" " + e.Handle)
	}
	if e.Command != "" {
		line += " " + e.Command
	}
	if e.Detail != "" {
		line += m.styles.err.Render(" " + e.Detail)
	}
	return line
}
