// Package watch is the interactive notification view.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/notifsync/pkg/models"
	"github.com/grovetools/notifsync/pkg/notifsync"
	"github.com/grovetools/notifsync/tui/theme"
)

const commandTimeout = 30 * time.Second

type viewMsg notifsync.View

type closedMsg struct{}

type resultMsg struct {
	action string
	err    error
}

// Model renders a notifsync.Client and forwards key presses to it as commands.
type Model struct {
	client notifsync.Client
	views  <-chan notifsync.View

	view       notifsync.View
	unreadOnly bool
	cursor     int
	status     string
	width      int
	height     int
	keys       KeyMap
	help       help.Model
	spinner    spinner.Model
	theme      *theme.Theme
	now        func() time.Time
}

// New creates a model reading views from client.Subscribe().
func New(client notifsync.Client, views <-chan notifsync.View) Model {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	return Model{
		client:  client,
		views:   views,
		view:    client.View(),
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: s,
		theme:   theme.DefaultTheme,
		now:     time.Now,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForView(m.views))
}

func waitForView(views <-chan notifsync.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-views
		if !ok {
			return closedMsg{}
		}
		return viewMsg(v)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case viewMsg:
		m.view = notifsync.View(msg)
		m.clamp()
		return m, waitForView(m.views)

	case closedMsg:
		return m, tea.Quit

	case resultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = ""
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.list())-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Unread):
		m.unreadOnly = !m.unreadOnly
		m.clamp()
	case key.Matches(msg, m.keys.Read):
		if n, ok := m.selected(); ok {
			return m, m.run("mark read", func(ctx context.Context) error {
				return m.client.MarkAsRead(ctx, n.ID)
			})
		}
	case key.Matches(msg, m.keys.ReadAll):
		return m, m.run("mark all read", m.client.MarkAllAsRead)
	case key.Matches(msg, m.keys.Delete):
		if n, ok := m.selected(); ok {
			return m, m.run("delete", func(ctx context.Context) error {
				return m.client.DeleteNotification(ctx, n.ID)
			})
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.run("refresh", m.client.Refresh)
	}
	return m, nil
}

func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return resultMsg{action: action, err: fn(ctx)}
	}
}

// list is the slice of the current view the user sees.
func (m Model) list() []models.Notification {
	if !m.unreadOnly {
		return m.view.Notifications
	}
	var out []models.Notification
	for _, n := range m.view.Notifications {
		if !n.IsRead {
			out = append(out, n)
		}
	}
	return out
}

func (m Model) selected() (models.Notification, bool) {
	list := m.list()
	if m.cursor < 0 || m.cursor >= len(list) {
		return models.Notification{}, false
	}
	return list[m.cursor], true
}

func (m *Model) clamp() {
	if n := len(m.list()); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View implements tea.Model.
func (m Model) View() string {
	t := m.theme
	var b strings.Builder

	header := t.Header.Render("NOTIFICATIONS")
	badge := t.Badge.Render(fmt.Sprintf("%d unread", m.view.UnreadCount))
	conn := t.Connection(m.view.Connection.String(), m.view.IsConnected)
	fmt.Fprintf(&b, " %s  %s  %s", header, badge, conn)
	if m.unreadOnly {
		b.WriteString("  " + t.Muted.Render("(unread only)"))
	}
	if m.view.IsLoading {
		fmt.Fprintf(&b, "  %s", m.spinner.View())
	}
	b.WriteString("\n\n")

	if m.view.LastError != "" {
		b.WriteString(" " + t.Error.Render(m.view.LastError) + "\n\n")
	}

	list := m.list()
	switch {
	case len(list) == 0 && m.unreadOnly:
		b.WriteString(" " + t.Muted.Render("No unread notifications") + "\n")
	case len(list) == 0:
		b.WriteString(" " + t.Muted.Render("No notifications") + "\n")
	}
	now := m.now()
	for i, n := range m.visible(list) {
		b.WriteString(m.row(i+m.offset(), n, now) + "\n")
	}

	if m.status != "" {
		b.WriteString("\n " + t.Warning.Render(m.status) + "\n")
	}
	b.WriteString("\n " + m.help.View(m.keys))
	return b.String()
}

func (m Model) row(index int, n models.Notification, now time.Time) string {
	t := m.theme
	label := n.Title
	if label == "" {
		label = n.KindLabel
	}
	marker := " "
	style := t.Read
	if !n.IsRead {
		marker = "●"
		style = t.Unread
	}
	line := fmt.Sprintf(" %s %s %s  %s",
		marker, theme.Icon(n.Kind.Category()), style.Render(label), t.Muted.Render(n.Age(now)))
	var info []string
	if d := detailLabel(n.Detail()); d != "" {
		info = append(info, d)
	}
	if n.Body != "" {
		info = append(info, n.Body)
	}
	if len(info) > 0 {
		line += "\n     " + t.Muted.Render(strings.Join(info, " · "))
	}
	if index == m.cursor {
		return t.Selected.Render(line)
	}
	return line
}

// detailLabel names the record a notification points at, or "" when the
// deep link carries no id.
func detailLabel(d models.Detail) string {
	switch d := d.(type) {
	case models.OrderDetail:
		if d.OrderID > 0 {
			return fmt.Sprintf("order #%d", d.OrderID)
		}
	case models.StockDetail:
		if d.ItemID > 0 {
			return fmt.Sprintf("item #%d", d.ItemID)
		}
	case models.CatalogDetail:
		if d.VehicleID > 0 {
			return fmt.Sprintf("vehicle #%d", d.VehicleID)
		}
	case models.RegistrationDetail:
		if d.ClientID > 0 {
			return fmt.Sprintf("client #%d", d.ClientID)
		}
	case models.OtherDetail:
		return d.Link
	}
	return ""
}

// rows that fit the window; each notification takes up to two lines
func (m Model) pageSize() int {
	if m.height <= 0 {
		return len(m.list())
	}
	size := (m.height - 8) / 2
	if size < 1 {
		size = 1
	}
	return size
}

func (m Model) offset() int {
	size := m.pageSize()
	if m.cursor < size {
		return 0
	}
	return m.cursor - size + 1
}

func (m Model) visible(list []models.Notification) []models.Notification {
	start := m.offset()
	end := start + m.pageSize()
	if end > len(list) {
		end = len(list)
	}
	if start > end {
		start = end
	}
	return list[start:end]
}
