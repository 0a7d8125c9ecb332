package ui

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/jp-hoehmann/bun/internal/session"
	"github.com/jp-hoehmann/bun/internal/theme"
	"github.com/jp-hoehmann/bun/internal/whiteboard"
)

// Controller is the part of a session the room screen drives.
type Controller interface {
	State() session.State
	Updates() <-chan struct{}
	ToggleRecording(ctx context.Context) error
	ToggleSlideShow() error
	Draw(shape whiteboard.Shape) error
	Clear() error
	Rename(name string) error
	Leave()
}

// RoomOptions configures the room screen.
type RoomOptions struct {
	Room   string
	Scheme theme.Scheme
	// Store persists theme changes. Nil disables persistence.
	Store theme.Store
	// Stroke produces the shape added by the draw key. Nil draws random lines.
	Stroke func(color string) whiteboard.Shape
}

type stateMsg struct{}

type actionMsg struct {
	op  string
	err error
}

// RoomModel is the bubbletea model of a joined room.
type RoomModel struct {
	ctx  context.Context
	ctrl Controller
	opts RoomOptions

	state     session.State
	scheme    theme.Scheme
	listView  bool
	boardOpen bool
	width     int
	height    int
	spinner   spinner.Model
	rename    textinput.Model
	renaming  bool
	err       error
	quitting  bool
}

// NewRoomModel returns the room screen for ctrl.
func NewRoomModel(ctx context.Context, ctrl Controller, opts RoomOptions) *RoomModel {
	if opts.Scheme.Hex == "" {
		opts.Scheme = theme.Schemes[5]
	}
	if opts.Stroke == nil {
		opts.Stroke = randomStroke
	}
	ApplyScheme(opts.Scheme)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ti := textinput.New()
	ti.Prompt = "name: "
	ti.CharLimit = 32

	return &RoomModel{
		ctx:       ctx,
		ctrl:      ctrl,
		opts:      opts,
		state:     ctrl.State(),
		scheme:    opts.Scheme,
		boardOpen: true,
		spinner:   s,
		rename:    ti,
	}
}

// RunRoom shows the room screen until the user quits or ctx ends.
func RunRoom(ctx context.Context, ctrl Controller, opts RoomOptions) error {
	p := tea.NewProgram(NewRoomModel(ctx, ctrl, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *RoomModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForUpdates())
}

func (m *RoomModel) listenForUpdates() tea.Cmd {
	ch := m.ctrl.Updates()
	return func() tea.Msg {
		select {
		case <-ch:
			return stateMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *RoomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.renaming {
			return m.handleRenameKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case stateMsg:
		m.state = m.ctrl.State()
		return m, m.listenForUpdates()

	case actionMsg:
		m.err = nil
		if msg.err != nil {
			m.err = fmt.Errorf("%s: %w", msg.op, msg.err)
		}
		m.state = m.ctrl.State()

	case spinner.TickMsg:
		if m.state.Connected {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		if m.renaming {
			var cmd tea.Cmd
			m.rename, cmd = m.rename.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *RoomModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.ctrl.Leave()
		return m, tea.Quit

	case "d":
		color := m.scheme.Color()
		return m, m.action("draw", func() error {
			return m.ctrl.Draw(m.opts.Stroke(color))
		})

	case "c":
		return m, m.action("clear", m.ctrl.Clear)

	case "r":
		return m, m.action("recording", func() error {
			return m.ctrl.ToggleRecording(m.ctx)
		})

	case "s":
		return m, m.action("slide show", m.ctrl.ToggleSlideShow)

	case "t":
		m.cycleScheme()
		if m.opts.Store != nil {
			scheme, store := m.scheme, m.opts.Store
			return m, m.action("save theme", func() error {
				return theme.Save(store, scheme)
			})
		}

	case "n":
		m.renaming = true
		m.rename.SetValue("")
		m.rename.Focus()
		return m, textinput.Blink

	case "u":
		m.listView = !m.listView

	case "w":
		m.boardOpen = !m.boardOpen
	}
	return m, nil
}

func (m *RoomModel) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.renaming = false
		m.rename.Blur()
		return m, nil

	case tea.KeyEnter:
		m.renaming = false
		m.rename.Blur()
		name := strings.TrimSpace(m.rename.Value())
		return m, m.action("rename", func() error {
			return m.ctrl.Rename(name)
		})
	}

	var cmd tea.Cmd
	m.rename, cmd = m.rename.Update(msg)
	return m, cmd
}

func (m *RoomModel) action(op string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{op: op, err: fn()}
	}
}

func (m *RoomModel) cycleScheme() {
	next := 0
	for i, s := range theme.Schemes {
		if s.Name == m.scheme.Name {
			next = (i + 1) % len(theme.Schemes)
			break
		}
	}
	m.scheme = theme.Schemes[next]
	ApplyScheme(m.scheme)
}

// Scheme returns the active colour scheme.
func (m *RoomModel) Scheme() theme.Scheme {
	return m.scheme
}

func (m *RoomModel) View() string {
	if m.quitting {
		return ""
	}

	nav := m.navView()
	footer := m.footerView()
	mainHeight := m.height - lipgloss.Height(nav) - lipgloss.Height(footer)

	var body string
	if m.boardOpen {
		body = m.mainView(m.width, mainHeight)
	} else {
		body = m.peopleView()
	}

	return lipgloss.JoinVertical(lipgloss.Left, nav, body, footer)
}

func (m *RoomModel) navView() string {
	status := m.state.Status
	if !m.state.Connected {
		status = m.spinner.View() + " " + status
	}
	title := fmt.Sprintf("%s %s  %s", IconRoom, m.opts.Room, status)
	if m.state.Recording {
		title += "  " + IconRecord + " REC"
	}
	if m.state.SlideShow {
		title += "  slide show"
	}
	style := NavStyle(m.scheme)
	if m.width > 0 {
		style = style.Width(m.width)
	}
	return style.Render(title)
}

func (m *RoomModel) mainView(width, height int) string {
	boardW, boardH := PresentationSize(width, height)
	board := m.boardView(boardW, boardH)
	side := m.peopleView()

	if Landscape(width, height) {
		return lipgloss.JoinHorizontal(lipgloss.Top, board, side)
	}
	return lipgloss.JoinVertical(lipgloss.Left, board, side)
}

func (m *RoomModel) boardView(width, height int) string {
	// The border takes one cell on each side.
	innerW, innerH := max(width-2, 0), max(height-2, 0)

	var content string
	if !m.state.Whiteboard {
		content = lipgloss.Place(innerW, innerH, lipgloss.Center, lipgloss.Center,
			MutedStyle.Render("waiting for whiteboard"))
	} else {
		c := NewCanvas(innerW, innerH)
		c.Draw(m.state.Shapes)
		content = c.View()
	}
	return PanelStyle.Render(content)
}

func (m *RoomModel) peopleView() string {
	if m.listView {
		return PeopleTableView(m.state.People)
	}
	return PeopleCompactView(m.state.People)
}

func (m *RoomModel) footerView() string {
	toggle := "Close whiteboard"
	if !m.boardOpen {
		toggle = "Open whiteboard"
	}
	keys := []string{
		"d draw", "c clear", "r record", "s slide show",
		"n rename", "t theme", "u people", "w " + toggle, "q quit",
	}
	out := FooterStyle.Render(strings.Join(keys, " • "))
	if m.renaming {
		out = m.rename.View() + "\n" + out
	}
	if m.err != nil {
		out = FormatError(m.err) + "\n" + out
	}
	return out
}

func randomStroke(color string) whiteboard.Shape {
	return whiteboard.Shape{
		ID:          uuid.NewString(),
		Type:        "line",
		X1:          rand.Float64(),
		Y1:          rand.Float64(),
		X2:          rand.Float64(),
		Y2:          rand.Float64(),
		StrokeColor: color,
		StrokeWidth: 2,
	}
}
