// Package feedview is the terminal shell for the poll feed. It renders what
// the engine publishes and turns key presses into engine calls; it holds no
// poll state of its own.
package feedview

import (
	"context"
	"log/slog"
	"slices"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/pollexa/internal/feed"
	"github.com/marcus/pollexa/internal/models"
)

// Engine is the part of *feed.Engine the shell drives
type Engine interface {
	Subscribe(ctx context.Context, fn func(feed.Event)) (func(), error)
	Vote(ctx context.Context, option models.Option, position int) error
	Refresh(ctx context.Context) error
	LoadNextPage(ctx context.Context) error
	PageTitle() string
}

// MinWidth is the minimum terminal width for the card layout
const MinWidth = 40

// MinHeight is the minimum terminal height for the card layout
const MinHeight = 12

// eventBuffer bounds how far the engine can run ahead of rendering
const eventBuffer = 64

// Model is the Bubble Tea model for the feed screen
type Model struct {
	engine Engine
	ctx    context.Context
	events chan feed.Event
	title  string

	// Window dimensions
	Width  int
	Height int

	// Published feed
	State feed.State
	Err   error
	Rows  []feed.Row

	// UI state
	Cursor       int   // index into Visible
	ScrollOffset int   // first visible card
	Visible      []int // row positions shown, in feed order
	ShowHelp     bool
	Filtering    bool
	Status       string // outcome of the last action

	filter  textinput.Model
	spinner spinner.Model
}

// EventMsg carries one engine event into the update loop
type EventMsg feed.Event

// ActionDoneMsg reports a finished engine call
type ActionDoneMsg struct {
	Action string
	Err    error
}

// subscribedMsg is sent once the subscription is in place
type subscribedMsg struct {
	unsubscribe func()
	err         error
}

// NewModel creates the feed screen. Events stop flowing once ctx is done,
// so the caller should cancel it after the program exits.
func NewModel(ctx context.Context, engine Engine) Model {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter polls"
	ti.CharLimit = 64

	return Model{
		engine:  engine,
		ctx:     ctx,
		events:  make(chan feed.Event, eventBuffer),
		title:   engine.PageTitle(),
		State:   feed.StateInitialized,
		filter:  ti,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.subscribe(),
		waitForEvent(m.events),
		m.spinner.Tick,
	)
}

// subscribe registers a listener that forwards engine events to the model's
// channel. The listener runs on the engine goroutine, so it only ever
// hands off and never touches the model.
func (m Model) subscribe() tea.Cmd {
	ctx, engine, events := m.ctx, m.engine, m.events
	return func() tea.Msg {
		unsubscribe, err := engine.Subscribe(ctx, func(ev feed.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		return subscribedMsg{unsubscribe: unsubscribe, err: err}
	}
}

func waitForEvent(events <-chan feed.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return EventMsg(ev)
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Filtering {
			return m.handleFilterKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.ensureCursorVisible()
		return m, nil

	case EventMsg:
		m.applyEvent(feed.Event(msg))
		return m, waitForEvent(m.events)

	case subscribedMsg:
		if msg.err != nil {
			slog.Error("subscribe to feed", "err", msg.err)
			m.Err = msg.err
			return m, nil
		}
		// Drop the listener once the screen's context ends
		go func(ctx context.Context, unsubscribe func()) {
			<-ctx.Done()
			unsubscribe()
		}(m.ctx, msg.unsubscribe)
		return m, nil

	case ActionDoneMsg:
		if msg.Err != nil {
			slog.Warn("feed action failed", "action", msg.Action, "err", msg.Err)
			m.Status = msg.Action + " failed: " + msg.Err.Error()
		} else {
			m.Status = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) applyEvent(ev feed.Event) {
	switch ev.Kind {
	case feed.EventState:
		m.State = ev.State
		m.Err = ev.Err
	case feed.EventRows:
		m.Rows = ev.Rows
		m.refilter()
	}
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "j", "down":
		if m.Cursor < len(m.Visible)-1 {
			m.Cursor++
		}
		m.ensureCursorVisible()
		return m, nil

	case "k", "up":
		if m.Cursor > 0 {
			m.Cursor--
		}
		m.ensureCursorVisible()
		return m, nil

	case "g", "home":
		m.Cursor = 0
		m.ensureCursorVisible()
		return m, nil

	case "G", "end":
		m.Cursor = max(len(m.Visible)-1, 0)
		m.ensureCursorVisible()
		return m, nil

	case "a":
		return m, m.vote(0)
	case "b":
		return m, m.vote(1)
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		return m, m.vote(int(msg.Runes[0] - '1'))

	case "r":
		m.Status = ""
		return m, m.run("refresh", m.engine.Refresh)

	case "n":
		return m, m.run("load more", m.engine.LoadNextPage)

	case "/":
		m.Filtering = true
		return m, m.filter.Focus()

	case "esc":
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.refilter()
		}
		m.ShowHelp = false
		return m, nil

	case "?":
		m.ShowHelp = !m.ShowHelp
		return m, nil
	}

	return m, nil
}

// handleFilterKey routes keys to the filter input until enter or esc
func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.Filtering = false
		m.filter.Blur()
		return m, nil
	case "esc":
		m.Filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.refilter()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.refilter()
	return m, cmd
}

// SelectedPosition returns the feed position under the cursor, or -1
func (m Model) SelectedPosition() int {
	if m.Cursor < 0 || m.Cursor >= len(m.Visible) {
		return -1
	}
	return m.Visible[m.Cursor]
}

// vote casts a vote for the option at index optionIdx on the selected row.
// The engine validates the target; a stale position is a no-op there.
func (m Model) vote(optionIdx int) tea.Cmd {
	pos := m.SelectedPosition()
	if pos < 0 || optionIdx < 0 || optionIdx >= len(m.Rows[pos].Options) {
		return nil
	}
	option := m.Rows[pos].Options[optionIdx]
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		return ActionDoneMsg{Action: "vote", Err: engine.Vote(ctx, option, pos)}
	}
}

// run calls an engine method off the update loop
func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return ActionDoneMsg{Action: action, Err: fn(ctx)}
	}
}

// refilter recomputes Visible from the filter and keeps the cursor on the
// same poll when it is still shown
func (m *Model) refilter() {
	selectedID := ""
	if pos := m.SelectedPosition(); pos >= 0 && pos < len(m.Rows) {
		selectedID = m.Rows[pos].ID
	}

	if q := m.filter.Value(); q != "" {
		m.Visible = feed.Find(m.Rows, q)
		slices.Sort(m.Visible)
	} else {
		m.Visible = make([]int, len(m.Rows))
		for i := range m.Rows {
			m.Visible[i] = i
		}
	}

	m.Cursor = 0
	for i, pos := range m.Visible {
		if m.Rows[pos].ID == selectedID {
			m.Cursor = i
			break
		}
	}
	m.ensureCursorVisible()
}

// ensureCursorVisible scrolls so the selected card is on screen
func (m *Model) ensureCursorVisible() {
	per := m.cardsPerPage()
	if m.Cursor < m.ScrollOffset {
		m.ScrollOffset = m.Cursor
	}
	if m.Cursor >= m.ScrollOffset+per {
		m.ScrollOffset = m.Cursor - per + 1
	}
	if m.ScrollOffset < 0 {
		m.ScrollOffset = 0
	}
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}
