package feedview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/pollexa/internal/feed"
	"github.com/marcus/pollexa/internal/models"
)

type voteCall struct {
	option   string
	position int
}

type fakeEngine struct {
	mu        sync.Mutex
	votes     []voteCall
	refreshes int
	pages     int
	voteErr   error
	initial   []feed.Event
}

func (f *fakeEngine) Subscribe(ctx context.Context, fn func(feed.Event)) (func(), error) {
	for _, ev := range f.initial {
		fn(ev)
	}
	return func() {}, nil
}

func (f *fakeEngine) Vote(ctx context.Context, option models.Option, position int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes = append(f.votes, voteCall{option.ID, position})
	return f.voteErr
}

func (f *fakeEngine) Refresh(ctx context.Context) error {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) LoadNextPage(ctx context.Context) error {
	f.mu.Lock()
	f.pages++
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) PageTitle() string { return feed.DefaultPageTitle }

func testRows() []feed.Row {
	return feed.BuildRows([]models.Poll{
		{
			ID:        "1",
			CreatedAt: time.Now().Add(-time.Hour),
			Content:   "Which sneakers?",
			Options:   []models.Option{{ID: "A", VotedCount: 3}, {ID: "B", VotedCount: 1}},
			Author:    &models.User{ID: "u1", Username: "emirhan"},
		},
		{
			ID:        "2",
			CreatedAt: time.Now().Add(-2 * time.Hour),
			Content:   "Mountains or seaside?",
			Options:   []models.Option{{ID: "1"}, {ID: "2"}},
		},
		{
			ID:        "3",
			CreatedAt: time.Now().Add(-3 * time.Hour),
			Content:   "Coffee or tea?",
			Options:   []models.Option{{ID: "1"}, {ID: "2"}, {ID: "3", VotedCount: 2}},
		},
	}, nil)
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

// loaded returns a model that has received a posts state and rows
func loaded(t *testing.T, eng *fakeEngine) Model {
	t.Helper()
	m := NewModel(context.Background(), eng)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = update(t, m, EventMsg{Kind: feed.EventState, State: feed.StatePosts})
	m, _ = update(t, m, EventMsg{Kind: feed.EventRows, Rows: testRows()})
	return m
}

func TestApplyEvents(t *testing.T) {
	m := loaded(t, &fakeEngine{})

	if m.State != feed.StatePosts {
		t.Errorf("State = %s", m.State)
	}
	if len(m.Rows) != 3 || len(m.Visible) != 3 {
		t.Errorf("rows=%d visible=%d, want 3 3", len(m.Rows), len(m.Visible))
	}

	boom := errors.New("boom")
	m, _ = update(t, m, EventMsg{Kind: feed.EventState, State: feed.StateEmpty, Err: boom})
	m, _ = update(t, m, EventMsg{Kind: feed.EventRows, Rows: []feed.Row{}})
	if m.State != feed.StateEmpty || !errors.Is(m.Err, boom) {
		t.Errorf("State=%s Err=%v", m.State, m.Err)
	}
	if m.SelectedPosition() != -1 {
		t.Errorf("SelectedPosition = %d on empty feed", m.SelectedPosition())
	}
}

func TestEventMsgKeepsListening(t *testing.T) {
	m := NewModel(context.Background(), &fakeEngine{})
	_, cmd := update(t, m, EventMsg{Kind: feed.EventState, State: feed.StateLoading})
	if cmd == nil {
		t.Fatal("expected a command waiting for the next event")
	}

	m.events <- feed.Event{Kind: feed.EventState, State: feed.StatePosts}
	msg := cmd()
	ev, ok := msg.(EventMsg)
	if !ok || ev.State != feed.StatePosts {
		t.Errorf("cmd() = %#v", msg)
	}
}

func TestSubscribeForwardsEvents(t *testing.T) {
	eng := &fakeEngine{initial: []feed.Event{
		{Kind: feed.EventState, State: feed.StateLoading},
		{Kind: feed.EventRows},
	}}
	m := NewModel(context.Background(), eng)

	msg := m.subscribe()()
	sub, ok := msg.(subscribedMsg)
	if !ok || sub.err != nil {
		t.Fatalf("subscribe() = %#v", msg)
	}

	first := <-m.events
	second := <-m.events
	if first.Kind != feed.EventState || second.Kind != feed.EventRows {
		t.Errorf("events = %v, %v; want state then rows", first.Kind, second.Kind)
	}
}

func TestCursorMovement(t *testing.T) {
	m := loaded(t, &fakeEngine{})

	m, _ = update(t, m, keyMsg("j"))
	m, _ = update(t, m, keyMsg("down"))
	m, _ = update(t, m, keyMsg("j"))
	if m.Cursor != 2 {
		t.Errorf("Cursor = %d, want 2 (clamped)", m.Cursor)
	}

	m, _ = update(t, m, keyMsg("k"))
	if m.Cursor != 1 {
		t.Errorf("Cursor = %d, want 1", m.Cursor)
	}

	m, _ = update(t, m, keyMsg("g"))
	if m.Cursor != 0 {
		t.Errorf("Cursor = %d after g, want 0", m.Cursor)
	}
	m, _ = update(t, m, keyMsg("up"))
	if m.Cursor != 0 {
		t.Errorf("Cursor = %d, want 0 (clamped)", m.Cursor)
	}
	m, _ = update(t, m, keyMsg("G"))
	if m.Cursor != 2 {
		t.Errorf("Cursor = %d after G, want 2", m.Cursor)
	}
}

func TestVoteKeys(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want voteCall
	}{
		{"a votes first option", []string{"a"}, voteCall{"A", 0}},
		{"b votes second option", []string{"b"}, voteCall{"B", 0}},
		{"digit on second row", []string{"j", "2"}, voteCall{"2", 1}},
		{"third option", []string{"j", "j", "3"}, voteCall{"3", 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{}
			m := loaded(t, eng)

			var cmd tea.Cmd
			for _, k := range tt.keys {
				m, cmd = update(t, m, keyMsg(k))
			}
			if cmd == nil {
				t.Fatal("expected a vote command")
			}
			msg := cmd()
			if done, ok := msg.(ActionDoneMsg); !ok || done.Action != "vote" || done.Err != nil {
				t.Errorf("cmd() = %#v", msg)
			}
			if len(eng.votes) != 1 || eng.votes[0] != tt.want {
				t.Errorf("votes = %v, want [%v]", eng.votes, tt.want)
			}
		})
	}
}

func TestVoteKeyOutOfRangeOption(t *testing.T) {
	m := loaded(t, &fakeEngine{})
	if _, cmd := update(t, m, keyMsg("3")); cmd != nil {
		t.Error("option 3 on a two-option poll should not produce a command")
	}

	empty := NewModel(context.Background(), &fakeEngine{})
	if _, cmd := update(t, empty, keyMsg("1")); cmd != nil {
		t.Error("voting with no rows should not produce a command")
	}
}

func TestActionFailureShowsStatus(t *testing.T) {
	m := loaded(t, &fakeEngine{})
	m, _ = update(t, m, ActionDoneMsg{Action: "refresh", Err: errors.New("offline")})
	if !strings.Contains(m.Status, "refresh failed: offline") {
		t.Errorf("Status = %q", m.Status)
	}
	if !strings.Contains(m.View(), "refresh failed") {
		t.Error("status not rendered")
	}

	m, _ = update(t, m, ActionDoneMsg{Action: "vote"})
	if m.Status != "" {
		t.Errorf("Status = %q after success", m.Status)
	}
}

func TestRefreshAndNextPageKeys(t *testing.T) {
	eng := &fakeEngine{}
	m := loaded(t, eng)

	_, cmd := update(t, m, keyMsg("r"))
	if cmd == nil {
		t.Fatal("r produced no command")
	}
	cmd()
	_, cmd = update(t, m, keyMsg("n"))
	if cmd == nil {
		t.Fatal("n produced no command")
	}
	cmd()

	if eng.refreshes != 1 || eng.pages != 1 {
		t.Errorf("refreshes=%d pages=%d", eng.refreshes, eng.pages)
	}
}

func TestFilterKeepsFeedPositions(t *testing.T) {
	eng := &fakeEngine{}
	m := loaded(t, eng)

	m, _ = update(t, m, keyMsg("/"))
	if !m.Filtering {
		t.Fatal("expected filter mode")
	}
	for _, r := range "coffee" {
		m, _ = update(t, m, keyMsg(string(r)))
	}
	m, _ = update(t, m, keyMsg("enter"))

	if m.Filtering {
		t.Error("enter should leave filter mode")
	}
	if len(m.Visible) != 1 || m.Visible[0] != 2 {
		t.Fatalf("Visible = %v, want [2]", m.Visible)
	}

	_, cmd := update(t, m, keyMsg("1"))
	if cmd == nil {
		t.Fatal("expected a vote command")
	}
	cmd()
	if len(eng.votes) != 1 || eng.votes[0].position != 2 {
		t.Errorf("votes = %v, want position 2", eng.votes)
	}

	m, _ = update(t, m, keyMsg("esc"))
	if len(m.Visible) != 3 {
		t.Errorf("Visible = %v after clearing filter", m.Visible)
	}
	if m.SelectedPosition() != 2 {
		t.Errorf("SelectedPosition = %d, want the filtered poll to stay selected", m.SelectedPosition())
	}
}

func TestRowsUpdateKeepsSelection(t *testing.T) {
	m := loaded(t, &fakeEngine{})
	m, _ = update(t, m, keyMsg("j"))

	rows := testRows()
	rows[1].TotalVoteCount = 99
	m, _ = update(t, m, EventMsg{Kind: feed.EventRows, Rows: rows})

	if m.SelectedPosition() != 1 {
		t.Errorf("SelectedPosition = %d, want 1", m.SelectedPosition())
	}
}

func TestViewStates(t *testing.T) {
	eng := &fakeEngine{}
	m := NewModel(context.Background(), eng)

	if got := m.View(); got != "Loading..." {
		t.Errorf("View before size = %q", got)
	}

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = update(t, m, EventMsg{Kind: feed.EventState, State: feed.StateLoading})
	view := m.View()
	if !strings.Contains(view, "Discover") || !strings.Contains(view, "Loading polls") || !strings.Contains(view, "░") {
		t.Errorf("loading view missing title, indicator or placeholders:\n%s", view)
	}

	m, _ = update(t, m, EventMsg{Kind: feed.EventState, State: feed.StateEmpty})
	m, _ = update(t, m, EventMsg{Kind: feed.EventRows, Rows: []feed.Row{}})
	if view := m.View(); !strings.Contains(view, "No polls yet") {
		t.Errorf("empty view:\n%s", view)
	}

	m, _ = update(t, m, EventMsg{Kind: feed.EventState, State: feed.StateEmpty, Err: errors.New("posts.json: dataset not found")})
	if view := m.View(); !strings.Contains(view, "Couldn't load polls") || !strings.Contains(view, "dataset not found") {
		t.Errorf("error view:\n%s", view)
	}

	m, _ = update(t, m, EventMsg{Kind: feed.EventState, State: feed.StatePosts})
	m, _ = update(t, m, EventMsg{Kind: feed.EventRows, Rows: testRows()})
	view = m.View()
	for _, want := range []string{"Which sneakers?", "emirhan", "4 votes", "3 polls"} {
		if !strings.Contains(view, want) {
			t.Errorf("posts view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "%") {
		t.Error("shares shown before any vote")
	}

	m, _ = update(t, m, EventMsg{Kind: feed.EventState, State: feed.StateRefreshing})
	if view := m.View(); !strings.Contains(view, "Refreshing") {
		t.Errorf("refreshing view:\n%s", view)
	}
}

func TestViewShowsSharesAfterVote(t *testing.T) {
	m := loaded(t, &fakeEngine{})
	rows := testRows()
	rows[0].HasCurrentUserVoted = true
	m, _ = update(t, m, EventMsg{Kind: feed.EventRows, Rows: rows})

	view := m.View()
	if !strings.Contains(view, "75.0%") || !strings.Contains(view, "[voted]") {
		t.Errorf("voted card missing share or badge:\n%s", view)
	}
}

func TestHelpAndCompactViews(t *testing.T) {
	m := loaded(t, &fakeEngine{})
	m, _ = update(t, m, keyMsg("?"))
	if !m.ShowHelp || !strings.Contains(m.View(), "vote for option N") {
		t.Error("help overlay not shown")
	}
	m, _ = update(t, m, keyMsg("?"))
	if m.ShowHelp {
		t.Error("? should toggle help off")
	}

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 30, Height: 8})
	if view := m.View(); !strings.Contains(view, "resize for full view") {
		t.Errorf("compact view:\n%s", view)
	}
}

func TestQuit(t *testing.T) {
	m := loaded(t, &fakeEngine{})
	_, cmd := update(t, m, keyMsg("q"))
	if cmd == nil {
		t.Fatal("q produced no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestScrollFollowsCursor(t *testing.T) {
	m := loaded(t, &fakeEngine{})
	// Room for a single card
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: MinHeight})

	m, _ = update(t, m, keyMsg("j"))
	m, _ = update(t, m, keyMsg("j"))
	if m.ScrollOffset != 2 {
		t.Errorf("ScrollOffset = %d, want 2", m.ScrollOffset)
	}
	m, _ = update(t, m, keyMsg("k"))
	if m.ScrollOffset != 1 {
		t.Errorf("ScrollOffset = %d, want 1", m.ScrollOffset)
	}
}
