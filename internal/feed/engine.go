package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marcus/pollexa/internal/models"
	"github.com/marcus/pollexa/internal/repository"
)

var (
	// ErrInvalidVoteTarget means the poll position or id, or the option id,
	// does not match the current feed
	ErrInvalidVoteTarget = errors.New("invalid vote target")
	// ErrClosed is returned by calls made after Close
	ErrClosed = errors.New("feed engine closed")
)

// DefaultPageTitle is the title shown above the feed
const DefaultPageTitle = "Discover"

// EventKind tells which part of the feed changed
type EventKind int

const (
	EventState EventKind = iota
	EventRows
)

// Event is delivered to subscribers after every change. State events carry
// the last load error (nil after a successful load) so an empty feed caused
// by a failure can be told apart from a legitimately empty one.
type Event struct {
	Kind  EventKind
	State State
	Err   error
	Rows  []Row
}

// Snapshot is a consistent view of the feed at one point in time
type Snapshot struct {
	State       State
	Rows        []Row
	CurrentUser *models.User
	Err         error
}

type loadKind int

const (
	loadInitial loadKind = iota
	loadRefresh
	loadNextPage
)

type listener struct {
	fn     func(Event)
	closed atomic.Bool
}

// Engine owns the authoritative poll list, applies votes and republishes
// render rows. All state lives on a single goroutine; public methods hand
// work to it and wait for the result, so votes and projections are never
// interleaved.
//
// Listeners run on that goroutine too. They must return promptly and must
// not call back into the engine synchronously.
type Engine struct {
	source    repository.Source
	log       *slog.Logger
	pageTitle string
	now       func() time.Time
	newID     func() string

	ctx       context.Context
	cancel    context.CancelFunc
	cmds      chan func()
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	ready     chan struct{}
	readyOnce sync.Once

	mu        sync.Mutex
	listeners []*listener

	// Owned by the run loop
	polls       []models.Poll
	currentUser *models.User
	state       State
	rows        []Row
	loadErr     error
	page        int
	gen         uint64
	cancelLoad  context.CancelFunc
	waiters     []chan struct{}
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger, slog.Default() otherwise
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithPageTitle overrides DefaultPageTitle
func WithPageTitle(title string) Option {
	return func(e *Engine) {
		if title != "" {
			e.pageTitle = title
		}
	}
}

// WithClock sets the time source used to stamp vote records
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator sets the vote record id generator
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// New creates an engine, enters the loading state and starts fetching from
// src in the background. Call Close when done.
func New(src repository.Source, opts ...Option) *Engine {
	e := &Engine{
		source:    src,
		log:       slog.Default(),
		pageTitle: DefaultPageTitle,
		now:       time.Now,
		newID:     uuid.NewString,
		cmds:      make(chan func(), 16),
		quit:      make(chan struct{}),
		ready:     make(chan struct{}),
		state:     StateInitialized,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	// The loop is not running yet, so it is safe to touch loop state here
	e.moveTo(StateLoading)
	e.startLoad(loadInitial)

	e.wg.Add(1)
	go e.run()
	return e
}

// Close stops the engine and waits for in-flight work to finish
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.quit)
		e.cancel()
		e.wg.Wait()
		e.readyOnce.Do(func() { close(e.ready) })
	})
}

// Ready is closed once the initial load has settled, successfully or not,
// or the engine has been closed
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// PageTitle returns the feed title
func (e *Engine) PageTitle() string {
	return e.pageTitle
}

// Subscribe registers fn for feed events. fn immediately receives the
// current state and rows, then every later change in order: state first (only
// when it changed), rows second. The returned func unsubscribes.
func (e *Engine) Subscribe(ctx context.Context, fn func(Event)) (func(), error) {
	l := &listener{fn: fn}
	unsubscribe := func() {
		l.closed.Store(true)
		e.mu.Lock()
		e.listeners = slices.DeleteFunc(e.listeners, func(x *listener) bool { return x == l })
		e.mu.Unlock()
	}

	err := e.do(ctx, func() {
		e.mu.Lock()
		e.listeners = append(e.listeners, l)
		e.mu.Unlock()

		fn(Event{Kind: EventState, State: e.state, Err: e.loadErr})
		fn(Event{Kind: EventRows, Rows: e.rows})
	})
	if err != nil {
		unsubscribe()
		return nil, err
	}
	return unsubscribe, nil
}

// Snapshot returns the current state, rows and user. Rows are shared with
// subscribers and must be treated as read-only.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.do(ctx, func() {
		snap = Snapshot{
			State:       e.state,
			Rows:        e.rows,
			CurrentUser: e.currentUser.Clone(),
			Err:         e.loadErr,
		}
	})
	return snap, err
}

// Vote records a vote for option on the poll at position in the published
// row list. A stale position or an option the poll does not have is ignored
// without error; only cancellation and ErrClosed are returned.
//
// One user may vote any number of times on the same poll. Every call adds
// a record and bumps the tally.
func (e *Engine) Vote(ctx context.Context, option models.Option, position int) error {
	var voteErr error
	err := e.do(ctx, func() {
		voteErr = e.applyVote(position, option.ID)
	})
	if err != nil {
		return err
	}
	if voteErr != nil {
		e.log.Debug("vote ignored", "position", position, "option", option.ID, "err", voteErr)
	}
	return nil
}

// VoteByID is like Vote but targets the poll by id and reports
// ErrInvalidVoteTarget instead of ignoring it
func (e *Engine) VoteByID(ctx context.Context, pollID, optionID string) error {
	var voteErr error
	err := e.do(ctx, func() {
		position := slices.IndexFunc(e.polls, func(p models.Poll) bool { return p.ID == pollID })
		if position < 0 {
			voteErr = fmt.Errorf("%w: no poll %q", ErrInvalidVoteTarget, pollID)
			return
		}
		voteErr = e.applyVote(position, optionID)
	})
	if err != nil {
		return err
	}
	return voteErr
}

// Refresh reloads the feed from the source and waits for it to settle. A
// refresh supersedes any fetch already in flight except the initial load,
// which it waits for instead. Load failures settle the feed to empty and
// show up in Snapshot.Err, they are not returned here.
func (e *Engine) Refresh(ctx context.Context) error {
	wait := make(chan struct{})
	err := e.do(ctx, func() {
		e.waiters = append(e.waiters, wait)
		if e.state == StateLoading {
			return
		}
		if e.moveTo(StateRefreshing) {
			e.publishState()
		}
		e.startLoad(loadRefresh)
	})
	if err != nil {
		return err
	}
	return e.await(ctx, wait)
}

// LoadNextPage fetches the next page when the source supports paging and
// appends it. Without paging the feed passes through loadingNextPage and
// settles straight back. Ignored while another fetch is in flight.
func (e *Engine) LoadNextPage(ctx context.Context) error {
	wait := make(chan struct{})
	err := e.do(ctx, func() {
		if !e.state.Settled() {
			close(wait)
			return
		}
		if e.moveTo(StateLoadingNextPage) {
			e.publishState()
		}
		if _, ok := e.source.(repository.Pager); !ok {
			e.log.Debug("source has no pages")
			if e.moveTo(settledFor(len(e.rows))) {
				e.publishState()
			}
			close(wait)
			return
		}
		e.waiters = append(e.waiters, wait)
		e.startLoad(loadNextPage)
	})
	if err != nil {
		return err
	}
	return e.await(ctx, wait)
}

func (e *Engine) await(ctx context.Context, wait <-chan struct{}) error {
	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrClosed
	}
}

// run is the single goroutine that owns loop state
func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case fn := <-e.cmds:
			fn()
		case <-e.quit:
			return
		}
	}
}

// do runs fn on the loop and waits for it to finish
func (e *Engine) do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-e.quit:
		return ErrClosed
	default:
	}

	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case e.cmds <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrClosed
	}
}

// post queues fn on the loop without waiting
func (e *Engine) post(fn func()) {
	select {
	case e.cmds <- fn:
	case <-e.quit:
	}
}

// startLoad begins a fetch, cancelling and superseding any fetch in flight
func (e *Engine) startLoad(kind loadKind) {
	if e.cancelLoad != nil {
		e.cancelLoad()
	}
	e.gen++
	gen := e.gen
	page := e.page + 1

	ctx, cancel := context.WithCancel(e.ctx)
	e.cancelLoad = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		var polls []models.Poll
		var err error
		if pager, ok := e.source.(repository.Pager); ok && kind == loadNextPage {
			polls, err = pager.FetchPage(ctx, page)
		} else {
			polls, err = e.source.FetchAll(ctx)
		}
		e.post(func() { e.finishLoad(gen, kind, polls, err) })
	}()
}

func (e *Engine) finishLoad(gen uint64, kind loadKind, polls []models.Poll, err error) {
	if gen != e.gen {
		e.log.Debug("discarding superseded load", "gen", gen, "current", e.gen)
		return
	}
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
	hadErr := e.loadErr != nil

	switch {
	case err != nil && kind == loadNextPage:
		e.log.Error("load next page failed", "page", e.page+1, "err", err)
		e.loadErr = err
	case err != nil:
		e.log.Error("load feed failed", "err", err)
		e.loadErr = err
		e.polls = nil
		e.currentUser = nil
		e.page = 0
	case kind == loadNextPage:
		e.loadErr = nil
		e.page++
		e.polls = appendNew(e.polls, polls)
	default:
		e.loadErr = nil
		e.page = 1
		e.polls = models.ClonePolls(polls)
		e.currentUser = nil
		if len(e.polls) > 0 {
			e.currentUser = e.polls[0].Author.Clone()
		}
	}

	e.rows = BuildRows(e.polls, e.currentUser)
	changed := e.moveTo(settledFor(len(e.rows)))
	if changed || err != nil || hadErr {
		e.publishState()
	}
	e.publishRows()

	for _, w := range e.waiters {
		close(w)
	}
	e.waiters = nil
	e.readyOnce.Do(func() { close(e.ready) })
}

// appendNew appends the polls whose id is not already in the feed
func appendNew(existing, page []models.Poll) []models.Poll {
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p.ID] = true
	}
	for _, p := range page {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		existing = append(existing, p.Clone())
	}
	return existing
}

func (e *Engine) applyVote(position int, optionID string) error {
	if position < 0 || position >= len(e.polls) {
		return fmt.Errorf("%w: position %d out of range [0,%d)", ErrInvalidVoteTarget, position, len(e.polls))
	}
	p := &e.polls[position]
	idx := p.OptionIndex(optionID)
	if idx < 0 {
		return fmt.Errorf("%w: poll %s has no option %q", ErrInvalidVoteTarget, p.ID, optionID)
	}

	p.Options[idx].VotedCount++
	p.VotedBy = append(p.VotedBy, models.VoteRecord{
		ID:             e.newID(),
		User:           e.currentUser.Clone(),
		PollID:         p.ID,
		SelectedOption: p.Options[idx],
		CastAt:         e.now(),
	})

	e.rows = BuildRows(e.polls, e.currentUser)
	// A vote during a fetch must not settle the feed early
	if !e.state.Busy() && e.moveTo(settledFor(len(e.rows))) {
		e.publishState()
	}
	e.publishRows()
	return nil
}

func (e *Engine) moveTo(to State) bool {
	if !CanTransition(e.state, to) {
		e.log.Warn("illegal feed transition", "from", e.state, "to", to)
		return false
	}
	if e.state == to {
		return false
	}
	e.log.Debug("feed state", "from", e.state, "to", to)
	e.state = to
	return true
}

func (e *Engine) publishState() {
	e.notify(Event{Kind: EventState, State: e.state, Err: e.loadErr})
}

func (e *Engine) publishRows() {
	e.notify(Event{Kind: EventRows, Rows: e.rows})
}

func (e *Engine) notify(ev Event) {
	e.mu.Lock()
	ls := slices.Clone(e.listeners)
	e.mu.Unlock()

	for _, l := range ls {
		if !l.closed.Load() {
			l.fn(ev)
		}
	}
}
