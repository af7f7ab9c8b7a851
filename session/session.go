// Package session ties a store, the query engine and the mutation
// orchestrator into one client-facing unit. Every method takes the session
// lock, so the events of one session run one at a time.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/orchestrator"
	"github.com/cppla/postboard/query"
	"github.com/cppla/postboard/source"
	"github.com/cppla/postboard/store"
)

// MsgLoadFailed is recorded when the initial load fails.
const MsgLoadFailed = "Failed to load posts. Please try again."

// Snapshot is the derived, presentation-ready state of a session.
type Snapshot struct {
	SessionID   string            `json:"sessionId"`
	Visible     []models.Post     `json:"visible"`
	HasMore     bool              `json:"hasMore"`
	RevealCount int               `json:"revealCount"`
	Shown       int               `json:"shown"`
	Total       int               `json:"total"`
	Collection  int               `json:"collection"`
	Page        int               `json:"page"`
	Params      models.ViewParams `json:"params"`
	Loading     bool              `json:"loading"`
	LoadError   string            `json:"loadError,omitempty"`
	Generation  uint64            `json:"generation"`
}

// Options configure a new session.
type Options struct {
	RevealIncrement int
	DefaultUserID   int
	Engine          *query.Engine
	Forwarder       source.Forwarder
	ForwardTimeout  time.Duration
	Logger          *zap.Logger
	Clock           func() time.Time
}

type Session struct {
	ID string

	mu     sync.Mutex
	src    source.Source
	store  *store.Store
	engine *query.Engine
	orch   *orchestrator.Orchestrator
	log    *zap.Logger
	now    func() time.Time

	loadStarted bool
	loading     bool
	loadErr     string
	epoch       int
	lastSeen    time.Time

	listeners map[int]func(Snapshot)
	nextSub   int
}

// New creates an empty session reading from src. Call Load to fill it.
func New(id string, src source.Source, opts Options) *Session {
	if opts.Engine == nil {
		opts.Engine = query.NewEngine("en")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	st := store.New(opts.RevealIncrement)
	orchOpts := []orchestrator.Option{
		orchestrator.WithClock(opts.Clock),
		orchestrator.WithDefaultUserID(opts.DefaultUserID),
		orchestrator.WithLogger(opts.Logger),
	}
	if opts.Forwarder != nil {
		orchOpts = append(orchOpts, orchestrator.WithForwarder(opts.Forwarder, opts.ForwardTimeout))
	}
	s := &Session{
		ID:        id,
		src:       src,
		store:     st,
		engine:    opts.Engine,
		orch:      orchestrator.New(st, orchOpts...),
		log:       opts.Logger.With(zap.String("session", id)),
		now:       opts.Clock,
		lastSeen:  opts.Clock(),
		listeners: map[int]func(Snapshot){},
	}
	st.Subscribe(s.onChange)
	return s
}

// Load fetches the remote collection once. Calls after the first one return
// immediately, including while the first is still in flight and after it failed.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.loadStarted {
		s.mu.Unlock()
		return nil
	}
	s.loadStarted = true
	s.loading = true
	s.loadErr = ""
	epoch := s.epoch
	s.notifyLocked()
	s.mu.Unlock()

	start := time.Now()
	posts, err := s.src.FetchAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		// remounted while the fetch was in flight
		return nil
	}
	s.loading = false
	observeLoad(err, time.Since(start))
	if err != nil {
		s.loadErr = MsgLoadFailed
		s.log.Error("initial load failed", zap.Error(err))
		s.notifyLocked()
		return err
	}
	s.log.Info("initial load done", zap.Int("posts", len(posts)), zap.Duration("took", time.Since(start)))
	s.store.ReplaceAll(posts)
	return nil
}

// Reload clears the latch and the collection, then loads again. View
// parameters survive.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	s.epoch++
	s.loadStarted = false
	s.loading = false
	s.loadErr = ""
	s.store.ReplaceAll(nil)
	s.mu.Unlock()
	return s.Load(ctx)
}

// Snapshot derives the current presentation state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	view := s.viewLocked()
	cursor := s.store.Cursor()
	visible := cursor.Visible(view)
	return Snapshot{
		SessionID:   s.ID,
		Visible:     visible,
		HasMore:     cursor.HasMore(len(view)),
		RevealCount: cursor.Count(),
		Shown:       len(visible),
		Total:       len(view),
		Collection:  s.store.Len(),
		Page:        s.store.Page(),
		Params:      s.store.Params(),
		Loading:     s.loading,
		LoadError:   s.loadErr,
		Generation:  cursor.Generation(),
	}
}

func (s *Session) viewLocked() []models.Post {
	return s.engine.Apply(s.store.Posts(), s.store.Params())
}

// TriggerAdvance reveals one more increment unless a load is in flight or
// everything is already shown.
func (s *Session) TriggerAdvance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.advanceLocked()
}

// EnteredView is the proximity signal from a presentation that rendered
// generation. Signals from an earlier generation are dropped.
func (s *Session) EnteredView(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	if generation != s.store.Cursor().Generation() {
		return false
	}
	return s.advanceLocked()
}

func (s *Session) advanceLocked() bool {
	if s.loading {
		return false
	}
	return s.store.Advance(len(s.viewLocked()))
}

func (s *Session) SetSearch(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.store.SetSearch(text)
}

// SetSort applies column and order, resetting the cursor for each. An empty
// column or order keeps the current one.
func (s *Session) SetSort(col models.SortColumn, order models.SortOrder) models.ViewParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	params := s.store.Params()
	if col == "" {
		col = params.SortBy
	}
	if order == "" {
		order = params.SortOrder
	}
	s.store.SetSortBy(col)
	s.store.SetSortOrder(order)
	return s.store.Params()
}

// ToggleSort flips the order when col is already the sort column, otherwise
// selects col ascending.
func (s *Session) ToggleSort(col models.SortColumn) models.ViewParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	params := s.store.Params()
	if params.SortBy == col {
		s.store.SetSortOrder(params.SortOrder.Toggle())
	} else {
		s.store.SetSortBy(col)
		s.store.SetSortOrder(models.SortAsc)
	}
	return s.store.Params()
}

// GotoPage moves the classic page cursor and returns that page of the view.
func (s *Session) GotoPage(page, limit int) query.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.store.SetPage(page)
	return query.Paginate(s.viewLocked(), s.store.Page(), limit)
}

// Get reads a post from local state.
func (s *Session) Get(id int) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.store.Get(id)
}

func (s *Session) Create(input models.PostInput) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	post, err := s.orch.Create(input)
	observeMutation("create", err, true)
	return post, err
}

// Update edits the post with id. A missing id is reported as changed=false.
func (s *Session) Update(id int, input models.PostInput) (models.Post, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	existing, ok := s.store.Get(id)
	if !ok {
		existing = models.Post{ID: id}
	}
	post, changed, err := s.orch.Update(existing, input)
	observeMutation("update", err, changed)
	return post, changed, err
}

func (s *Session) Delete(id int, c orchestrator.Confirmer) (confirmed, removed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	confirmed, removed = s.orch.Delete(id, c)
	if confirmed {
		observeMutation("delete", nil, removed)
	}
	return confirmed, removed
}

// Subscribe registers fn for a snapshot after every change. fn runs under
// the session lock and must not call back into the session.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// LastSeen is the time of the most recent client event.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close waits for in-flight remote forwards and drops listeners.
func (s *Session) Close() {
	s.orch.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = map[int]func(Snapshot){}
}

func (s *Session) touchLocked() {
	s.lastSeen = s.now()
}

func (s *Session) onChange(store.Change) {
	s.notifyLocked()
}

func (s *Session) notifyLocked() {
	if len(s.listeners) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, fn := range s.listeners {
		fn(snap)
	}
}
