// Package orchestrator turns user intents into validated store mutations.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/source"
	"github.com/cppla/postboard/store"
	"github.com/cppla/postboard/utils"
)

const (
	// DefaultUserID owns every locally created post.
	DefaultUserID = 1
	// DeletePrompt is shown before a post is removed.
	DeletePrompt = "Are you sure you want to delete this post?"

	MsgTitleRequired = "Title is required"
	MsgBodyRequired  = "Body is required"

	isoMillis             = "2006-01-02T15:04:05.000Z"
	defaultForwardTimeout = 10 * time.Second
)

// ValidationError rejects an input before any state changes.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Confirmer answers a yes/no prompt.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Orchestrator applies mutations to a single store. Callers serialize access
// the same way they serialize access to the store.
type Orchestrator struct {
	store          *store.Store
	now            func() time.Time
	userID         int
	fwd            source.Forwarder
	forwardTimeout time.Duration
	log            *zap.Logger
	wg             sync.WaitGroup
}

type Option func(*Orchestrator)

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithDefaultUserID(id int) Option {
	return func(o *Orchestrator) {
		if id > 0 {
			o.userID = id
		}
	}
}

// WithForwarder mirrors successful mutations to fwd in the background.
func WithForwarder(fwd source.Forwarder, timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.fwd = fwd
		if timeout > 0 {
			o.forwardTimeout = timeout
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

func New(st *store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:          st,
		now:            time.Now,
		userID:         DefaultUserID,
		forwardTimeout: defaultForwardTimeout,
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Create validates input and inserts a new post. The store assigns the final id.
func (o *Orchestrator) Create(input models.PostInput) (models.Post, error) {
	title, body, err := clean(input)
	if err != nil {
		return models.Post{}, err
	}
	now := o.now()
	post := o.store.Insert(models.Post{
		ID:        int(now.UnixMilli()),
		UserID:    o.userID,
		Title:     title,
		Body:      body,
		CreatedAt: timestamp(now),
	})
	o.forward("create", post.ID, func(ctx context.Context) error {
		_, err := o.fwd.Create(ctx, post)
		return err
	})
	return post, nil
}

// Update validates input and replaces existing's title and body. It reports
// false when existing is no longer in the store.
func (o *Orchestrator) Update(existing models.Post, input models.PostInput) (models.Post, bool, error) {
	title, body, err := clean(input)
	if err != nil {
		return models.Post{}, false, err
	}
	post := models.Post{
		ID:        existing.ID,
		UserID:    existing.UserID,
		Title:     title,
		Body:      body,
		CreatedAt: existing.CreatedAt,
		EditedAt:  timestamp(o.now()),
	}
	if !o.store.Update(post) {
		return post, false, nil
	}
	o.forward("update", post.ID, func(ctx context.Context) error {
		_, err := o.fwd.Update(ctx, post)
		return err
	})
	return post, true, nil
}

// Delete removes id once c confirms. A declined prompt changes nothing.
func (o *Orchestrator) Delete(id int, c Confirmer) (confirmed, removed bool) {
	if c == nil || !c.Confirm(DeletePrompt) {
		return false, false
	}
	removed = o.store.Delete(id)
	if removed {
		o.forward("delete", id, func(ctx context.Context) error {
			return o.fwd.Delete(ctx, id)
		})
	}
	return true, removed
}

// Wait blocks until in-flight forwards have finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) forward(op string, id int, fn func(ctx context.Context) error) {
	if o.fwd == nil {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.forwardTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			o.log.Warn("remote forward failed", zap.String("op", op), zap.Int("post_id", id), zap.Error(err))
			return
		}
		o.log.Debug("remote forward ok", zap.String("op", op), zap.Int("post_id", id))
	}()
}

func clean(input models.PostInput) (string, string, error) {
	title := sanitize(input.Title)
	if title == "" {
		return "", "", &ValidationError{Field: "title", Message: MsgTitleRequired}
	}
	body := sanitize(input.Body)
	if body == "" {
		return "", "", &ValidationError{Field: "body", Message: MsgBodyRequired}
	}
	return title, body, nil
}

func sanitize(s string) string {
	return strings.TrimSpace(utils.Sanitize(strings.TrimSpace(s)))
}

func timestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
