package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cppla/postboard/source"
)

// DefaultIdleTimeout is how long a session lives without client events.
const DefaultIdleTimeout = 30 * time.Minute

// Registry owns the live sessions of the process.
type Registry struct {
	src  source.Source
	opts Options
	idle time.Duration
	log  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(src source.Source, opts Options, idle time.Duration) *Registry {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		src:      src,
		opts:     opts,
		idle:     idle,
		log:      log,
		sessions: map[string]*Session{},
	}
}

// Create registers a new session. The caller starts its load.
func (r *Registry) Create() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanupExpiredLocked()

	s := New(uuid.NewString(), r.src, r.opts)
	r.sessions[s.ID] = s
	sessionsActive.Inc()
	r.log.Debug("session created", zap.String("session", s.ID))
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove ends the session with id and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		sessionsActive.Dec()
	}
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Janitor drops idle sessions every interval until ctx is done.
func (r *Registry) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep drops sessions idle since before now minus the idle timeout.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleanupExpiredLocked()
}

func (r *Registry) cleanupExpiredLocked() int {
	now := r.opts.now()
	n := 0
	for id, s := range r.sessions {
		if now.Sub(s.LastSeen()) > r.idle {
			delete(r.sessions, id)
			sessionsActive.Dec()
			go s.Close()
			n++
		}
	}
	if n > 0 {
		r.log.Info("expired idle sessions", zap.Int("count", n))
	}
	return n
}

func (o Options) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}
