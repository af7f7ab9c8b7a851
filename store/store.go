// Package store holds one session's canonical post collection together with
// its view parameters and reveal cursor. Every mutation of that state goes
// through a Store method.
package store

import (
	"slices"

	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/reveal"
)

// ChangeKind names the operation that produced a Change.
type ChangeKind string

const (
	ChangeReplaced ChangeKind = "replaced"
	ChangeInserted ChangeKind = "inserted"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeParams   ChangeKind = "params"
	ChangePage     ChangeKind = "page"
)

// Change is emitted to subscribers after the state has been updated.
type Change struct {
	Kind        ChangeKind `json:"kind"`
	PostID      int        `json:"postId,omitempty"`
	CursorReset bool       `json:"cursorReset"`
}

// Store is not safe for concurrent use. The owning session serializes access.
type Store struct {
	posts     []models.Post
	params    models.ViewParams
	page      int
	cursor    *reveal.Controller
	listeners []func(Change)
}

// New returns an empty store whose reveal cursor steps by increment.
func New(increment int) *Store {
	return &Store{
		posts:  []models.Post{},
		params: models.DefaultViewParams(),
		page:   1,
		cursor: reveal.New(increment),
	}
}

// Subscribe registers fn to be called after every mutating operation.
func (s *Store) Subscribe(fn func(Change)) {
	s.listeners = append(s.listeners, fn)
}

func (s *Store) emit(c Change) {
	for _, fn := range s.listeners {
		fn(c)
	}
}

func (s *Store) resetCursor() {
	s.cursor.Reset()
	s.page = 1
}

// ReplaceAll overwrites the collection with a copy of posts.
func (s *Store) ReplaceAll(posts []models.Post) {
	s.posts = slices.Clone(posts)
	if s.posts == nil {
		s.posts = []models.Post{}
	}
	s.resetCursor()
	s.emit(Change{Kind: ChangeReplaced, CursorReset: true})
}

// NextID is one more than the largest id in the collection, or 1 when empty.
func (s *Store) NextID() int {
	maxID := 0
	for _, p := range s.posts {
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	return maxID + 1
}

// Insert stores post under a fresh id, ignoring the id it carries, and
// places it first in the collection.
func (s *Store) Insert(post models.Post) models.Post {
	post.ID = s.NextID()
	s.posts = slices.Insert(s.posts, 0, post)
	s.resetCursor()
	s.emit(Change{Kind: ChangeInserted, PostID: post.ID, CursorReset: true})
	return post
}

// Update replaces the post with the same id in place. It reports false and
// leaves the collection untouched when the id is unknown.
func (s *Store) Update(post models.Post) bool {
	i := s.index(post.ID)
	if i < 0 {
		return false
	}
	s.posts[i] = post
	s.emit(Change{Kind: ChangeUpdated, PostID: post.ID})
	return true
}

// Delete removes the post with id. The cursor is reset either way.
func (s *Store) Delete(id int) bool {
	i := s.index(id)
	if i >= 0 {
		s.posts = slices.Delete(s.posts, i, i+1)
	}
	s.resetCursor()
	s.emit(Change{Kind: ChangeDeleted, PostID: id, CursorReset: true})
	return i >= 0
}

func (s *Store) SetSortBy(col models.SortColumn) {
	s.params.SortBy = col
	s.resetCursor()
	s.emit(Change{Kind: ChangeParams, CursorReset: true})
}

func (s *Store) SetSortOrder(order models.SortOrder) {
	s.params.SortOrder = order
	s.resetCursor()
	s.emit(Change{Kind: ChangeParams, CursorReset: true})
}

func (s *Store) SetSearch(search string) {
	s.params.Search = search
	s.resetCursor()
	s.emit(Change{Kind: ChangeParams, CursorReset: true})
}

// SetPage moves the classic page cursor. Values below 1 become 1.
func (s *Store) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	s.page = page
	s.emit(Change{Kind: ChangePage})
}

// Advance grows the reveal window over a derived view of size total.
func (s *Store) Advance(total int) bool {
	if !s.cursor.Advance(total) {
		return false
	}
	s.emit(Change{Kind: ChangePage})
	return true
}

// Posts returns a copy of the collection in storage order.
func (s *Store) Posts() []models.Post { return slices.Clone(s.posts) }

func (s *Store) Params() models.ViewParams { return s.params }

func (s *Store) Len() int { return len(s.posts) }

func (s *Store) Page() int { return s.page }

// Cursor exposes the reveal controller for reads.
func (s *Store) Cursor() *reveal.Controller { return s.cursor }

// Get returns the post with id.
func (s *Store) Get(id int) (models.Post, bool) {
	i := s.index(id)
	if i < 0 {
		return models.Post{}, false
	}
	return s.posts[i], true
}

func (s *Store) index(id int) int {
	return slices.IndexFunc(s.posts, func(p models.Post) bool { return p.ID == id })
}
