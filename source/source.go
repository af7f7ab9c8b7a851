// Package source provides the remote collection of posts a session loads
// once at start, plus the optional write-through of local mutations.
package source

import (
	"context"
	"fmt"

	"github.com/cppla/postboard/models"
)

// Source reads the remote collection.
type Source interface {
	FetchAll(ctx context.Context) ([]models.Post, error)
	FetchOne(ctx context.Context, id int) (models.Post, error)
}

// Forwarder mirrors local mutations to the remote API. Results are advisory;
// the remote does not durably store writes.
type Forwarder interface {
	Create(ctx context.Context, post models.Post) (models.Post, error)
	Update(ctx context.Context, post models.Post) (models.Post, error)
	Delete(ctx context.Context, id int) error
}

// LoadError reports a failed read of the remote collection.
type LoadError struct {
	Op     string
	Status int
	Err    error
}

func (e *LoadError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	default:
		return e.Op
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

const (
	msgFetchPosts = "Failed to fetch posts"
	msgFetchPost  = "Failed to fetch post"
	msgCreatePost = "Failed to create post"
	msgUpdatePost = "Failed to update post"
	msgDeletePost = "Failed to delete post"
)
