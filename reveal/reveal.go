// Package reveal bounds how much of a derived view is exposed at a time,
// growing in fixed steps as the reader approaches the end of what is shown.
package reveal

import "github.com/cppla/postboard/models"

// DefaultIncrement is the number of posts revealed initially and per step.
const DefaultIncrement = 10

// Controller is a counter that only grows within a generation. Reset starts a
// new generation. It is not safe for concurrent use; the owning store serializes access.
type Controller struct {
	increment  int
	count      int
	generation uint64
}

// New returns a controller revealing increment posts per step.
// Non-positive increments fall back to DefaultIncrement.
func New(increment int) *Controller {
	if increment <= 0 {
		increment = DefaultIncrement
	}
	return &Controller{increment: increment, count: increment}
}

// Reset puts the counter back to one increment and bumps the generation.
func (c *Controller) Reset() {
	c.count = c.increment
	c.generation++
}

// Advance reveals one more increment if total posts are not all shown yet.
// It reports whether the counter moved.
func (c *Controller) Advance(total int) bool {
	if !c.HasMore(total) {
		return false
	}
	c.count += c.increment
	return true
}

// HasMore reports whether the view of size total extends past the revealed window.
func (c *Controller) HasMore(total int) bool {
	return c.count < total
}

// Visible returns the revealed prefix of view.
func (c *Controller) Visible(view []models.Post) []models.Post {
	n := c.count
	if n > len(view) {
		n = len(view)
	}
	return view[:n:n]
}

// Count is the current reveal counter.
func (c *Controller) Count() int { return c.count }

// Increment is the step size.
func (c *Controller) Increment() int { return c.increment }

// Generation identifies the current reset epoch.
func (c *Controller) Generation() uint64 { return c.generation }
