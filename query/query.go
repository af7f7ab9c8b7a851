// Package query derives the display-ready sequence of posts from a collection
// and a set of view parameters. Everything here is pure: inputs are never
// modified and no state is kept between calls.
package query

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/cppla/postboard/models"
)

// timestampLayouts are tried in order when reading createdAt/editedAt.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Engine applies filter and sort. The zero value collates titles as English.
type Engine struct {
	lang language.Tag
}

// NewEngine returns an engine collating titles for the given BCP 47 tag.
// An unparseable tag falls back to English.
func NewEngine(lang string) *Engine {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return &Engine{lang: tag}
}

// Apply filters posts by params.Search and sorts the result by params.SortBy
// and params.SortOrder. The returned slice is always a fresh, non-nil slice.
func (e *Engine) Apply(posts []models.Post, params models.ViewParams) []models.Post {
	out := Filter(posts, params.Search)
	e.Sort(out, params.SortBy, params.SortOrder)
	return out
}

// Filter keeps posts whose title or body contains search, ignoring case.
// An empty search keeps everything.
func Filter(posts []models.Post, search string) []models.Post {
	out := make([]models.Post, 0, len(posts))
	if search == "" {
		return append(out, posts...)
	}
	needle := strings.ToLower(search)
	for _, p := range posts {
		if strings.Contains(strings.ToLower(p.Title), needle) || strings.Contains(strings.ToLower(p.Body), needle) {
			out = append(out, p)
		}
	}
	return out
}

// Sort orders posts in place. The sort is stable so ties keep their relative order.
func (e *Engine) Sort(posts []models.Post, by models.SortColumn, order models.SortOrder) {
	var cmp func(a, b models.Post) int
	switch by {
	case models.SortByTitle:
		tag := e.lang
		if tag == language.Und {
			tag = language.English
		}
		// collators carry scratch buffers, so each sort gets its own
		c := collate.New(tag)
		cmp = func(a, b models.Post) int { return c.CompareString(a.Title, b.Title) }
	case models.SortByCreatedAt:
		cmp = func(a, b models.Post) int { return compareInt64(ActivityTime(a), ActivityTime(b)) }
	default:
		cmp = func(a, b models.Post) int { return compareInt64(int64(a.ID), int64(b.ID)) }
	}
	if order == models.SortDesc {
		asc := cmp
		cmp = func(a, b models.Post) int { return -asc(a, b) }
	}
	slices.SortStableFunc(posts, cmp)
}

// ActivityTime is the post's recency in unix milliseconds: editedAt when set,
// else createdAt, else zero. Unreadable timestamps also count as zero.
func ActivityTime(p models.Post) int64 {
	if p.EditedAt != "" {
		return parseMillis(p.EditedAt)
	}
	if p.CreatedAt != "" {
		return parseMillis(p.CreatedAt)
	}
	return 0
}

func parseMillis(s string) int64 {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
