package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/store"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 123_000_000, time.UTC)

func fixedClock() time.Time { return fixedNow }

func seededStore() *store.Store {
	st := store.New(10)
	st.ReplaceAll([]models.Post{
		{ID: 1, UserID: 3, Title: "First Post", Body: "First Body", CreatedAt: "2024-01-01T00:00:00.000Z"},
		{ID: 2, UserID: 3, Title: "Second Post", Body: "Second Body"},
	})
	return st
}

type recordingForwarder struct {
	mu      sync.Mutex
	ops     []string
	failAll bool
}

func (f *recordingForwarder) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
	if f.failAll {
		return errors.New("remote down")
	}
	return nil
}

func (f *recordingForwarder) Create(ctx context.Context, p models.Post) (models.Post, error) {
	return p, f.record("create")
}

func (f *recordingForwarder) Update(ctx context.Context, p models.Post) (models.Post, error) {
	return p, f.record("update")
}

func (f *recordingForwarder) Delete(ctx context.Context, id int) error {
	return f.record("delete")
}

func TestCreateTrimsAndStamps(t *testing.T) {
	st := store.New(10)
	o := New(st, WithClock(fixedClock))

	post, err := o.Create(models.PostInput{Title: "  My Title  ", Body: "  My Body  "})
	require.NoError(t, err)
	assert.Equal(t, 1, post.ID)
	assert.Equal(t, DefaultUserID, post.UserID)
	assert.Equal(t, "My Title", post.Title)
	assert.Equal(t, "My Body", post.Body)
	assert.Equal(t, "2024-03-15T09:30:00.123Z", post.CreatedAt)
	assert.Empty(t, post.EditedAt)

	stored, ok := st.Get(1)
	require.True(t, ok)
	assert.Equal(t, post, stored)
}

func TestCreateAssignsIDAfterMax(t *testing.T) {
	st := seededStore()
	o := New(st, WithClock(fixedClock), WithDefaultUserID(7))

	post, err := o.Create(models.PostInput{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 3, post.ID)
	assert.Equal(t, 7, post.UserID)
	assert.Equal(t, 3, st.Posts()[0].ID)
}

func TestCreateValidation(t *testing.T) {
	st := seededStore()
	o := New(st)

	cases := []struct {
		name    string
		input   models.PostInput
		field   string
		message string
	}{
		{"empty title", models.PostInput{Title: "", Body: "b"}, "title", "Title is required"},
		{"blank title", models.PostInput{Title: "   ", Body: "b"}, "title", "Title is required"},
		{"both blank", models.PostInput{Title: " ", Body: " "}, "title", "Title is required"},
		{"blank body", models.PostInput{Title: "t", Body: "\n\t"}, "body", "Body is required"},
		{"markup only title", models.PostInput{Title: "<script>alert(1)</script>", Body: "b"}, "title", "Title is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := o.Create(tc.input)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.field, ve.Field)
			assert.Equal(t, tc.message, ve.Error())
			assert.Equal(t, 2, st.Len())
		})
	}
}

func TestCreateSanitizesMarkup(t *testing.T) {
	o := New(store.New(10))
	post, err := o.Create(models.PostInput{Title: "Hi <script>x()</script>", Body: "<b>bold</b> text"})
	require.NoError(t, err)
	assert.Equal(t, "Hi", post.Title)
	assert.Equal(t, "<b>bold</b> text", post.Body)
}

func TestPlainTextIsStoredVerbatim(t *testing.T) {
	st := seededStore()
	o := New(st, WithClock(fixedClock))

	post, err := o.Create(models.PostInput{Title: "  Tom & Jerry  ", Body: `if a < b then "x"`})
	require.NoError(t, err)
	assert.Equal(t, "Tom & Jerry", post.Title)
	assert.Equal(t, `if a < b then "x"`, post.Body)

	updated, changed, err := o.Update(post, models.PostInput{Title: "It's fine", Body: "a & b < c"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "It's fine", updated.Title)
	assert.Equal(t, "a & b < c", updated.Body)

	stored, ok := st.Get(post.ID)
	require.True(t, ok)
	assert.Equal(t, "It's fine", stored.Title)
}

func TestUpdatePreservesIdentity(t *testing.T) {
	st := seededStore()
	o := New(st, WithClock(fixedClock))
	existing, _ := st.Get(1)

	post, changed, err := o.Update(existing, models.PostInput{Title: " New ", Body: "Changed"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.Post{
		ID:        1,
		UserID:    3,
		Title:     "New",
		Body:      "Changed",
		CreatedAt: "2024-01-01T00:00:00.000Z",
		EditedAt:  "2024-03-15T09:30:00.123Z",
	}, post)
	assert.Equal(t, 1, st.Posts()[0].ID)
}

func TestUpdateMissingIsNoop(t *testing.T) {
	st := seededStore()
	o := New(st)
	before := st.Posts()

	_, changed, err := o.Update(models.Post{ID: 999}, models.PostInput{Title: "x", Body: "y"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, st.Posts())
}

func TestUpdateValidationLeavesStore(t *testing.T) {
	st := seededStore()
	o := New(st)
	existing, _ := st.Get(2)

	_, _, err := o.Update(existing, models.PostInput{Title: "ok", Body: "  "})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "body", ve.Field)
	got, _ := st.Get(2)
	assert.Equal(t, existing, got)
}

func TestDeleteConfirmation(t *testing.T) {
	st := seededStore()
	o := New(st)

	var prompt string
	decline := ConfirmFunc(func(p string) bool {
		prompt = p
		return false
	})
	confirmed, removed := o.Delete(1, decline)
	assert.Equal(t, DeletePrompt, prompt)
	assert.False(t, confirmed)
	assert.False(t, removed)
	assert.Equal(t, 2, st.Len())

	confirmed, removed = o.Delete(1, nil)
	assert.False(t, confirmed)
	assert.False(t, removed)

	yes := ConfirmFunc(func(string) bool { return true })
	confirmed, removed = o.Delete(1, yes)
	assert.True(t, confirmed)
	assert.True(t, removed)
	assert.Equal(t, 1, st.Len())

	confirmed, removed = o.Delete(1, yes)
	assert.True(t, confirmed)
	assert.False(t, removed)
}

func TestForwarding(t *testing.T) {
	st := seededStore()
	fwd := &recordingForwarder{}
	o := New(st, WithForwarder(fwd, time.Second))
	yes := ConfirmFunc(func(string) bool { return true })

	p, err := o.Create(models.PostInput{Title: "t", Body: "b"})
	require.NoError(t, err)
	_, _, err = o.Update(p, models.PostInput{Title: "t2", Body: "b2"})
	require.NoError(t, err)
	_, _, _ = o.Update(models.Post{ID: 999}, models.PostInput{Title: "x", Body: "y"})
	o.Delete(p.ID, yes)
	o.Delete(p.ID, yes)
	_, _ = o.Create(models.PostInput{})
	o.Wait()

	assert.ElementsMatch(t, []string{"create", "update", "delete"}, fwd.ops)
}

func TestForwardFailureKeepsLocalState(t *testing.T) {
	st := seededStore()
	fwd := &recordingForwarder{failAll: true}
	o := New(st, WithForwarder(fwd, time.Second))

	p, err := o.Create(models.PostInput{Title: "t", Body: "b"})
	require.NoError(t, err)
	o.Wait()

	_, ok := st.Get(p.ID)
	assert.True(t, ok)
	assert.Equal(t, []string{"create"}, fwd.ops)
}
