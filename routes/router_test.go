package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/postboard/config"
	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/session"
	"github.com/cppla/postboard/utils"
)

type stubSource struct {
	posts []models.Post
	err   error
}

func (s *stubSource) FetchAll(ctx context.Context) ([]models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.posts, s.err
}

func (s *stubSource) FetchOne(ctx context.Context, id int) (models.Post, error) {
	return models.Post{}, errors.New("unused")
}

func numbered(n int) []models.Post {
	posts := make([]models.Post, n)
	for i := range posts {
		posts[i] = models.Post{ID: i + 1, UserID: 1, Title: fmt.Sprintf("Post %02d", i+1), Body: "body"}
	}
	return posts
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	hub    *utils.WSHub
}

func newTestAPI(t *testing.T, src *stubSource) *testAPI {
	return newTestAPIWithConfig(t, src, config.AppConfig{GinMode: "test", RateLimitPerMinute: 100000})
}

func newTestAPIWithConfig(t *testing.T, src *stubSource, cfg config.AppConfig) *testAPI {
	t.Helper()
	reg := session.NewRegistry(src, session.Options{}, time.Hour)
	hub := utils.NewWSHub()
	return &testAPI{t: t, router: SetupRouter(cfg, reg, hub), hub: hub}
}

func (a *testAPI) do(method, path string, body any) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (a *testAPI) newSession() string {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/v1/sessions?wait=true", nil)
	require.Equal(a.t, http.StatusCreated, code)
	return decode[session.Snapshot](a.t, env.Data).SessionID
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, &stubSource{})
	code, env := api.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, env.Code)
}

func TestSessionLifecycle(t *testing.T) {
	api := newTestAPI(t, &stubSource{posts: numbered(25)})
	id := api.newSession()
	base := "/api/v1/sessions/" + id

	code, env := api.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	snap := decode[session.Snapshot](t, env.Data)
	assert.Equal(t, 25, snap.Total)
	assert.Equal(t, 10, snap.Shown)
	assert.True(t, snap.HasMore)

	code, env = api.do(http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, code)
	adv := decode[struct {
		Advanced bool             `json:"advanced"`
		Snapshot session.Snapshot `json:"snapshot"`
	}](t, env.Data)
	assert.True(t, adv.Advanced)
	assert.Equal(t, 20, adv.Snapshot.Shown)

	code, _ = api.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = api.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 40401, env.Code)
}

func TestLoadFailureSurfacesInSnapshot(t *testing.T) {
	src := &stubSource{err: errors.New("down")}
	api := newTestAPI(t, src)
	id := api.newSession()

	_, env := api.do(http.MethodGet, "/api/v1/sessions/"+id, nil)
	snap := decode[session.Snapshot](t, env.Data)
	assert.Equal(t, session.MsgLoadFailed, snap.LoadError)
	assert.Equal(t, 0, snap.Total)

	src.err = nil
	src.posts = numbered(3)
	_, env = api.do(http.MethodPost, "/api/v1/sessions/"+id+"/reload?wait=true", nil)
	snap = decode[session.Snapshot](t, env.Data)
	assert.Empty(t, snap.LoadError)
	assert.Equal(t, 3, snap.Total)
}

func TestWaitedLoadSurvivesClientHangup(t *testing.T) {
	api := newTestAPI(t, &stubSource{posts: numbered(3)})

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions?wait=true", nil).WithContext(reqCtx)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	snap := decode[session.Snapshot](t, env.Data)
	assert.Empty(t, snap.LoadError)
	assert.False(t, snap.Loading)
	assert.Equal(t, 3, snap.Total)
}

func TestSearchAndSort(t *testing.T) {
	api := newTestAPI(t, &stubSource{posts: []models.Post{
		{ID: 1, UserID: 1, Title: "First Post", Body: "First Body", CreatedAt: "2024-01-01"},
		{ID: 2, UserID: 1, Title: "Second Post", Body: "Second Body", CreatedAt: "2024-01-02"},
		{ID: 3, UserID: 1, Title: "Third Post", Body: "Third Body", CreatedAt: "2024-01-03"},
	}})
	base := "/api/v1/sessions/" + api.newSession()

	code, env := api.do(http.MethodPut, base+"/sort", gin.H{"sortBy": "createdAt", "sortOrder": "desc"})
	require.Equal(t, http.StatusOK, code)
	snap := decode[session.Snapshot](t, env.Data)
	require.Len(t, snap.Visible, 3)
	assert.Equal(t, "Third Post", snap.Visible[0].Title)

	code, env = api.do(http.MethodPut, base+"/search", gin.H{"search": "Second"})
	require.Equal(t, http.StatusOK, code)
	snap = decode[session.Snapshot](t, env.Data)
	require.Len(t, snap.Visible, 1)
	assert.Equal(t, "Second Post", snap.Visible[0].Title)

	code, env = api.do(http.MethodPut, base+"/sort", gin.H{"sortBy": "views"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 40011, env.Code)

	code, env = api.do(http.MethodPost, base+"/sort/title/toggle", nil)
	require.Equal(t, http.StatusOK, code)
	snap = decode[session.Snapshot](t, env.Data)
	assert.Equal(t, models.ViewParams{SortBy: models.SortByTitle, SortOrder: models.SortAsc, Search: "Second"}, snap.Params)

	_, env = api.do(http.MethodPost, base+"/sort/title/toggle", nil)
	assert.Equal(t, models.SortDesc, decode[session.Snapshot](t, env.Data).Params.SortOrder)

	code, env = api.do(http.MethodPut, base+"/sort", gin.H{"sortOrder": "asc"})
	require.Equal(t, http.StatusOK, code)
	snap = decode[session.Snapshot](t, env.Data)
	assert.Equal(t, models.SortByTitle, snap.Params.SortBy)
	assert.Equal(t, models.SortAsc, snap.Params.SortOrder)
}

func TestPages(t *testing.T) {
	api := newTestAPI(t, &stubSource{posts: numbered(25)})
	base := "/api/v1/sessions/" + api.newSession()

	code, env := api.do(http.MethodGet, base+"/pages/3?limit=10", nil)
	require.Equal(t, http.StatusOK, code)
	page := decode[struct {
		Data       []models.Post `json:"data"`
		Total      int           `json:"total"`
		Page       int           `json:"page"`
		TotalPages int           `json:"totalPages"`
	}](t, env.Data)
	assert.Len(t, page.Data, 5)
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 3, page.TotalPages)
}

func TestPostMutations(t *testing.T) {
	api := newTestAPI(t, &stubSource{posts: numbered(3)})
	base := "/api/v1/sessions/" + api.newSession()

	code, env := api.do(http.MethodPost, base+"/posts", gin.H{"title": "  My Title  ", "body": "  My Body  "})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Post created successfully!", env.Message)
	created := decode[models.Post](t, env.Data)
	assert.Equal(t, 4, created.ID)
	assert.Equal(t, "My Title", created.Title)
	assert.NotEmpty(t, created.CreatedAt)

	code, env = api.do(http.MethodPost, base+"/posts", gin.H{"title": "   ", "body": "b"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Title is required", env.Message)

	code, env = api.do(http.MethodPost, base+"/posts", gin.H{"title": "t", "body": ""})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Body is required", env.Message)

	code, env = api.do(http.MethodPut, base+"/posts/2", gin.H{"title": "Edited", "body": "b"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Post updated successfully!", env.Message)

	code, env = api.do(http.MethodGet, base+"/posts/2", nil)
	require.Equal(t, http.StatusOK, code)
	edited := decode[models.Post](t, env.Data)
	assert.Equal(t, "Edited", edited.Title)
	assert.NotEmpty(t, edited.EditedAt)

	code, env = api.do(http.MethodPut, base+"/posts/999", gin.H{"title": "x", "body": "y"})
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"changed":false}`, string(env.Data))

	code, env = api.do(http.MethodDelete, base+"/posts/1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Are you sure you want to delete this post?", env.Message)

	code, env = api.do(http.MethodDelete, base+"/posts/1?confirm=true", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Post deleted successfully!", env.Message)

	code, _ = api.do(http.MethodGet, base+"/posts/1", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = api.do(http.MethodGet, base+"/posts/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 40021, env.Code)

	_, env = api.do(http.MethodGet, base, nil)
	assert.Equal(t, 3, decode[session.Snapshot](t, env.Data).Collection)
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t, &stubSource{})
	code, env := api.do(http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 40400, env.Code)
}

type wsFrame struct {
	Type     string            `json:"type"`
	Snapshot *session.Snapshot `json:"snapshot"`
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var f wsFrame
	require.NoError(t, json.Unmarshal(msg, &f))
	return f
}

func TestWebSocketPushAndProximity(t *testing.T) {
	api := newTestAPI(t, &stubSource{posts: numbered(25)})
	id := api.newSession()
	ts := httptest.NewServer(api.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/sessions/" + id + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "WebSocket dial failed, resp: %+v", resp)
	defer conn.Close()

	first := readFrame(t, conn)
	require.Equal(t, "snapshot", first.Type)
	assert.Equal(t, 1, api.hub.Count(id))
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, 10, first.Snapshot.Shown)

	cmd := fmt.Sprintf(`{"type":"entered_view","generation":%d}`, first.Snapshot.Generation)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(cmd)))
	next := readFrame(t, conn)
	require.NotNil(t, next.Snapshot)
	assert.Equal(t, 20, next.Snapshot.Shown)

	// a stale generation is ignored; the follow-up snapshot request proves it
	stale := fmt.Sprintf(`{"type":"entered_view","generation":%d}`, first.Snapshot.Generation+7)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(stale)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"snapshot"}`)))
	again := readFrame(t, conn)
	require.NotNil(t, again.Snapshot)
	assert.Equal(t, 20, again.Snapshot.Shown)

	code, _ := api.do(http.MethodPut, "/api/v1/sessions/"+id+"/search", gin.H{"search": "Post 1"})
	require.Equal(t, http.StatusOK, code)
	pushed := readFrame(t, conn)
	require.NotNil(t, pushed.Snapshot)
	assert.Equal(t, "Post 1", pushed.Snapshot.Params.Search)
	assert.Equal(t, 10, pushed.Snapshot.Shown)

	code, _ = api.do(http.MethodDelete, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "closed", readFrame(t, conn).Type)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return api.hub.Count(id) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketOriginCheck(t *testing.T) {
	cfg := config.AppConfig{
		GinMode:            "test",
		RateLimitPerMinute: 100000,
		AllowedOrigins:     []string{"https://board.example.com"},
	}
	api := newTestAPIWithConfig(t, &stubSource{posts: numbered(3)}, cfg)
	id := api.newSession()
	ts := httptest.NewServer(api.router)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/sessions/" + id + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example.com"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, api.hub.Count(id))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://board.example.com"}})
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "snapshot", readFrame(t, conn).Type)
}
