package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/session"
	"github.com/cppla/postboard/utils"
)

// SessionController exposes session lifecycle and view controls.
type SessionController struct {
	sessions *session.Registry
	hub      *utils.WSHub
	upgrader websocket.Upgrader
}

// NewSessionController creates a new SessionController instance. Websocket
// upgrades are accepted from allowedOrigins only; empty or "*" allows all.
func NewSessionController(sessions *session.Registry, hub *utils.WSHub, allowedOrigins []string) *SessionController {
	return &SessionController{
		sessions: sessions,
		hub:      hub,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
	}
}

// CreateSession starts a session and its initial load. With ?wait=true the
// response is sent after the load finished.
func (sc *SessionController) CreateSession(ctx *gin.Context) {
	s := sc.sessions.Create()
	sc.startLoad(ctx, s, s.Load)
	utils.Respond(ctx, http.StatusCreated, 0, "success", s.Snapshot())
}

// GetSession returns the current snapshot.
func (sc *SessionController) GetSession(ctx *gin.Context) {
	s, ok := lookupSession(ctx, sc.sessions)
	if !ok {
		return
	}
	utils.Success(ctx, s.Snapshot())
}

// Reload clears the collection and loads it again.
func (sc *SessionController) Reload(ctx *gin.Context) {
	s, ok := lookupSession(ctx, sc.sessions)
	if !ok {
		return
	}
	sc.startLoad(ctx, s, s.Reload)
	utils.Success(ctx, s.Snapshot())
}

func (sc *SessionController) startLoad(ctx *gin.Context, s *session.Session, load func(context.Context) error) {
	if ctx.Query("wait") == "true" {
		// the load is one-shot, a client hanging up must not fail it;
		// errors are recorded on the session snapshot
		_ = load(context.WithoutCancel(ctx.Request.Context()))
		return
	}
	go func() { _ = load(context.Background()) }()
}

// Advance reveals the next increment of posts.
func (sc *SessionController) Advance(ctx *gin.Context) {
	s, ok := lookupSession(ctx, sc.sessions)
	if !ok {
		return
	}
	advanced := s.TriggerAdvance()
	utils.Success(ctx, gin.H{"advanced": advanced, "snapshot": s.Snapshot()})
}

// SetSearch replaces the search text.
func (sc *SessionController) SetSearch(ctx *gin.Context) {
	s, ok := lookupSession(ctx, sc.sessions)
	if !ok {
		return
	}
	var req struct {
		Search string `json:"search"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}
	s.SetSearch(req.Search)
	utils.Success(ctx, s.Snapshot())
}

// SetSort selects the sort column and direction.
func (sc *SessionController) SetSort(ctx *gin.Context) {
	s, ok := lookupSession(ctx, sc.sessions)
	if !ok {
		return
	}
	var req struct {
		SortBy    string `json:"sortBy"`
		SortOrder string `json:"sortOrder"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}
	var (
		col   models.SortColumn
		order models.SortOrder
		err   error
	)
	if req.SortBy != "" {
		if col, err = models.ParseSortColumn(req.SortBy); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40011, err.Error())
			return
		}
	}
	if req.SortOrder != "" {
		if order, err = models.ParseSortOrder(req.SortOrder); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40012, err.Error())
			return
		}
	}
	s.SetSort(col, order)
	utils.Success(ctx, s.Snapshot())
}

// ToggleSort is a column header click.
func (sc *SessionController) ToggleSort(ctx *gin.Context) {
	s, ok := lookupSession(ctx, sc.sessions)
	if !ok {
		return
	}
	col, err := models.ParseSortColumn(ctx.Param("column"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40011, err.Error())
		return
	}
	s.ToggleSort(col)
	utils.Success(ctx, s.Snapshot())
}

// Page returns one classic page of the derived view.
func (sc *SessionController) Page(ctx *gin.Context) {
	s, ok := lookupSession(ctx, sc.sessions)
	if !ok {
		return
	}
	page, limit := parsePagination(ctx.Param("page"), ctx.Query("limit"))
	utils.Success(ctx, s.GotoPage(page, limit))
}

// EndSession drops the session and tells attached websockets.
func (sc *SessionController) EndSession(ctx *gin.Context) {
	id := ctx.Param("id")
	if !sc.sessions.Remove(id) {
		utils.Error(ctx, http.StatusNotFound, 40401, "session not found")
		return
	}
	if b, err := json.Marshal(wsEvent{Type: "closed"}); err == nil {
		sc.hub.Send(id, b)
	}
	utils.Success(ctx, gin.H{"sessionId": id})
}

func lookupSession(ctx *gin.Context, sessions *session.Registry) (*session.Session, bool) {
	s, ok := sessions.Get(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40401, "session not found")
		return nil, false
	}
	return s, true
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}
