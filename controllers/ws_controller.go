package controllers

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cppla/postboard/session"
	"github.com/cppla/postboard/utils"
)

// originChecker matches the Origin header against the CORS origin list.
// Requests without an Origin header come from non-browser clients and pass.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// wsEvent is a server to client frame.
type wsEvent struct {
	Type     string            `json:"type"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
}

// wsCommand is a client to server frame.
type wsCommand struct {
	Type       string `json:"type"`
	Generation uint64 `json:"generation"`
}

// Watch streams snapshots of a session and accepts proximity signals.
func (sc *SessionController) Watch(ctx *gin.Context) {
	s, ok := lookupSession(ctx, sc.sessions)
	if !ok {
		return
	}
	conn, err := sc.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		utils.Logger.Warn("websocket upgrade failed", zap.String("session", s.ID), zap.Error(err))
		return
	}
	defer conn.Close()

	wc := sc.hub.Add(s.ID, conn)
	defer sc.hub.Remove(s.ID, wc)

	// single slot holding the latest snapshot not yet written
	updates := make(chan session.Snapshot, 1)
	unsubscribe := s.Subscribe(func(snap session.Snapshot) {
		select {
		case updates <- snap:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- snap:
			default:
			}
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case snap := <-updates:
				if err := writeSnapshot(wc, snap); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	if err := writeSnapshot(wc, s.Snapshot()); err != nil {
		return
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Logger.Debug("websocket read error", zap.String("session", s.ID), zap.Error(err))
			}
			return
		}
		var cmd wsCommand
		if err := json.Unmarshal(msg, &cmd); err != nil {
			continue
		}
		switch cmd.Type {
		case "entered_view":
			s.EnteredView(cmd.Generation)
		case "advance":
			s.TriggerAdvance()
		case "snapshot":
			if err := writeSnapshot(wc, s.Snapshot()); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(wc *utils.WSConn, snap session.Snapshot) error {
	b, err := json.Marshal(wsEvent{Type: "snapshot", Snapshot: &snap})
	if err != nil {
		return err
	}
	return wc.WriteText(b)
}
