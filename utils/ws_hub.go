package utils

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WSHub tracks the websocket connections attached to each session.
type WSHub struct {
	mu    sync.RWMutex
	conns map[string][]*WSConn
}

// WSConn serializes writes to one connection.
type WSConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func NewWSHub() *WSHub {
	return &WSHub{
		conns: make(map[string][]*WSConn),
	}
}

func (h *WSHub) Add(sessionID string, conn *websocket.Conn) *WSConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &WSConn{Conn: conn}
	h.conns[sessionID] = append(h.conns[sessionID], c)
	return c
}

func (h *WSHub) Remove(sessionID string, conn *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.conns[sessionID]
	for i, c := range conns {
		if c == conn {
			h.conns[sessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.conns[sessionID]) == 0 {
		delete(h.conns, sessionID)
	}
}

// Count is the number of connections attached to sessionID.
func (h *WSHub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[sessionID])
}

// Send writes message to every connection of sessionID. Write errors are
// left to the connection's read loop to notice.
func (h *WSHub) Send(sessionID string, message []byte) {
	h.mu.RLock()
	conns := append([]*WSConn(nil), h.conns[sessionID]...)
	h.mu.RUnlock()
	for _, c := range conns {
		_ = c.WriteText(message)
	}
}

// WriteText writes one text frame.
func (c *WSConn) WriteText(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.WriteMessage(websocket.TextMessage, message)
}
