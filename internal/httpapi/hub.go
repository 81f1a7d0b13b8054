package httpapi

import (
	"sync"

	"github.com/gorilla/websocket"

	"tagscope/internal/logger"
)

// Hub 管理面板的 WebSocket 连接，并向所有连接广播刷新通知
type Hub struct {
	mu    sync.Mutex
	conns map[*wsConn]struct{}
	log   logger.Logger
}

// gorilla/websocket 同一连接只允许一个并发 writer
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewHub 创建连接管理器
func NewHub(l logger.Logger) *Hub {
	if l == nil {
		l = logger.NewNop()
	}
	return &Hub{conns: make(map[*wsConn]struct{}), log: l}
}

func (h *Hub) add(c *websocket.Conn) *wsConn {
	w := &wsConn{conn: c}
	h.mu.Lock()
	h.conns[w] = struct{}{}
	h.mu.Unlock()
	return w
}

func (h *Hub) remove(w *wsConn) {
	h.mu.Lock()
	delete(h.conns, w)
	h.mu.Unlock()
	w.conn.Close()
}

// Broadcast 向所有面板连接推送一次刷新通知，
// 写失败的连接就地摘除
func (h *Hub) Broadcast() {
	h.mu.Lock()
	conns := make([]*wsConn, 0, len(h.conns))
	for w := range h.conns {
		conns = append(conns, w)
	}
	h.mu.Unlock()

	for _, w := range conns {
		w.writeMu.Lock()
		err := w.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"refresh"}`))
		w.writeMu.Unlock()
		if err != nil {
			h.log.Debug("推送刷新失败，摘除连接", "err", err)
			h.remove(w)
		}
	}
}
