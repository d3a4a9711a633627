package handlers

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-im/internal/chat"
)

// Names resolves what the conversation header shows.
type Names interface {
	chat.Directory
	FriendNick(id int64) string
}

// ViewFrame is what connected views receive after every processed event.
type ViewFrame struct {
	Intent   chat.ViewIntent `json:"intent"`
	Layout   chat.LayoutMode `json:"layout"`
	Title    string          `json:"title,omitempty"`
	Subtitle string          `json:"subtitle,omitempty"`
}

type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

type viewClient struct {
	id   string
	conn ConnLike
	send chan []byte
}

// Hub fans view frames out to every connected view. It implements
// chat.Renderer and is called on the loop goroutine.
type Hub struct {
	names Names
	log   *zap.Logger

	mu      sync.RWMutex
	clients map[string]*viewClient
	last    []byte
}

func NewHub(names Names, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{names: names, log: log, clients: map[string]*viewClient{}}
}

// Heading mirrors the conversation header: group name over the group id,
// friend remark over "nick (id)".
func (h *Hub) Heading(key chat.SessionKey) (title, subtitle string) {
	id := fmt.Sprint(key.Account)
	if h.names == nil {
		return id, id
	}
	if key.IsGroup {
		return h.names.GroupName(key.Account), id
	}
	return h.names.FriendRemark(key.Account), fmt.Sprintf("%s (%d)", h.names.FriendNick(key.Account), key.Account)
}

func (h *Hub) Frame(intent chat.ViewIntent, layout chat.LayoutMode) ViewFrame {
	f := ViewFrame{Intent: intent, Layout: layout}
	if intent.Kind == chat.IntentShowConversation {
		f.Title, f.Subtitle = h.Heading(intent.Key)
	}
	return f
}

func (h *Hub) Render(intent chat.ViewIntent, layout chat.LayoutMode) {
	data, err := json.Marshal(h.Frame(intent, layout))
	if err != nil {
		h.log.Error("encode view frame", zap.Error(err))
		return
	}
	// unregister closes send channels under the same lock
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Debug("view too slow, frame dropped", zap.String("view", c.id))
		}
	}
}

func (h *Hub) register(c *viewClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	if h.last != nil {
		select {
		case c.send <- h.last:
		default:
		}
	}
}

func (h *Hub) unregister(c *viewClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

func (h *Hub) Views() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump stops at the first failed write and closes the connection so
// the read side ends the view.
func (c *viewClient) writePump(log *zap.Logger) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("view write failed", zap.String("view", c.id), zap.Error(err))
			_ = c.conn.Close()
			return
		}
	}
}
