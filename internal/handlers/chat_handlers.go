package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-im/internal/chat"
	"github.com/pelusa-v/pelusa-im/internal/sidebar"
)

const eventTimeout = 5 * time.Second

type ItemLister interface {
	Items() []sidebar.ChatItem
}

// Handlers is the HTTP side of the rendering layer: UI events go into the
// loop, view frames come out of the hub.
type Handlers struct {
	loop    *chat.Loop
	hub     *Hub
	sidebar ItemLister
	log     *zap.Logger
}

func New(loop *chat.Loop, hub *Hub, sb ItemLister, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{loop: loop, hub: hub, sidebar: sb, log: log}
}

func (h *Handlers) Register(app *fiber.App) {
	app.Use("/api/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/api/ws/view", websocket.New(h.ViewHandler))

	app.Get("/api/summary", h.SummaryHandler)
	app.Get("/api/sidebar", h.SidebarHandler)
	app.Get("/api/conversation", h.ConversationHandler)

	app.Post("/api/select", h.SelectHandler)
	app.Post("/api/send", h.SendHandler)
	app.Post("/api/layout", h.LayoutHandler)
	app.Post("/api/sidebar/init", h.InitSidebarHandler)
	app.Post("/api/inbound", h.InboundHandler)
}

type eventReply struct {
	Status string     `json:"status"` // ok, deferred or error
	Frame  *ViewFrame `json:"frame,omitempty"`
	Error  string     `json:"error,omitempty"`
}

func (h *Handlers) dispatch(c *fiber.Ctx, ev chat.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	res, err := h.loop.Send(ctx, ev)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(eventReply{Status: "error", Error: err.Error()})
	}
	switch {
	case errors.Is(res.Err, chat.ErrDeferred):
		return c.Status(fiber.StatusAccepted).JSON(eventReply{Status: "deferred"})
	case res.Err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(eventReply{Status: "error", Error: res.Err.Error()})
	}
	frame := h.hub.Frame(res.Intent, res.Layout)
	return c.JSON(eventReply{Status: "ok", Frame: &frame})
}

func parseKey(c *fiber.Ctx, param string) (chat.SessionKey, error) {
	account, err := strconv.ParseInt(c.Query(param), 10, 64)
	if err != nil {
		return chat.SessionKey{}, fiber.NewError(fiber.StatusBadRequest, "invalid "+param)
	}
	group := false
	if v := c.Query("group"); v != "" {
		if group, err = strconv.ParseBool(v); err != nil {
			return chat.SessionKey{}, fiber.NewError(fiber.StatusBadRequest, "invalid group")
		}
	}
	return chat.SessionKey{Account: account, IsGroup: group}, nil
}

// SummaryHandler GET /api/summary
func (h *Handlers) SummaryHandler(c *fiber.Ctx) error {
	var out []chat.SummaryEntry
	if err := h.loop.Do(c.UserContext(), func(d *chat.Dispatcher) { out = d.Registry().Summary() }); err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(out)
}

// SidebarHandler GET /api/sidebar
func (h *Handlers) SidebarHandler(c *fiber.Ctx) error {
	return c.JSON(h.sidebar.Items())
}

// ConversationHandler GET /api/conversation?account=&group=
func (h *Handlers) ConversationHandler(c *fiber.Ctx) error {
	key, err := parseKey(c, "account")
	if err != nil {
		return err
	}
	var (
		messages []chat.Message
		found    bool
	)
	if err := h.loop.Do(c.UserContext(), func(d *chat.Dispatcher) {
		messages, found = d.Registry().History(key)
	}); err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	if !found {
		return fiber.ErrNotFound
	}
	title, subtitle := h.hub.Heading(key)
	return c.JSON(fiber.Map{"key": key, "title": title, "subtitle": subtitle, "messages": messages})
}

// SelectHandler POST /api/select?account=&group=
func (h *Handlers) SelectHandler(c *fiber.Ctx) error {
	key, err := parseKey(c, "account")
	if err != nil {
		return err
	}
	return h.dispatch(c, chat.SelectChat{Account: key.Account, IsGroup: key.IsGroup})
}

// SendHandler POST /api/send?target= with content as query or JSON body
func (h *Handlers) SendHandler(c *fiber.Ctx) error {
	target, err := strconv.ParseInt(c.Query("target"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid target")
	}
	content := c.Query("content")
	if content == "" && len(c.Body()) > 0 {
		var body struct {
			Content string `json:"content"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid body")
		}
		content = body.Content
	}
	if strings.TrimSpace(content) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing content")
	}
	return h.dispatch(c, chat.SendText{Target: target, Content: content})
}

// LayoutHandler POST /api/layout?folded=
func (h *Handlers) LayoutHandler(c *fiber.Ctx) error {
	folded, err := strconv.ParseBool(c.Query("folded"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid folded")
	}
	return h.dispatch(c, chat.LayoutChanged{Folded: folded})
}

// InitSidebarHandler POST /api/sidebar/init
func (h *Handlers) InitSidebarHandler(c *fiber.Ctx) error {
	return h.dispatch(c, chat.InitSidebar{})
}

type inboundBody struct {
	Chat    int64  `json:"chat"`
	IsGroup bool   `json:"is_group"`
	Sender  int64  `json:"sender"`
	Content string `json:"content"`
}

// InboundHandler POST /api/inbound injects a network message
func (h *Handlers) InboundHandler(c *fiber.Ctx) error {
	var in inboundBody
	if err := c.BodyParser(&in); err != nil || in.Chat == 0 || in.Sender == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid message")
	}
	return h.dispatch(c, chat.Inbound{ChatItem: in.Chat, IsGroup: in.IsGroup, Sender: in.Sender, Content: in.Content})
}

// uiEvent is what a view may send over its websocket.
type uiEvent struct {
	Type    string `json:"type"` // select | send | layout
	Account int64  `json:"account,omitempty"`
	IsGroup bool   `json:"is_group,omitempty"`
	Target  int64  `json:"target,omitempty"`
	Content string `json:"content,omitempty"`
	Folded  bool   `json:"folded,omitempty"`
}

func (e uiEvent) event() (chat.Event, bool) {
	switch e.Type {
	case "select":
		return chat.SelectChat{Account: e.Account, IsGroup: e.IsGroup}, true
	case "send":
		if e.Content == "" {
			return nil, false
		}
		return chat.SendText{Target: e.Target, Content: e.Content}, true
	case "layout":
		return chat.LayoutChanged{Folded: e.Folded}, true
	}
	return nil, false
}

// ViewHandler GET /api/ws/view
func (h *Handlers) ViewHandler(c *websocket.Conn) {
	h.serveView(c)
}

func (h *Handlers) serveView(conn ConnLike) {
	client := &viewClient{id: uuid.NewString(), conn: conn, send: make(chan []byte, 16)}
	h.hub.register(client)
	defer h.hub.unregister(client)
	go client.writePump(h.log)
	h.log.Debug("view connected", zap.String("view", client.id))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			h.log.Debug("view disconnected", zap.String("view", client.id), zap.Error(err))
			return
		}
		var msg uiEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		ev, ok := msg.event()
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		err = h.loop.Post(ctx, ev)
		cancel()
		if err != nil {
			h.log.Warn("post view event", zap.Error(err))
			return
		}
	}
}
