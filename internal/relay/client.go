package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-im/internal/chat"
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrClosed         = errors.New("relay client closed")
)

type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// Poster hands events to the chat loop.
type Poster interface {
	Post(ctx context.Context, ev chat.Event) error
}

// AccountStore remembers the last logged-in account.
type AccountStore interface {
	SaveAccount(ctx context.Context, account int64) error
}

type Options struct {
	Poster     Poster
	Accounts   AccountStore // optional
	SendBuffer int
	Logger     *zap.Logger
}

// Client is the shell's side of a relay connection. It implements
// chat.Network.
type Client struct {
	conn     ConnLike
	poster   Poster
	accounts AccountStore
	log      *zap.Logger

	Send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(conn ConnLike, opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	size := opts.SendBuffer
	if size <= 0 {
		size = 64
	}
	return &Client{
		conn:     conn,
		poster:   opts.Poster,
		accounts: opts.Accounts,
		log:      log,
		Send:     make(chan []byte, size),
		closed:   make(chan struct{}),
	}
}

// Dial connects to the relay websocket at url.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, err
	}
	return NewClient(conn, opts), nil
}

// SendFriendMessage queues a 1:1 send without blocking.
func (c *Client) SendFriendMessage(target int64, content string) error {
	data, err := json.Marshal(&Frame{Type: FrameSend, Target: target, Content: content})
	if err != nil {
		return err
	}
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Run pumps both directions until the connection drops or ctx ends.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
		case <-c.closed:
		}
		c.Close()
	}()
	go c.WritePump()
	return c.ReadPump(ctx)
}

func (c *Client) ReadPump(ctx context.Context) error {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return nil
			default:
			}
			return err
		}
		f, err := DecodeFrame(data)
		if err != nil {
			c.log.Debug("skipping relay frame", zap.Error(err))
			continue
		}
		if err := c.handle(ctx, f); err != nil {
			return err
		}
	}
}

func (c *Client) handle(ctx context.Context, f Frame) error {
	switch f.Type {
	case FrameLogin:
		if c.accounts != nil {
			if err := c.accounts.SaveAccount(ctx, f.Account); err != nil {
				c.log.Warn("save account", zap.Int64("account", f.Account), zap.Error(err))
			}
		}
		c.log.Info("relay login", zap.Int64("account", f.Account))
		return c.poster.Post(ctx, chat.IdentityReady{Account: f.Account})
	case FrameMessage:
		return c.poster.Post(ctx, chat.Inbound{
			ChatItem: f.Chat,
			IsGroup:  f.IsGroup,
			Sender:   f.Sender,
			Content:  f.Content,
		})
	default:
		c.log.Debug("ignoring relay frame", zap.String("type", string(f.Type)))
		return nil
	}
}

func (c *Client) WritePump() {
	for {
		select {
		case <-c.closed:
			return
		case data := <-c.Send:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn("relay write failed", zap.Error(err))
				c.Close()
				return
			}
		}
	}
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
