package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pelusa-v/pelusa-im/internal/chat"
)

type fakeConn struct {
	in     chan []byte
	out    chan []byte
	once   sync.Once
	closed chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 8), out: make(chan []byte, 8), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-f.in:
		if !ok {
			return 0, nil, io.EOF
		}
		return 1, data, nil
	case <-f.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("use of closed connection")
	case f.out <- data:
		return nil
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

type recordingPoster struct {
	mu     sync.Mutex
	events []chat.Event
}

func (p *recordingPoster) Post(ctx context.Context, ev chat.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPoster) snapshot() []chat.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]chat.Event(nil), p.events...)
}

type accounts struct{ saved int64 }

func (a *accounts) SaveAccount(ctx context.Context, account int64) error {
	a.saved = account
	return nil
}

func TestDecodeFrame(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"type":"message","chat":100,"is_group":true,"sender":55,"content":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, Frame{Type: FrameMessage, Chat: 100, IsGroup: true, Sender: 55, Content: "hello"}, f)

	for _, bad := range []string{
		`not json`,
		`{"type":"login"}`,
		`{"type":"message","chat":1}`,
		`{"type":"send","content":"x"}`,
		`{"type":"typing"}`,
	} {
		_, err := DecodeFrame([]byte(bad))
		assert.ErrorIs(t, err, ErrBadFrame, bad)
	}
}

func TestClient_ReadPumpPostsEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newFakeConn()
	poster := &recordingPoster{}
	acc := &accounts{}
	c := NewClient(conn, Options{Poster: poster, Accounts: acc})

	conn.in <- []byte(`{"type":"login","account":10001}`)
	conn.in <- []byte(`garbage`)
	conn.in <- []byte(`{"type":"message","chat":100,"is_group":true,"sender":55,"content":"hello"}`)
	close(conn.in)

	err := c.ReadPump(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	events := poster.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, chat.IdentityReady{Account: 10001}, events[0])
	assert.Equal(t, chat.Inbound{ChatItem: 100, IsGroup: true, Sender: 55, Content: "hello"}, events[1])
	assert.Equal(t, int64(10001), acc.saved)
}

func TestClient_SendFriendMessage(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newFakeConn()
	c := NewClient(conn, Options{Poster: &recordingPoster{}, SendBuffer: 1})

	require.NoError(t, c.SendFriendMessage(7, "hi"))
	assert.ErrorIs(t, c.SendFriendMessage(7, "dropped"), ErrSendBufferFull)

	done := make(chan struct{})
	go func() {
		c.WritePump()
		close(done)
	}()

	select {
	case data := <-conn.out:
		var f Frame
		require.NoError(t, json.Unmarshal(data, &f))
		assert.Equal(t, Frame{Type: FrameSend, Target: 7, Content: "hi"}, f)
	case <-time.After(time.Second):
		t.Fatal("frame not written")
	}

	require.NoError(t, c.Close())
	<-done
	assert.ErrorIs(t, c.SendFriendMessage(7, "late"), ErrClosed)
}

func TestClient_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newFakeConn()
	c := NewClient(conn, Options{Poster: &recordingPoster{}})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
