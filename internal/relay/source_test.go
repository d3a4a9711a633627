package relay

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func serveContacts(t *testing.T, handler fasthttp.RequestHandler) *Source {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { _ = ln.Close() })
	return NewSource("http://relay.test/", func(string) (net.Conn, error) { return ln.Dial() })
}

func TestSource_FriendAndGroupLists(t *testing.T) {
	src := serveContacts(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")
		switch string(ctx.Path()) {
		case "/friends":
			ctx.SetBodyString(`{"groups":[{"id":1,"name":"Work"}],"friends":[{"id":7,"name":"seven","remark":"Sev","group_id":1}]}`)
		case "/groups":
			ctx.SetBodyString(`[{"id":100,"name":"team","owner_id":7}]`)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	})

	groups, friends, err := src.FriendList(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, friends, 1)
	assert.Equal(t, "Sev", friends[0].Remark)
	assert.Equal(t, uint8(1), friends[0].GroupId)

	chats, err := src.GroupList(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, int64(7), chats[0].OwnerId)
}

func TestSource_BadStatus(t *testing.T) {
	src := serveContacts(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	})
	_, err := src.GroupList(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestSource_CancelledContext(t *testing.T) {
	src := NewSource("http://relay.test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := src.FriendList(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
