package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/pelusa-v/pelusa-im/internal/contacts"
)

const defaultFetchTimeout = 10 * time.Second

// Source fetches contact lists from the relay's HTTP side. It implements
// contacts.Source.
type Source struct {
	base   string
	client *fasthttp.Client
}

// NewSource builds a Source for base, e.g. "http://127.0.0.1:4000". dial
// overrides the network dialer when non-nil.
func NewSource(base string, dial func(addr string) (net.Conn, error)) *Source {
	c := &fasthttp.Client{Name: "pelusa-im"}
	if dial != nil {
		c.Dial = dial
	}
	return &Source{base: strings.TrimRight(base, "/"), client: c}
}

type friendList struct {
	Groups  []contacts.FriendsGroup `json:"groups"`
	Friends []contacts.Friend       `json:"friends"`
}

func (s *Source) FriendList(ctx context.Context) ([]contacts.FriendsGroup, []contacts.Friend, error) {
	var out friendList
	if err := s.get(ctx, "/friends", &out); err != nil {
		return nil, nil, err
	}
	return out.Groups, out.Friends, nil
}

func (s *Source) GroupList(ctx context.Context) ([]contacts.Group, error) {
	var out []contacts.Group
	if err := s.get(ctx, "/groups", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Source) get(ctx context.Context, path string, v any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.base + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	timeout := defaultFetchTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, code)
	}
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}
