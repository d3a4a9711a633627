// Package sidebar is the chat list shown next to the conversation pane. It
// keeps its own items, fed by the dispatcher, so it can be rendered
// independently of the registry.
package sidebar

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-im/internal/chat"
	"github.com/pelusa-v/pelusa-im/internal/contacts"
)

type ChatItem struct {
	Account     int64  `json:"account"`
	IsGroup     bool   `json:"is_group"`
	Username    string `json:"username"`
	LastMessage string `json:"last_message"`
}

func (c ChatItem) Key() chat.SessionKey {
	return chat.SessionKey{Account: c.Account, IsGroup: c.IsGroup}
}

const postTimeout = time.Second

// Refresher reloads the contact cache.
type Refresher interface {
	Refresh(ctx context.Context, src contacts.Source) error
}

// Poster hands an event back to the event loop.
type Poster func(ctx context.Context, ev chat.Event) error

type Options struct {
	Names     chat.Directory
	Refresher Refresher
	Source    contacts.Source
	Post      Poster
	Timeout   time.Duration // per contact refresh
	Logger    *zap.Logger
}

type Sidebar struct {
	mu    sync.RWMutex
	items []ChatItem // front = most recently touched

	names     chat.Directory
	refresher Refresher
	source    contacts.Source
	post      Poster
	timeout   time.Duration
	log       *zap.Logger

	refreshing sync.Mutex
	wg         sync.WaitGroup
}

func New(opts Options) *Sidebar {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Sidebar{
		names:     opts.Names,
		refresher: opts.Refresher,
		source:    opts.Source,
		post:      opts.Post,
		timeout:   timeout,
		log:       log,
	}
}

func (s *Sidebar) username(key chat.SessionKey) string {
	if s.names == nil {
		return strconv.FormatInt(key.Account, 10)
	}
	if key.IsGroup {
		return s.names.GroupName(key.Account)
	}
	return s.names.FriendRemark(key.Account)
}

func (s *Sidebar) index(key chat.SessionKey) int {
	for i := range s.items {
		if s.items[i].Key() == key {
			return i
		}
	}
	return -1
}

// InsertChatItem adds key at the front. Present keys are left alone.
func (s *Sidebar) InsertChatItem(key chat.SessionKey, lastMessage string) {
	name := s.username(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(key) >= 0 {
		return
	}
	s.items = append([]ChatItem{{
		Account:     key.Account,
		IsGroup:     key.IsGroup,
		Username:    name,
		LastMessage: lastMessage,
	}}, s.items...)
}

// UpdateChatItem sets the last message of key and moves it to the front.
func (s *Sidebar) UpdateChatItem(key chat.SessionKey, lastMessage string) {
	s.mu.Lock()
	i := s.index(key)
	if i < 0 {
		s.mu.Unlock()
		s.InsertChatItem(key, lastMessage)
		return
	}
	item := s.items[i]
	item.LastMessage = lastMessage
	copy(s.items[1:i+1], s.items[:i])
	s.items[0] = item
	s.mu.Unlock()
}

func (s *Sidebar) Items() []ChatItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Sidebar) RefreshNames() {
	s.mu.RLock()
	keys := make([]chat.SessionKey, len(s.items))
	for i := range s.items {
		keys[i] = s.items[i].Key()
	}
	s.mu.RUnlock()

	names := make(map[chat.SessionKey]string, len(keys))
	for _, k := range keys {
		names[k] = s.username(k)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if n, ok := names[s.items[i].Key()]; ok {
			s.items[i].Username = n
		}
	}
}

// RefreshContact reloads contacts in the background and posts
// ContactsRefreshed when done. A refresh already running is not doubled.
func (s *Sidebar) RefreshContact() {
	if s.refresher == nil || s.source == nil {
		s.log.Debug("contact refresh skipped, no source configured")
		return
	}
	if !s.refreshing.TryLock() {
		s.log.Debug("contact refresh already running")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.refreshing.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.refresher.Refresh(ctx, s.source)
		cancel()
		if s.post == nil {
			return
		}
		// the refresh deadline may be spent; the completion gets its own
		pctx, pcancel := context.WithTimeout(context.Background(), postTimeout)
		defer pcancel()
		if perr := s.post(pctx, chat.ContactsRefreshed{Err: err}); perr != nil {
			s.log.Warn("post contacts refreshed", zap.Error(perr))
		}
	}()
}

// Wait blocks until background refreshes have finished.
func (s *Sidebar) Wait() { s.wg.Wait() }
