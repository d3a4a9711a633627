package chat

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrPrecondition is returned when an operation needs the self account
	// before the identity provider knows it.
	ErrPrecondition = errors.New("precondition failed")
	// ErrStaleFocus would mean focus points at a missing conversation.
	ErrStaleFocus = errors.New("focus without conversation")
)

type Identity interface {
	SelfAccount() (int64, error)
}

// Directory resolves display names. Implementations fall back to the
// stringified id when a lookup misses.
type Directory interface {
	FriendRemark(id int64) string
	GroupName(id int64) string
}

type conversation struct {
	Key      SessionKey
	Messages []Message // append-only, insertion order
}

// Registry owns every open conversation and the summary list that mirrors
// them. It is not safe for concurrent use; Loop serializes access.
type Registry struct {
	identity Identity
	names    Directory
	log      *zap.Logger

	conversations []*conversation // front = most recently inserted
	summary       SummaryList

	focus    SessionKey
	hasFocus bool
	layout   LayoutMode
	latest   ViewIntent
}

func NewRegistry(identity Identity, names Directory, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{identity: identity, names: names, log: log}
}

func (r *Registry) find(key SessionKey) *conversation {
	for _, c := range r.conversations {
		if c.Key == key {
			return c
		}
	}
	return nil
}

func (r *Registry) Contains(key SessionKey) bool { return r.find(key) != nil }

func (r *Registry) Len() int { return len(r.conversations) }

// Insert creates an empty conversation and its summary entry at the front.
// It reports false and changes nothing when key is already present.
func (r *Registry) Insert(key SessionKey) bool {
	if r.Contains(key) {
		return false
	}
	r.open(key, "")
	return true
}

func (r *Registry) insertConversation(key SessionKey) {
	r.conversations = append([]*conversation{{Key: key}}, r.conversations...)
}

func (r *Registry) displayName(key SessionKey) string {
	if r.names == nil {
		return strconv.FormatInt(key.Account, 10)
	}
	if key.IsGroup {
		return r.names.GroupName(key.Account)
	}
	return r.names.FriendRemark(key.Account)
}

// open creates the conversation and its summary entry together.
func (r *Registry) open(key SessionKey, lastMessage string) {
	if !r.Contains(key) {
		r.insertConversation(key)
	}
	r.summary.Insert(SummaryEntry{Key: key, DisplayName: r.displayName(key), LastMessage: lastMessage})
	r.log.Debug("conversation opened", zap.Stringer("key", key), zap.Int("open", len(r.conversations)))
}

func (r *Registry) focusOn(key SessionKey) ViewIntent {
	r.focus, r.hasFocus = key, true
	r.latest = ShowConversation(key)
	return r.latest
}

// Select focuses key, opening it first when needed. Selecting the focused
// key again re-emits the same intent.
func (r *Registry) Select(key SessionKey) (ViewIntent, error) {
	if !r.Contains(key) {
		r.open(key, "")
	}
	if r.find(key) == nil {
		return r.latest, fmt.Errorf("%w: %s: %w", ErrPrecondition, key, ErrStaleFocus)
	}
	return r.focusOn(key), nil
}

func (r *Registry) selfAccount() (int64, error) {
	if r.identity == nil {
		return 0, fmt.Errorf("%w: no identity provider", ErrPrecondition)
	}
	self, err := r.identity.SelfAccount()
	if err != nil {
		return 0, fmt.Errorf("%w: self account: %w", ErrPrecondition, err)
	}
	return self, nil
}

// upsert is the create-or-update step shared by both append paths.
func (r *Registry) upsert(key SessionKey, content string) *conversation {
	if c := r.find(key); c != nil {
		if !r.summary.Touch(key, content) {
			r.summary.Insert(SummaryEntry{Key: key, DisplayName: r.displayName(key), LastMessage: content})
		}
		return c
	}
	r.open(key, content)
	if len(r.conversations) == 1 {
		r.focusOn(key)
	}
	return r.find(key)
}

func (r *Registry) push(c *conversation, sender, target int64, content string) {
	c.Messages = append(c.Messages, Message{
		Id:      uuid.NewString(),
		Sender:  sender,
		Target:  target,
		Content: content,
	})
}

// SendSelfMessage records a 1:1 message written by the local account.
func (r *Registry) SendSelfMessage(target int64, content string) (ViewIntent, error) {
	self, err := r.selfAccount()
	if err != nil {
		return r.latest, err
	}
	c := r.upsert(FriendKey(target), content)
	r.push(c, self, target, content)
	return r.latest, nil
}

// ReceiveMessage records a message from sender in the conversation chat.
func (r *Registry) ReceiveMessage(chat SessionKey, sender int64, content string) (ViewIntent, error) {
	self, err := r.selfAccount()
	if err != nil {
		return r.latest, err
	}
	c := r.upsert(chat, content)
	r.push(c, sender, self, content)
	return r.latest, nil
}

// SetLayout records the layout. Folding emits ShowConversationPane; going
// back to split restores the focus-derived intent.
func (r *Registry) SetLayout(mode LayoutMode) ViewIntent {
	prev := r.layout
	r.layout = mode
	switch {
	case mode == LayoutCombined && prev != LayoutCombined:
		r.latest = ShowConversationPane()
	case mode == LayoutSplit && prev != LayoutSplit:
		if r.hasFocus {
			r.latest = ShowConversation(r.focus)
		} else {
			r.latest = ViewIntent{}
		}
	}
	return r.latest
}

// RefreshNames re-resolves every summary display name.
func (r *Registry) RefreshNames() ViewIntent {
	r.summary.Rename(r.displayName)
	return r.latest
}

func (r *Registry) Focus() (SessionKey, bool) { return r.focus, r.hasFocus }

func (r *Registry) Layout() LayoutMode { return r.layout }

func (r *Registry) Latest() ViewIntent { return r.latest }

func (r *Registry) Summary() []SummaryEntry { return r.summary.Entries() }

func (r *Registry) Entry(key SessionKey) (SummaryEntry, bool) { return r.summary.Get(key) }

func (r *Registry) Keys() []SessionKey {
	keys := make([]SessionKey, len(r.conversations))
	for i, c := range r.conversations {
		keys[i] = c.Key
	}
	return keys
}

// History copies the messages of key out of the registry.
func (r *Registry) History(key SessionKey) ([]Message, bool) {
	c := r.find(key)
	if c == nil {
		return nil, false
	}
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out, true
}
