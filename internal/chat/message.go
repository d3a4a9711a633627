package chat

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// SessionKey identifies a conversation. A group and a friend with the same
// numeric id are different conversations.
type SessionKey struct {
	Account int64 `json:"account"`  // friend uin or group code
	IsGroup bool  `json:"is_group"` // true: group; false: private
}

// FriendKey is the key of the 1:1 conversation with account.
func FriendKey(account int64) SessionKey { return SessionKey{Account: account} }

// GroupKey is the key of the group conversation with code account.
func GroupKey(account int64) SessionKey { return SessionKey{Account: account, IsGroup: true} }

func (k SessionKey) String() string {
	if k.IsGroup {
		return strconv.FormatInt(k.Account, 10) + " group"
	}
	return strconv.FormatInt(k.Account, 10) + " friend"
}

// Message is one entry in a conversation history.
type Message struct {
	Id      string `json:"id"`
	Sender  int64  `json:"sender"`  // originating account (self or remote peer)
	Target  int64  `json:"target"`  // account the message is addressed to
	Content string `json:"content"` // message body
}

// SummaryEntry is the sidebar-facing projection of a conversation.
type SummaryEntry struct {
	Key         SessionKey `json:"key"`
	DisplayName string     `json:"display_name"`
	LastMessage string     `json:"last_message"`
}

// LayoutMode says whether the list and conversation panes are shown side by side.
type LayoutMode int

const (
	LayoutSplit    LayoutMode = iota // both panes visible
	LayoutCombined                   // single pane, window folded
)

func (m LayoutMode) String() string {
	if m == LayoutCombined {
		return "combined"
	}
	return "split"
}

func (m LayoutMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// IntentKind is what a ViewIntent asks the view to show.
type IntentKind int

const (
	IntentNone IntentKind = iota
	IntentShowConversation
	IntentShowConversationPane
)

func (k IntentKind) String() string {
	switch k {
	case IntentShowConversation:
		return "show_conversation"
	case IntentShowConversationPane:
		return "show_conversation_pane"
	default:
		return "none"
	}
}

// ViewIntent tells the rendering layer what to display next. Only the
// latest one matters.
type ViewIntent struct {
	Kind IntentKind
	Key  SessionKey // set for IntentShowConversation
}

func ShowConversation(key SessionKey) ViewIntent {
	return ViewIntent{Kind: IntentShowConversation, Key: key}
}

func ShowConversationPane() ViewIntent {
	return ViewIntent{Kind: IntentShowConversationPane}
}

func (v ViewIntent) String() string {
	if v.Kind == IntentShowConversation {
		return fmt.Sprintf("%s(%s)", v.Kind, v.Key)
	}
	return v.Kind.String()
}

type intentJSON struct {
	Kind    string `json:"kind"`
	Account int64  `json:"account,omitempty"`
	IsGroup bool   `json:"is_group,omitempty"`
}

func (v ViewIntent) MarshalJSON() ([]byte, error) {
	out := intentJSON{Kind: v.Kind.String()}
	if v.Kind == IntentShowConversation {
		out.Account, out.IsGroup = v.Key.Account, v.Key.IsGroup
	}
	return json.Marshal(&out)
}
