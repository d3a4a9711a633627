package chat

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrDeferred marks an event parked until the self account is known.
var ErrDeferred = errors.New("event deferred until identity is ready")

// Event is one inbound notification for the dispatcher.
type Event interface {
	eventName() string
}

type LayoutChanged struct {
	Folded bool
}

type SelectChat struct {
	Account int64
	IsGroup bool
}

type SendText struct {
	Target  int64
	Content string
}

// Inbound is a message delivered by the network client. ChatItem is the
// sidebar id: the group code for group messages, the peer for friends.
type Inbound struct {
	ChatItem int64
	IsGroup  bool
	Sender   int64
	Content  string
}

type InitSidebar struct{}

type IdentityReady struct {
	Account int64
}

type ContactsRefreshed struct {
	Err error
}

func (LayoutChanged) eventName() string     { return "layout_changed" }
func (SelectChat) eventName() string        { return "select_chat" }
func (SendText) eventName() string          { return "send_text" }
func (Inbound) eventName() string           { return "inbound" }
func (InitSidebar) eventName() string       { return "init_sidebar" }
func (IdentityReady) eventName() string     { return "identity_ready" }
func (ContactsRefreshed) eventName() string { return "contacts_refreshed" }

// Sidebar keeps its own entry list in lockstep with the registry summary.
type Sidebar interface {
	InsertChatItem(key SessionKey, lastMessage string)
	UpdateChatItem(key SessionKey, lastMessage string)
	RefreshContact()
	RefreshNames()
}

// Network sends 1:1 messages. Delivery is fire-and-forget.
type Network interface {
	SendFriendMessage(target int64, content string) error
}

type IdentitySetter interface {
	Identity
	Set(account int64) error
}

// Dispatcher turns events into registry calls and mirrors every
// create/update into the sidebar.
type Dispatcher struct {
	registry *Registry
	sidebar  Sidebar
	network  Network
	identity IdentitySetter
	log      *zap.Logger

	backlog    []Event
	backlogMax int
}

type DispatcherOptions struct {
	Sidebar  Sidebar
	Network  Network
	Identity IdentitySetter
	Backlog  int // events parked while the identity is unknown
	Logger   *zap.Logger
}

func NewDispatcher(registry *Registry, opts DispatcherOptions) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	limit := opts.Backlog
	if limit <= 0 {
		limit = 256
	}
	return &Dispatcher{
		registry:   registry,
		sidebar:    opts.Sidebar,
		network:    opts.Network,
		identity:   opts.Identity,
		log:        log,
		backlogMax: limit,
	}
}

func (d *Dispatcher) Registry() *Registry { return d.registry }

func (d *Dispatcher) Pending() int { return len(d.backlog) }

// Dispatch applies ev and returns the intent the view should render.
func (d *Dispatcher) Dispatch(ev Event) (ViewIntent, error) {
	switch ev := ev.(type) {
	case LayoutChanged:
		if ev.Folded {
			return d.registry.SetLayout(LayoutCombined), nil
		}
		return d.registry.SetLayout(LayoutSplit), nil

	case SelectChat:
		key := SessionKey{Account: ev.Account, IsGroup: ev.IsGroup}
		if !d.registry.Contains(key) && d.sidebar != nil {
			d.sidebar.InsertChatItem(key, "")
		}
		return d.registry.Select(key)

	case SendText:
		key := FriendKey(ev.Target)
		existed := d.registry.Contains(key)
		intent, err := d.registry.SendSelfMessage(ev.Target, ev.Content)
		if err != nil {
			return d.park(ev, err)
		}
		d.mirror(key, existed, ev.Content)
		if d.network != nil {
			if err := d.network.SendFriendMessage(ev.Target, ev.Content); err != nil {
				d.log.Warn("send friend message failed", zap.Int64("target", ev.Target), zap.Error(err))
			}
		}
		return intent, nil

	case Inbound:
		key := SessionKey{Account: ev.ChatItem, IsGroup: ev.IsGroup}
		existed := d.registry.Contains(key)
		intent, err := d.registry.ReceiveMessage(key, ev.Sender, ev.Content)
		if err != nil {
			return d.park(ev, err)
		}
		d.mirror(key, existed, ev.Content)
		return intent, nil

	case InitSidebar:
		if d.sidebar != nil {
			d.sidebar.RefreshContact()
		}
		return d.registry.Latest(), nil

	case IdentityReady:
		if d.identity != nil {
			if err := d.identity.Set(ev.Account); err != nil {
				return d.registry.Latest(), fmt.Errorf("identity ready: %w", err)
			}
		}
		return d.replay()

	case ContactsRefreshed:
		if ev.Err != nil {
			d.log.Warn("contact refresh failed", zap.Error(ev.Err))
			return d.registry.Latest(), nil
		}
		if d.sidebar != nil {
			d.sidebar.RefreshNames()
		}
		return d.registry.RefreshNames(), nil
	}
	return d.registry.Latest(), fmt.Errorf("unknown event %T", ev)
}

func (d *Dispatcher) mirror(key SessionKey, existed bool, content string) {
	if d.sidebar == nil {
		return
	}
	if existed {
		d.sidebar.UpdateChatItem(key, content)
	} else {
		d.sidebar.InsertChatItem(key, content)
	}
}

func (d *Dispatcher) park(ev Event, err error) (ViewIntent, error) {
	if !errors.Is(err, ErrPrecondition) {
		return d.registry.Latest(), err
	}
	if len(d.backlog) >= d.backlogMax {
		d.log.Warn("backlog full, dropping oldest event", zap.String("event", d.backlog[0].eventName()))
		d.backlog = d.backlog[1:]
	}
	d.backlog = append(d.backlog, ev)
	d.log.Debug("event deferred", zap.String("event", ev.eventName()), zap.Int("pending", len(d.backlog)))
	return d.registry.Latest(), fmt.Errorf("%w: %w", ErrDeferred, err)
}

// replay re-dispatches parked events in arrival order. Only the last
// intent survives.
func (d *Dispatcher) replay() (ViewIntent, error) {
	pending := d.backlog
	d.backlog = nil
	intent := d.registry.Latest()
	for i, ev := range pending {
		next, err := d.Dispatch(ev)
		if err != nil {
			if errors.Is(err, ErrDeferred) {
				// still no identity; the rest stay parked in order
				d.backlog = append(d.backlog, pending[i+1:]...)
				return intent, err
			}
			d.log.Warn("replay failed", zap.String("event", ev.eventName()), zap.Error(err))
			continue
		}
		intent = next
	}
	if len(pending) > 0 {
		d.log.Info("replayed deferred events", zap.Int("count", len(pending)))
	}
	return intent, nil
}
