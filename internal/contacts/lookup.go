package contacts

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const lookupTimeout = 2 * time.Second

// Lookups never fail: a miss falls back to the decimal id and is logged.

func (s *Store) miss(kind string, id int64, err error) string {
	s.log.Warn("contact lookup miss", zap.String("kind", kind), zap.Int64("id", id), zap.Error(err))
	return strconv.FormatInt(id, 10)
}

// FriendRemark returns the remark, the nick when no remark is set, or the id.
func (s *Store) FriendRemark(id int64) string {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	f, err := s.Friend(ctx, id)
	if err != nil {
		return s.miss("friend", id, err)
	}
	if f.Remark != "" {
		return f.Remark
	}
	return f.Name
}

func (s *Store) FriendNick(id int64) string {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	f, err := s.Friend(ctx, id)
	if err != nil {
		return s.miss("friend", id, err)
	}
	return f.Name
}

func (s *Store) GroupName(id int64) string {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	g, err := s.Group(ctx, id)
	if err != nil {
		return s.miss("group", id, err)
	}
	return g.Name
}

// Source fetches the remote contact lists.
type Source interface {
	FriendList(ctx context.Context) ([]FriendsGroup, []Friend, error)
	GroupList(ctx context.Context) ([]Group, error)
}

// Refresh replaces both cached lists with the source's.
func (s *Store) Refresh(ctx context.Context, src Source) error {
	groups, friends, err := src.FriendList(ctx)
	if err != nil {
		return fmt.Errorf("fetch friend list: %w", err)
	}
	if err := s.ReplaceFriends(ctx, groups, friends); err != nil {
		return fmt.Errorf("store friend list: %w", err)
	}
	chats, err := src.GroupList(ctx)
	if err != nil {
		return fmt.Errorf("fetch group list: %w", err)
	}
	if err := s.ReplaceGroups(ctx, chats); err != nil {
		return fmt.Errorf("store group list: %w", err)
	}
	s.log.Info("contacts refreshed", zap.Int("friends", len(friends)), zap.Int("groups", len(chats)))
	return nil
}
