// Package contacts caches the friend and group lists in SQLite and serves
// the name lookups the chat registry needs.
package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type Friend struct {
	Id      int64  `json:"id"`
	Name    string `json:"name"`   // nick
	Remark  string `json:"remark"` // may be empty
	GroupId uint8  `json:"group_id"`
}

type FriendsGroup struct {
	Id   uint8  `json:"id"`
	Name string `json:"name"`
}

type Group struct {
	Id      int64  `json:"id"`
	Name    string `json:"name"`
	OwnerId int64  `json:"owner_id"`
}

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps ":memory:" a single database
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: log}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS configs (
		key     TEXT PRIMARY KEY,
		value   TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS friends (
		id          INTEGER PRIMARY KEY,
		name        TEXT NOT NULL,
		remark      TEXT NOT NULL,
		group_id    INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS friends_groups (
		id      INTEGER PRIMARY KEY,
		name    TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS groups (
		id          INTEGER PRIMARY KEY,
		name        TEXT NOT NULL,
		owner_id    INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// ReplaceFriends swaps the friend tables for the given lists.
func (s *Store) ReplaceFriends(ctx context.Context, groups []FriendsGroup, friends []Friend) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM friends_groups"); err != nil {
		return err
	}
	for _, g := range groups {
		if _, err := tx.ExecContext(ctx, "INSERT INTO friends_groups VALUES (?, ?)", g.Id, g.Name); err != nil {
			return fmt.Errorf("insert friends group %d: %w", g.Id, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM friends"); err != nil {
		return err
	}
	for _, f := range friends {
		if _, err := tx.ExecContext(ctx, "INSERT INTO friends VALUES (?, ?, ?, ?)",
			f.Id, f.Name, f.Remark, f.GroupId); err != nil {
			return fmt.Errorf("insert friend %d: %w", f.Id, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ReplaceGroups(ctx context.Context, groups []Group) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM groups"); err != nil {
		return err
	}
	for _, g := range groups {
		if _, err := tx.ExecContext(ctx, "INSERT INTO groups VALUES (?, ?, ?)", g.Id, g.Name, g.OwnerId); err != nil {
			return fmt.Errorf("insert group %d: %w", g.Id, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Friend(ctx context.Context, id int64) (Friend, error) {
	var f Friend
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, remark, group_id FROM friends WHERE id = ?", id,
	).Scan(&f.Id, &f.Name, &f.Remark, &f.GroupId)
	if errors.Is(err, sql.ErrNoRows) {
		return Friend{}, fmt.Errorf("friend %d: %w", id, ErrNotFound)
	}
	return f, err
}

func (s *Store) Group(ctx context.Context, id int64) (Group, error) {
	var g Group
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, owner_id FROM groups WHERE id = ?", id,
	).Scan(&g.Id, &g.Name, &g.OwnerId)
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, fmt.Errorf("group %d: %w", id, ErrNotFound)
	}
	return g, err
}

// Friends lists friends ordered by their friends group, then id.
func (s *Store) Friends(ctx context.Context) ([]Friend, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, remark, group_id FROM friends ORDER BY group_id, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Friend
	for rows.Next() {
		var f Friend
		if err := rows.Scan(&f.Id, &f.Name, &f.Remark, &f.GroupId); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) Groups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, owner_id FROM groups ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.Id, &g.Name, &g.OwnerId); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) Config(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM configs WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("config %q: %w", key, ErrNotFound)
	}
	return v, err
}

func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO configs (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// SaveAccount implements the relay's persistence hook for the last login.
func (s *Store) SaveAccount(ctx context.Context, account int64) error {
	return s.SetConfig(ctx, "account", strconv.FormatInt(account, 10))
}

// LastAccount returns the account stored by SaveAccount.
func (s *Store) LastAccount(ctx context.Context) (int64, error) {
	v, err := s.Config(ctx, "account")
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}
