package storage

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Presence keys live under im:presence:<user>. The value carries the
// owning gateway node and the websocket session id so a peer gateway can
// route a push to the right process. TTL bounds how long an entry from a
// crashed node survives; live connections refresh it on pong.

const presencePrefix = "im:presence:"

func presenceKey(user string) string { return presencePrefix + user }

func userFromKey(key string) string { return strings.TrimPrefix(key, presencePrefix) }

// Session identifies one live connection.
type Session struct {
	GatewayID string
	SessionID string
}

func encodeSession(s Session) string { return s.GatewayID + "|" + s.SessionID }

func decodeSession(v string) Session {
	gw, sid, ok := strings.Cut(v, "|")
	if !ok {
		return Session{SessionID: v}
	}
	return Session{GatewayID: gw, SessionID: sid}
}

// Directory is the external presence store. One entry per user; a new
// registration overwrites the previous one (most recent session wins).
type Directory struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDirectory(rdb *redis.Client, ttl time.Duration) *Directory {
	return &Directory{rdb: rdb, ttl: ttl}
}

// Register upserts the user's presence entry.
func (d *Directory) Register(ctx context.Context, user string, s Session) error {
	if err := d.rdb.Set(ctx, presenceKey(user), encodeSession(s), d.ttl).Err(); err != nil {
		return errors.Wrap(err, "presence register")
	}
	return nil
}

// Refresh renews the TTL without touching the value. Used by the pong
// handler so an idle but connected user never expires.
func (d *Directory) Refresh(ctx context.Context, user string) error {
	return d.rdb.Expire(ctx, presenceKey(user), d.ttl).Err()
}

// Lookup returns the user's live session. Absence is not an error.
func (d *Directory) Lookup(ctx context.Context, user string) (Session, bool, error) {
	val, err := d.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, errors.Wrap(err, "presence lookup")
	}
	return decodeSession(val), true, nil
}

// Unregister deletes the entry if it still belongs to the given session.
// A plain DEL would race a reconnect: the old socket's deferred cleanup
// must not wipe the entry the new socket just wrote.
func (d *Directory) Unregister(ctx context.Context, user, sessionID string) error {
	val, err := d.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "presence unregister")
	}
	if sessionID != "" && decodeSession(val).SessionID != sessionID {
		return nil
	}
	return errors.Wrap(d.rdb.Del(ctx, presenceKey(user)).Err(), "presence unregister")
}

// ListAll scans the presence namespace and returns the online user ids.
// Cost scales with the connected-user count; fine at chat scale, revisit
// before pointing this at very large deployments.
func (d *Directory) ListAll(ctx context.Context) ([]string, error) {
	var users []string
	iter := d.rdb.Scan(ctx, 0, presencePrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		users = append(users, userFromKey(iter.Val()))
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "presence scan")
	}
	return users, nil
}
