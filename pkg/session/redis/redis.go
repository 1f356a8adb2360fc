// Package redis provides a session.Store backed by Redis, so that several
// landscape processes can share live session state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/landscape/pkg/session"
)

const (
	defaultPrefix   = "landscape:"
	defaultClaimTTL = 10 * time.Minute
)

// releaseScript deletes a claim only if it is still held by the caller.
var releaseScript = goredis.NewScript(`
local held = redis.call("GET", KEYS[1])
if not held then
  return 0
end
if held == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return -1
`)

// claimScript takes the claim when it is free and refreshes its lease when
// the caller already holds it.
var claimScript = goredis.NewScript(`
local held = redis.call("GET", KEYS[1])
if not held then
  redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
  return 1
end
if held == ARGV[1] then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  return 1
end
return 0
`)

// Config is the Redis store configuration.
type Config struct {
	// URL is a redis:// connection URL.
	URL string

	// Prefix namespaces every key. Defaults to "landscape:".
	Prefix string

	// TTL expires idle sessions. Zero keeps them forever.
	TTL time.Duration

	// ClaimTTL is the lease on a claim; drivers refresh it by claiming again.
	ClaimTTL time.Duration
}

// Store implements session.Store on Redis.
type Store struct {
	rdb      *goredis.Client
	prefix   string
	ttl      time.Duration
	claimTTL time.Duration
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, c Config) (*Store, error) {
	opt, err := goredis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	rdb := goredis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewStoreWithClient(rdb, c), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(rdb *goredis.Client, c Config) *Store {
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = defaultClaimTTL
	}
	return &Store{
		rdb:      rdb,
		prefix:   c.Prefix,
		ttl:      c.TTL,
		claimTTL: c.ClaimTTL,
	}
}

func (s *Store) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *Store) claimKey(id string) string {
	return s.prefix + "claim:" + id
}

// Get returns the stored session.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := s.rdb.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}

	out := &session.Session{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return out, nil
}

// Put writes sess inside a WATCH transaction so that a concurrent writer
// between the revision check and the write aborts this one.
func (s *Store) Put(ctx context.Context, sess *session.Session) error {
	key := s.sessionKey(sess.ID)
	expected := sess.Revision

	txf := func(tx *goredis.Tx) error {
		current := int64(0)
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return fmt.Errorf("reading session %s: %w", sess.ID, err)
		default:
			var head struct {
				Revision int64 `json:"revision"`
			}
			if err := json.Unmarshal(data, &head); err != nil {
				return fmt.Errorf("decoding session %s: %w", sess.ID, err)
			}
			current = head.Revision
		}

		if expected != current {
			return fmt.Errorf("%w: %s at revision %d, have %d",
				session.ErrConcurrentWrite, sess.ID, current, expected)
		}

		sess.Revision = current + 1
		encoded, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encoding session %s: %w", sess.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		return err
	}

	err := s.rdb.Watch(ctx, txf, key)
	if err != nil {
		sess.Revision = expected
	}
	if errors.Is(err, goredis.TxFailedErr) {
		return fmt.Errorf("%w: %s", session.ErrConcurrentWrite, sess.ID)
	}
	return err
}

// Delete removes the session and its claim.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.sessionKey(id), s.claimKey(id)).Err(); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// Claim takes or refreshes a lease on the session for owner.
func (s *Store) Claim(ctx context.Context, id, owner string) error {
	res, err := claimScript.Run(ctx, s.rdb, []string{s.claimKey(id)}, owner, s.claimTTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("claiming session %s: %w", id, err)
	}
	if res == 0 {
		return fmt.Errorf("%w: %s", session.ErrClaimed, id)
	}
	return nil
}

// LeaseTTL is how long a claim lasts without being refreshed.
func (s *Store) LeaseTTL() time.Duration {
	return s.claimTTL
}

// Release drops owner's claim.
func (s *Store) Release(ctx context.Context, id, owner string) error {
	res, err := releaseScript.Run(ctx, s.rdb, []string{s.claimKey(id)}, owner).Int()
	if err != nil {
		return fmt.Errorf("releasing session %s: %w", id, err)
	}
	if res < 0 {
		return fmt.Errorf("%w: %s", session.ErrClaimed, id)
	}
	return nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
