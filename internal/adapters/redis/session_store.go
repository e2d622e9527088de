package redis

// Package redis provides Redis-based adapters for authcore.

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	apperrors "github.com/sentrypost/authcore/internal/errors"
	"github.com/sentrypost/authcore/internal/ports"
)

var (
	_ ports.SessionStore       = (*SessionStore)(nil)
	_ ports.SessionIndexPruner = (*SessionStore)(nil)
)

const (
	defaultPrefix     = "authsession:"
	defaultPruneBatch = 500
)

// SessionStore is a Redis-backed ports.SessionStore. Tokens are never stored in
// clear: records are keyed by the SHA-256 of the token, and a per-user set of
// those hashes supports bulk revocation.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, defaultPrefix)
}

// NewSessionStoreWithPrefix creates a Redis session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{client: client, prefix: prefix}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *SessionStore) recordKey(hash string) string { return s.prefix + "tok:" + hash }
func (s *SessionStore) userKey(userID string) string { return s.prefix + "user:" + userID }

func (s *SessionStore) Save(ctx context.Context, rec domainauth.SessionRecord, ttl time.Duration) error {
	if rec.Token == "" {
		return apperrors.Validation("session token cannot be empty")
	}
	if rec.UserID == "" {
		return apperrors.Validation("session user id cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	hash := hashToken(rec.Token)
	userKey := s.userKey(rec.UserID)
	// Not MULTI/EXEC: the two keys may live in different cluster slots.
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.recordKey(hash), data, ttl)
		p.SAdd(ctx, userKey, hash)
		p.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (*domainauth.SessionRecord, error) {
	if token == "" {
		return nil, apperrors.NotFound("session not found")
	}
	rec, err := s.load(ctx, hashToken(token))
	if err != nil {
		return nil, err
	}
	rec.Token = token
	return rec, nil
}

func (s *SessionStore) load(ctx context.Context, hash string) (*domainauth.SessionRecord, error) {
	data, err := s.client.Get(ctx, s.recordKey(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("session not found")
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var rec domainauth.SessionRecord
	if unmarshalErr := json.Unmarshal(data, &rec); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}
	return &rec, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	hash := hashToken(token)
	rec, err := s.load(ctx, hash)
	if apperrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.recordKey(hash))
		p.SRem(ctx, s.userKey(rec.UserID), hash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	userKey := s.userKey(userID)
	hashes, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list user sessions: %w", err)
	}
	if len(hashes) == 0 {
		return 0, nil
	}

	dels := make([]*redis.IntCmd, 0, len(hashes))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, h := range hashes {
			dels = append(dels, p.Del(ctx, s.recordKey(h)))
		}
		p.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis delete user sessions: %w", err)
	}

	removed := 0
	for _, d := range dels {
		removed += int(d.Val())
	}
	return removed, nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// PruneStaleIndexes drops hashes from per-user index sets whose record key has expired.
// Record keys expire on their own; index sets only expire with the newest session.
func (s *SessionStore) PruneStaleIndexes(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = defaultPruneBatch
	}
	pattern := s.prefix + "user:*"
	if cc, ok := s.client.(*redis.ClusterClient); ok {
		var total atomic.Int64
		err := cc.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			n, err := s.pruneNode(ctx, node, pattern, batch)
			total.Add(int64(n))
			return err
		})
		return int(total.Load()), err
	}
	return s.pruneNode(ctx, s.client, pattern, batch)
}

func (s *SessionStore) pruneNode(ctx context.Context, node redis.Cmdable, pattern string, batch int) (int, error) {
	iter := node.Scan(ctx, 0, pattern, int64(batch)).Iterator()
	removed, seen := 0, 0
	for seen < batch && iter.Next(ctx) {
		seen++
		n, err := s.pruneIndex(ctx, iter.Val())
		removed += n
		if err != nil {
			return removed, err
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan session indexes: %w", err)
	}
	return removed, nil
}

func (s *SessionStore) pruneIndex(ctx context.Context, userKey string) (int, error) {
	hashes, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list session index: %w", err)
	}
	if len(hashes) == 0 {
		return 0, nil
	}

	exists := make([]*redis.IntCmd, len(hashes))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, h := range hashes {
			exists[i] = p.Exists(ctx, s.recordKey(h))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis check session records: %w", err)
	}

	stale := make([]any, 0, len(hashes))
	for i, cmd := range exists {
		if cmd.Val() == 0 {
			stale = append(stale, hashes[i])
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	n, err := s.client.SRem(ctx, userKey, stale...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis prune session index: %w", err)
	}
	return int(n), nil
}
