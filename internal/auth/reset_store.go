package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResetTokenStore holds single-use password reset tokens. It is a separate
// namespace from session tokens: a reset token never authenticates a request.
type ResetTokenStore interface {
	// Issue creates a token for the subject, superseding any earlier one
	Issue(ctx context.Context, subjectID string) (string, error)
	// Consume returns the subject of a valid token and invalidates it
	Consume(ctx context.Context, token string) (string, error)
}

// NewOpaqueToken returns a random 32-byte hex token and the hash to store in
// its place
func NewOpaqueToken() (token, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, HashOpaqueToken(token), nil
}

// HashOpaqueToken is the SHA-256 hex digest under which a token is stored
func HashOpaqueToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

const (
	resetTokenKeyPrefix   = "auth:reset:token:"
	resetSubjectKeyPrefix = "auth:reset:subject:"
)

// RedisResetStore keeps reset tokens in Redis so every API process sees the
// same state. Only token hashes are stored.
type RedisResetStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisResetStore(client *redis.Client, ttl time.Duration) *RedisResetStore {
	return &RedisResetStore{client: client, ttl: ttl}
}

func (s *RedisResetStore) Issue(ctx context.Context, subjectID string) (string, error) {
	token, hash, err := NewOpaqueToken()
	if err != nil {
		return "", err
	}

	subjectKey := resetSubjectKeyPrefix + subjectID
	previous, err := s.client.Get(ctx, subjectKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("load previous reset token: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if previous != "" {
			pipe.Del(ctx, resetTokenKeyPrefix+previous)
		}
		pipe.Set(ctx, resetTokenKeyPrefix+hash, subjectID, s.ttl)
		pipe.Set(ctx, subjectKey, hash, s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

func (s *RedisResetStore) Consume(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidCredential
	}
	hash := HashOpaqueToken(token)

	subjectID, err := s.client.GetDel(ctx, resetTokenKeyPrefix+hash).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidCredential
	}
	if err != nil {
		return "", fmt.Errorf("consume reset token: %w", err)
	}

	subjectKey := resetSubjectKeyPrefix + subjectID
	if current, err := s.client.Get(ctx, subjectKey).Result(); err == nil && current == hash {
		s.client.Del(ctx, subjectKey)
	}
	return subjectID, nil
}

type resetEntry struct {
	subjectID string
	expiresAt time.Time
}

// MemoryResetStore is a single-process store for development and tests.
// Expired entries are dropped on access and by Evict.
type MemoryResetStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	tokens    map[string]resetEntry
	bySubject map[string]string
}

func NewMemoryResetStore(ttl time.Duration, now func() time.Time) *MemoryResetStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryResetStore{
		ttl:       ttl,
		now:       now,
		tokens:    make(map[string]resetEntry),
		bySubject: make(map[string]string),
	}
}

func (s *MemoryResetStore) Issue(_ context.Context, subjectID string) (string, error) {
	token, hash, err := NewOpaqueToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, ok := s.bySubject[subjectID]; ok {
		delete(s.tokens, previous)
	}
	s.tokens[hash] = resetEntry{subjectID: subjectID, expiresAt: s.now().Add(s.ttl)}
	s.bySubject[subjectID] = hash
	return token, nil
}

func (s *MemoryResetStore) Consume(_ context.Context, token string) (string, error) {
	hash := HashOpaqueToken(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[hash]
	if !ok {
		return "", ErrInvalidCredential
	}
	delete(s.tokens, hash)
	if s.bySubject[entry.subjectID] == hash {
		delete(s.bySubject, entry.subjectID)
	}
	if !s.now().Before(entry.expiresAt) {
		return "", ErrInvalidCredential
	}
	return entry.subjectID, nil
}

// Evict removes expired tokens and returns how many were dropped
func (s *MemoryResetStore) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for hash, entry := range s.tokens {
		if !now.Before(entry.expiresAt) {
			delete(s.tokens, hash)
			if s.bySubject[entry.subjectID] == hash {
				delete(s.bySubject, entry.subjectID)
			}
			evicted++
		}
	}
	return evicted
}

// RunEviction calls Evict on every tick until ctx is done
func (s *MemoryResetStore) RunEviction(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evict()
		}
	}
}
