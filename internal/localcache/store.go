package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Envelope is the stored form of a cached value. Times are Unix milliseconds.
type Envelope struct {
	Data         json.RawMessage `json:"data"`
	Timestamp    int64           `json:"timestamp"`
	Expiry       int64           `json:"expiry"`
	ForceRefresh bool            `json:"forceRefresh,omitempty"`
}

// Stale reports whether the envelope must be refetched at now. A positive ttl bounds the
// age measured from Timestamp, so envelopes stored as {data, timestamp} without an expiry
// stay usable; with ttl <= 0 only Expiry decides and an envelope without one is stale.
func (e *Envelope) Stale(now time.Time, ttl time.Duration) bool {
	if e == nil || e.ForceRefresh {
		return true
	}
	ms := now.UnixMilli()
	if e.Expiry > 0 && ms >= e.Expiry {
		return true
	}
	if ttl > 0 {
		return ms-e.Timestamp >= ttl.Milliseconds()
	}
	return e.Expiry == 0
}

// Decode unmarshals the payload into dest.
func (e *Envelope) Decode(dest interface{}) error {
	return json.Unmarshal(e.Data, dest)
}

// WithData returns a copy carrying value and the original timestamps.
func (e *Envelope) WithData(value interface{}) (*Envelope, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	out := *e
	out.Data = raw
	return &out, nil
}

// Store reads and writes envelopes through a Backend.
type Store struct {
	backend Backend
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewStore builds a Store. A nil clock uses the real clock.
func NewStore(backend Backend, clock clockwork.Clock, logger *zap.Logger) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, clock: clock, logger: logger}
}

// Clock returns the store clock.
func (s *Store) Clock() clockwork.Clock {
	return s.clock
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Get decodes a fresh entry into dest. ttl is the lifetime of key, see Envelope.Stale.
// Missing, corrupt and stale entries are misses; corrupt and stale ones are deleted.
func (s *Store) Get(ctx context.Context, key string, ttl time.Duration, dest interface{}) (bool, error) {
	env, err := s.read(ctx, key)
	if err != nil || env == nil {
		return false, err
	}
	if env.Stale(s.clock.Now(), ttl) {
		s.evict(ctx, key, "stale")
		return false, nil
	}
	if err := env.Decode(dest); err != nil {
		s.evict(ctx, key, "undecodable")
		return false, nil
	}
	return true, nil
}

// Set stores value under key for ttl.
func (s *Store) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	now := s.clock.Now()
	return s.Put(ctx, key, &Envelope{Data: raw, Timestamp: now.UnixMilli(), Expiry: now.Add(ttl).UnixMilli()})
}

// Remove deletes keys. Missing keys are ignored.
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := s.backend.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Peek returns the raw envelope without checking freshness. It returns nil for a missing or corrupt key.
func (s *Store) Peek(ctx context.Context, key string) (*Envelope, error) {
	return s.read(ctx, key)
}

// Put writes env verbatim. A nil env deletes the key, so a Peek result can always be restored.
func (s *Store) Put(ctx context.Context, key string, env *Envelope) error {
	if env == nil {
		return s.backend.Delete(ctx, key)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope %s: %w", key, err)
	}
	return s.backend.Write(ctx, key, raw)
}

// MarkForRefresh flags an existing entry as stale. Missing keys are ignored.
func (s *Store) MarkForRefresh(ctx context.Context, key string) error {
	env, err := s.read(ctx, key)
	if err != nil || env == nil {
		return err
	}
	env.ForceRefresh = true
	return s.Put(ctx, key, env)
}

func (s *Store) read(ctx context.Context, key string) (*Envelope, error) {
	raw, err := s.backend.Read(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Data == nil {
		s.evict(ctx, key, "corrupt")
		return nil, nil
	}
	return &env, nil
}

func (s *Store) evict(ctx context.Context, key, reason string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Warn("cache evict failed", zap.String("key", key), zap.String("reason", reason), zap.Error(err))
		return
	}
	s.logger.Debug("cache entry evicted", zap.String("key", key), zap.String("reason", reason))
}
