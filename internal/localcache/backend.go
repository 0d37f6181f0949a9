// Package localcache keeps TTL-stamped copies of API responses on the client.
package localcache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/attendance-api/pkg/storage"
)

// ErrNotFound is returned by Backend.Read for a missing key.
var ErrNotFound = errors.New("localcache: key not found")

// Backend is the raw key-value storage under a Store. Implementations are safe for concurrent use.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// MemoryBackend keeps entries in a map. Used by tests and the --cache=memory mode.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string][]byte)}
}

func (b *MemoryBackend) Read(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	value, ok := b.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (b *MemoryBackend) Write(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = append([]byte(nil), value...)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}

func (b *MemoryBackend) Clear(context.Context) error {
	b.Reset()
	return nil
}

// Seed stores raw bytes under key, bypassing envelope encoding.
func (b *MemoryBackend) Seed(key string, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = append([]byte(nil), value...)
}

// Reset drops every entry.
func (b *MemoryBackend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string][]byte)
}

// Keys lists stored keys in order.
func (b *MemoryBackend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const fileExt = ".json"

// FileBackend stores one JSON file per key under a directory.
type FileBackend struct {
	files *storage.LocalStorage
}

// NewFileBackend creates dir if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	files, err := storage.NewLocalStorage(dir)
	if err != nil {
		return nil, err
	}
	return &FileBackend{files: files}, nil
}

func (b *FileBackend) Read(_ context.Context, key string) ([]byte, error) {
	data, err := b.files.Read(fileName(key))
	if errors.Is(err, storage.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *FileBackend) Write(_ context.Context, key string, value []byte) error {
	_, err := b.files.Save(fileName(key), value)
	return err
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	return b.files.Delete(fileName(key))
}

func (b *FileBackend) Clear(context.Context) error {
	names, err := b.files.List(fileExt)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := b.files.Delete(name); err != nil {
			return err
		}
	}
	return nil
}

// Prune deletes files not written for longer than age and returns their keys.
func (b *FileBackend) Prune(age time.Duration) ([]string, error) {
	removed, err := b.files.CleanupOlderThan(age)
	keys := make([]string, 0, len(removed))
	for _, name := range removed {
		keys = append(keys, keyName(name))
	}
	return keys, err
}

// Path returns the file that holds key.
func (b *FileBackend) Path(key string) string {
	return b.files.Path(fileName(key))
}

func fileName(key string) string {
	return url.PathEscape(key) + fileExt
}

func keyName(file string) string {
	key, err := url.PathUnescape(strings.TrimSuffix(file, fileExt))
	if err != nil {
		return file
	}
	return key
}

// RedisBackend shares the cache between processes through Redis. Keys are namespaced by prefix.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// ErrEmptyPrefix rejects a Redis backend that would own the whole database.
var ErrEmptyPrefix = errors.New("redis cache prefix must not be empty")

// NewRedisBackend wraps client. Every key, and everything Clear deletes, lives under prefix.
func NewRedisBackend(client *redis.Client, prefix string) (*RedisBackend, error) {
	if prefix == "" {
		return nil, ErrEmptyPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}, nil
}

func (b *RedisBackend) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Write stores without expiry; staleness is decided from the envelope.
func (b *RedisBackend) Write(ctx context.Context, key string, value []byte) error {
	if err := b.client.Set(ctx, b.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Clear removes every key under the prefix.
func (b *RedisBackend) Clear(ctx context.Context) error {
	iter := b.client.Scan(ctx, 0, globEscape(b.prefix)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return b.client.Del(ctx, keys...).Err()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// globEscape quotes the SCAN MATCH metacharacters in s.
func globEscape(s string) string {
	return globEscaper.Replace(s)
}
