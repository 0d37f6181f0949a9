// Package clientcache wraps API reads in the local TTL cache.
package clientcache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/localcache"
)

// Cache keys shared by every client.
const (
	KeyMetrics           = "metrics"
	KeyAttendanceHistory = "attendance-history"
	KeyStudents          = "students"

	dailyKeyPrefix = "attendance-daily-"
	totalKeyPrefix = "attendance-total-"
)

// TTLs per data set.
const (
	DefaultTTL  = 2 * time.Hour
	StudentsTTL = time.Hour
)

// DailyKey is the key of the attendance log of date (YYYY-MM-DD).
func DailyKey(date string) string {
	return dailyKeyPrefix + date
}

// TotalKey is the key of a student's check-in total.
func TotalKey(studentID string) string {
	return totalKeyPrefix + studentID
}

// cached returns the fresh entry under key or fetches, stores and returns a new value.
// Cache failures are logged and never hide fetched data; fetch errors are returned unchanged.
func cached[T any](ctx context.Context, store *localcache.Store, logger *zap.Logger, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var value T
	hit, err := store.Get(ctx, key, ttl, &value)
	if err != nil {
		logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit {
		logger.Debug("cache hit", zap.String("key", key))
		return value, nil
	}

	value, err = fetch(ctx)
	if err != nil {
		return value, err
	}
	if err := store.Set(ctx, key, value, ttl); err != nil {
		logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

func remove(ctx context.Context, store *localcache.Store, logger *zap.Logger, keys ...string) error {
	if err := store.Remove(ctx, keys...); err != nil {
		logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
		return err
	}
	return nil
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
