package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/pouchlab-backend/pkg/redis"
)

const counterTTL = 400 * 24 * time.Hour

// NumberSource issues human readable quote numbers such as Q-2026-0042.
type NumberSource interface {
	Next(ctx context.Context, now time.Time) (string, error)
}

type counter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	CounterKey(name string) string
}

type redisNumberSource struct {
	counter counter
}

// NewRedisNumberSource numbers quotes from a per-year Redis counter.
func NewRedisNumberSource(client *redis.Client) NumberSource {
	return &redisNumberSource{counter: client}
}

func (s *redisNumberSource) Next(ctx context.Context, now time.Time) (string, error) {
	year := now.UTC().Year()
	seq, err := s.counter.IncrWithTTL(ctx, s.counter.CounterKey(fmt.Sprintf("quote_number:%d", year)), counterTTL)
	if err != nil {
		return "", err
	}
	return formatNumber(year, seq), nil
}

type dbNumberSource struct {
	repo Repository
}

// NewDBNumberSource numbers quotes by counting the quotes created this year.
// Concurrent creators may collide; the unique index on number rejects the loser.
func NewDBNumberSource(repo Repository) NumberSource {
	return &dbNumberSource{repo: repo}
}

func (s *dbNumberSource) Next(ctx context.Context, now time.Time) (string, error) {
	now = now.UTC()
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	count, err := s.repo.CountCreatedBetween(ctx, start, start.AddDate(1, 0, 0))
	if err != nil {
		return "", err
	}
	return formatNumber(now.Year(), count+1), nil
}

func formatNumber(year int, seq int64) string {
	return fmt.Sprintf("Q-%d-%04d", year, seq)
}
