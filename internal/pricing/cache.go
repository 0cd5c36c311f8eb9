package pricing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/pouchlab-backend/pkg/redis"
)

// MatrixCache memoizes matrices keyed on the full normalized input.
type MatrixCache interface {
	Get(ctx context.Context, key string) (*Matrix, error)
	Set(ctx context.Context, key string, matrix Matrix, ttl time.Duration) error
}

// CacheKey fingerprints a normalized request together with the calculator
// settings that change its output.
func (c *Calculator) CacheKey(req MatrixRequest) (string, error) {
	payload := struct {
		Request MatrixRequest `json:"request"`
		Policy  TierPolicy    `json:"policy"`
		Catalog Catalog       `json:"catalog"`
	}{
		Request: c.Normalize(req),
		Policy:  c.policy,
		Catalog: c.catalog,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode matrix key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

type redisMatrixCache struct {
	kv     redis.KV
	keyFor func(string) string
}

// NewRedisMatrixCache stores matrices as JSON under the client's matrix namespace.
func NewRedisMatrixCache(client *redis.Client) (MatrixCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisMatrixCache{kv: client, keyFor: client.MatrixKey}, nil
}

func (c *redisMatrixCache) Get(ctx context.Context, key string) (*Matrix, error) {
	raw, err := c.kv.Get(ctx, c.keyFor(key))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	var matrix Matrix
	if err := json.Unmarshal([]byte(raw), &matrix); err != nil {
		return nil, fmt.Errorf("decode cached matrix: %w", err)
	}
	return &matrix, nil
}

func (c *redisMatrixCache) Set(ctx context.Context, key string, matrix Matrix, ttl time.Duration) error {
	raw, err := json.Marshal(matrix)
	if err != nil {
		return fmt.Errorf("encode matrix: %w", err)
	}
	return c.kv.Set(ctx, c.keyFor(key), string(raw), ttl)
}
