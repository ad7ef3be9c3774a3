package blacklist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tbsky/session/internal/logging"
	"github.com/tbsky/session/internal/server/models"
)

// Client is the narrow slice of the go-redis API the repository uses.
// *redis.Client and the other go-redis client variants satisfy it.
type Client interface {
	TxPipeline() redis.Pipeliner
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// RedisRepository implements Repository on a Redis connection. Entries are
// stored as JSON blobs keyed by the raw token string and carry no Redis TTL;
// staleness is enforced by the expiry embedded in the token itself.
type RedisRepository struct {
	client Client
	logger logging.Logger
}

// NewRedisRepository constructs a repository over the given client.
func NewRedisRepository(client Client, logger logging.Logger) *RedisRepository {
	return &RedisRepository{client: client, logger: logger}
}

func (r *RedisRepository) Add(ctx context.Context, entry *models.BlackListToken) error {
	return r.AddAll(ctx, entry)
}

func (r *RedisRepository) AddAll(ctx context.Context, entries ...*models.BlackListToken) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	for _, entry := range entries {
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal blacklist entry: %w", err)
		}
		pipe.Set(ctx, entry.Key, payload, 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error(ctx, "error writing blacklist entries", "count", len(entries), "error", err.Error())
		return fmt.Errorf("cache error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, keys ...string) ([]*models.BlackListToken, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		r.logger.Error(ctx, "error reading blacklist entries", "count", len(keys), "error", err.Error())
		return nil, fmt.Errorf("cache error: %w", err)
	}

	var result []*models.BlackListToken
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // absent key
		}
		entry := &models.BlackListToken{}
		if err := json.Unmarshal([]byte(raw), entry); err != nil {
			return nil, fmt.Errorf("unmarshal blacklist entry: %w", err)
		}
		result = append(result, entry)
	}
	return result, nil
}

var _ Repository = (*RedisRepository)(nil)
