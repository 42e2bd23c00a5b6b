package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"NewsDigest/internal/dedup"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const redisKeyPrefix = "newsdigest:article:"

// RedisRepository keeps a seen-set of canonical URL hashes with an expiry.
type RedisRepository struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ ports.ArticleRepository = (*RedisRepository)(nil)

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisRepository wires a redis client; ttl <= 0 keeps keys forever.
func NewRedisRepository(client redis.Cmdable, ttl time.Duration) *RedisRepository {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisRepository{client: client, ttl: ttl}
}

// SaveNew claims each article's hash with SETNX; articles already claimed are skipped.
func (r *RedisRepository) SaveNew(ctx context.Context, _ string, articles []domain.Article) (domain.SaveResult, error) {
	var result domain.SaveResult
	for _, article := range articles {
		created, err := r.client.SetNX(ctx, redisKey(article.URL), dedup.CanonicalURL(article.URL), r.ttl).Result()
		if err != nil {
			return domain.SaveResult{}, fmt.Errorf("setnx %s: %w", article.URL, err)
		}
		if !created {
			result.Skipped++
			continue
		}
		result.Inserted++
		result.New = append(result.New, article)
	}
	return result, nil
}

func redisKey(rawURL string) string {
	hash := dedup.URLHash(rawURL)
	return redisKeyPrefix + hex.EncodeToString(hash[:])
}
