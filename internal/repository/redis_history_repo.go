package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"isa-chat/internal/models"
)

type RedisHistoryRepo struct {
	redis *redis.Client
	key   string
}

func NewRedisHistoryRepo(redisClient *redis.Client, key string) *RedisHistoryRepo {
	if key == "" {
		key = DefaultHistoryKey
	}
	return &RedisHistoryRepo{redis: redisClient, key: key}
}

func (r *RedisHistoryRepo) Load(ctx context.Context) []models.HistoryEntry {
	raw, err := r.redis.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.HistoryEntry{}
	}
	if err != nil {
		log.Printf("Redis history read for %q failed, starting empty: %v", r.key, err)
		return []models.HistoryEntry{}
	}

	entries, err := decodeHistory(raw)
	if err != nil {
		log.Printf("Redis history %q is corrupt, starting empty: %v", r.key, err)
	}
	return entries
}

func (r *RedisHistoryRepo) Save(ctx context.Context, entries []models.HistoryEntry) error {
	data, err := encodeHistory(entries)
	if err != nil {
		return err
	}
	if err := r.redis.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save history to redis: %w", err)
	}
	return nil
}
