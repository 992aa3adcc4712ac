package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ecoheat/config"
	"ecoheat/models"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("redis: cache miss")

type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(ctx context.Context, cfg *config.Config) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return New(rdb, cfg.RedisTTL), nil
}

// New wraps an existing client. A non-positive ttl means 24 hours.
func New(rdb *redis.Client, ttl time.Duration) *RedisClient {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisClient{client: rdb, ttl: ttl}
}

func readingKey(roomID uint) string { return fmt.Sprintf("room:reading:%d", roomID) }
func deviceKey(roomID uint) string { return fmt.Sprintf("device:status:%d", roomID) }

func (r *RedisClient) SaveLatestReading(ctx context.Context, reading *models.SensorReading) error {
	if err := r.setJSON(ctx, readingKey(reading.RoomID), reading); err != nil {
		return fmt.Errorf("failed to save reading to Redis: %w", err)
	}
	return nil
}

func (r *RedisClient) GetLatestReading(ctx context.Context, roomID uint) (*models.SensorReading, error) {
	var reading models.SensorReading
	if err := r.getJSON(ctx, readingKey(roomID), &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

func (r *RedisClient) SaveDeviceStatus(ctx context.Context, status *models.DeviceStatus) error {
	if err := r.setJSON(ctx, deviceKey(status.RoomID), status); err != nil {
		return fmt.Errorf("failed to save device status to Redis: %w", err)
	}
	return nil
}

func (r *RedisClient) GetDeviceStatus(ctx context.Context, roomID uint) (*models.DeviceStatus, error) {
	var status models.DeviceStatus
	if err := r.getJSON(ctx, deviceKey(roomID), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) setJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

func (r *RedisClient) getJSON(ctx context.Context, key string, v interface{}) error {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
