package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/workshop"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix      = "room:"
	redisKeySuffix      = ":state"
	redisFieldState     = "state"
	redisFieldVersion   = "version"
	redisFieldUpdatedAt = "updated_at_s"

	opRedisPing       = "storage.redis.ping"
	reasonUnreachable = "unreachable"
)

// RedisStore keeps each room document in one Redis hash.
type RedisStore struct {
	client *redis.Client
	clock  func() time.Time
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, clock: time.Now}
}

func (s *RedisStore) key(roomID string) string {
	return redisKeyPrefix + roomID + redisKeySuffix
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, roomID string) (Snapshot, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return Snapshot{}, err
	}
	fields, err := s.client.HMGet(ctx, s.key(roomID), redisFieldState, redisFieldVersion).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("load room %s: %w", roomID, err)
	}
	rawState, ok := fields[0].(string)
	if !ok {
		return Snapshot{}, ErrRoomNotFound
	}
	version := int64(1)
	if rawVersion, ok := fields[1].(string); ok {
		parsed, err := strconv.ParseInt(rawVersion, 10, 64)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parse version of room %s: %w", roomID, err)
		}
		version = parsed
	}
	room, err := workshop.DecodeRoom([]byte(rawState))
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return Snapshot{Room: room, Version: version}, nil
}

// Save implements Store using WATCH so a concurrent writer aborts the
// transaction instead of being overwritten.
func (s *RedisStore) Save(ctx context.Context, roomID string, room *workshop.Room, expectedVersion int64) (int64, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return 0, err
	}
	if room == nil {
		return 0, ErrMissingRoom
	}
	payload, err := workshop.EncodeRoom(room)
	if err != nil {
		return 0, fmt.Errorf("encode room %s: %w", roomID, err)
	}
	key := s.key(roomID)
	nextVersion := expectedVersion + 1

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, redisFieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if current != expectedVersion {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				redisFieldState, payload,
				redisFieldVersion, nextVersion,
				redisFieldUpdatedAt, s.clock().UTC().Unix(),
			)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, ErrVersionConflict) || errors.Is(err, redis.TxFailedErr) {
		return 0, ErrVersionConflict
	}
	if err != nil {
		return 0, fmt.Errorf("save room %s: %w", roomID, err)
	}
	return nextVersion, nil
}

// Ping implements Pinger.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return newServiceError(opRedisPing, reasonUnreachable, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
