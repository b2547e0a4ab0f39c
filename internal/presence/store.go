package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-realtime/internal/models"
)

// Store mirrors presence for readers outside this process.
type Store interface {
	SetStatus(ctx context.Context, userID int64, status models.PresenceStatus, at time.Time) error
	Close() error
}

// Record is the JSON value kept under <prefix>:presence:<user id>.
type Record struct {
	Status   models.PresenceStatus `json:"status"`
	LastSeen int64                 `json:"last_seen"`
}

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(userID int64) string {
	return fmt.Sprintf("%s:presence:%d", s.prefix, userID)
}

func (s *RedisStore) SetStatus(ctx context.Context, userID int64, status models.PresenceStatus, at time.Time) error {
	body, err := json.Marshal(Record{Status: status, LastSeen: at.Unix()})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(userID), body, 0).Err()
}

// Get reads the mirrored record. A user never seen yields redis.Nil.
func (s *RedisStore) Get(ctx context.Context, userID int64) (Record, error) {
	body, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// NoopStore is used when no redis address is configured.
type NoopStore struct{}

func (NoopStore) SetStatus(context.Context, int64, models.PresenceStatus, time.Time) error { return nil }
func (NoopStore) Close() error                                                          { return nil }
