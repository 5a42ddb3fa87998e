package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger records admitted delivery ids in redis. Keys are write-once:
// SET NX ignores repeat writes, and the TTL bounds ledger growth well past
// any plausible redelivery window.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(addr, password string, db int, ttl time.Duration) (*RedisLedger, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisLedger{client: client, ttl: ttl}, nil
}

func (l *RedisLedger) Seen(ctx context.Context, id string) (bool, error) {
	n, err := l.client.Exists(ctx, ledgerKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *RedisLedger) Record(ctx context.Context, id string) error {
	return l.client.SetNX(ctx, ledgerKey(id), 1, l.ttl).Err()
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}

func ledgerKey(id string) string {
	return "ledger:" + id
}
