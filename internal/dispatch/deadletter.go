package dispatch

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const deadLetterKey = "deliveries:dead"

// DeadLetters holds deliveries that exhausted their attempts until someone
// replays them.
type DeadLetters interface {
	Push(ctx context.Context, d Delivery) error
	// Drain pops everything off the list. On error it returns whatever was
	// popped before the failure; the caller decides what to do with them.
	Drain(ctx context.Context) ([]Delivery, error)
	Size(ctx context.Context) (int64, error)
}

type RedisDeadLetters struct {
	client *redis.Client
}

func NewRedisDeadLetters(client *redis.Client) *RedisDeadLetters {
	return &RedisDeadLetters{client: client}
}

func (r *RedisDeadLetters) Push(ctx context.Context, d Delivery) error {
	raw, err := sonic.Marshal(d)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, deadLetterKey, raw).Err()
}

func (r *RedisDeadLetters) Drain(ctx context.Context) ([]Delivery, error) {
	var drained []Delivery
	for {
		raw, err := r.client.LPop(ctx, deadLetterKey).Result()
		if err == redis.Nil {
			return drained, nil
		}
		if err != nil {
			return drained, err
		}

		var d Delivery
		if err := sonic.Unmarshal([]byte(raw), &d); err != nil {
			return drained, err
		}
		drained = append(drained, d)
	}
}

func (r *RedisDeadLetters) Size(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, deadLetterKey).Result()
}

type MemoryDeadLetters struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func NewMemoryDeadLetters() *MemoryDeadLetters {
	return &MemoryDeadLetters{}
}

func (m *MemoryDeadLetters) Push(_ context.Context, d Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, d)
	return nil
}

func (m *MemoryDeadLetters) Drain(_ context.Context) ([]Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drained := m.deliveries
	m.deliveries = nil
	return drained, nil
}

func (m *MemoryDeadLetters) Size(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.deliveries)), nil
}
