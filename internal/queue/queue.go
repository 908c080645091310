// Package queue holds tickets whose persistence was deferred after the row
// store stayed unavailable.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// PendingSave is a ticket waiting to be written to the row store.
type PendingSave struct {
	Ticket     domain.Ticket `json:"ticket"`
	Attempts   int           `json:"attempts"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
	LastError  string        `json:"last_error,omitempty"`
}

// SaveQueue is a FIFO of pending saves. Items leave the queue only through
// Ack, after the consumer has stored them, so a consumer crash never drops a
// ticket. It assumes a single consumer.
type SaveQueue interface {
	Push(ctx context.Context, item PendingSave) error
	// Peek returns the oldest item without removing it, or nil, nil when the
	// queue is empty.
	Peek(ctx context.Context) (*PendingSave, error)
	// Ack removes the oldest item.
	Ack(ctx context.Context) error
	// UpdateHead replaces the oldest item, recording a failed attempt.
	UpdateHead(ctx context.Context, item PendingSave) error
	Len(ctx context.Context) (int64, error)
}

type redisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue stores pending saves in the Redis list at key.
func NewRedisQueue(client *redis.Client, key string) SaveQueue {
	return &redisQueue{client: client, key: key}
}

func (q *redisQueue) Push(ctx context.Context, item PendingSave) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode pending save: %w", err)
	}
	return q.client.RPush(ctx, q.key, payload).Err()
}

func (q *redisQueue) Peek(ctx context.Context) (*PendingSave, error) {
	payload, err := q.client.LIndex(ctx, q.key, 0).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item PendingSave
	if err := json.Unmarshal(payload, &item); err != nil {
		return nil, fmt.Errorf("decode pending save: %w", err)
	}
	return &item, nil
}

func (q *redisQueue) Ack(ctx context.Context) error {
	err := q.client.LPop(ctx, q.key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (q *redisQueue) UpdateHead(ctx context.Context, item PendingSave) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode pending save: %w", err)
	}
	return q.client.LSet(ctx, q.key, 0, payload).Err()
}

func (q *redisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

type memoryQueue struct {
	mu    sync.Mutex
	items []PendingSave
}

// NewMemoryQueue keeps pending saves in process memory. They are lost on
// restart.
func NewMemoryQueue() SaveQueue {
	return &memoryQueue{}
}

func (q *memoryQueue) Push(_ context.Context, item PendingSave) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return nil
}

func (q *memoryQueue) Peek(_ context.Context) (*PendingSave, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, nil
	}
	item := q.items[0]
	return &item, nil
}

func (q *memoryQueue) Ack(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		q.items = q.items[1:]
	}
	return nil
}

func (q *memoryQueue) UpdateHead(_ context.Context, item PendingSave) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return errors.New("queue is empty")
	}
	q.items[0] = item
	return nil
}

func (q *memoryQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}
