// AngelaMos | 2026
// store.go

package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "notesbot:flow:"

type Store interface {
	// Load returns the flow for handle, or an idle one when none is stored
	// or the stored one expired.
	Load(ctx context.Context, handle int64) (*Flow, error)
	Save(ctx context.Context, handle int64, f *Flow) error
	Clear(ctx context.Context, handle int64) error
}

// RedisStore keeps each flow as a JSON value whose TTL is refreshed on
// every save, so an abandoned dialogue disappears after ttl of silence.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

func flowKey(handle int64) string {
	return keyPrefix + strconv.FormatInt(handle, 10)
}

func (s *RedisStore) Load(ctx context.Context, handle int64) (*Flow, error) {
	raw, err := s.client.Get(ctx, flowKey(handle)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewFlow(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load flow: %w", err)
	}

	var f Flow
	if err := json.Unmarshal(raw, &f); err != nil {
		return NewFlow(), nil
	}
	if f.Step == "" {
		f.Step = StepIdle
	}

	return &f, nil
}

func (s *RedisStore) Save(ctx context.Context, handle int64, f *Flow) error {
	if f.Idle() {
		return s.Clear(ctx, handle)
	}

	f.UpdatedAt = s.now().UTC()

	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode flow: %w", err)
	}

	if err := s.client.Set(ctx, flowKey(handle), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save flow: %w", err)
	}

	return nil
}

func (s *RedisStore) Clear(ctx context.Context, handle int64) error {
	if err := s.client.Del(ctx, flowKey(handle)).Err(); err != nil {
		return fmt.Errorf("clear flow: %w", err)
	}
	return nil
}
