// internal/cart/persist.go
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionTTL is how long an untouched cart survives in redis.
const SessionTTL = 24 * time.Hour

// ErrNoSnapshot means nothing has been persisted for the session.
var ErrNoSnapshot = errors.New("no persisted cart")

// Persister stores cart snapshots outside the process.
type Persister interface {
	Save(ctx context.Context, lines []Line) error
	Load(ctx context.Context) ([]Line, error)
	Delete(ctx context.Context) error
}

// RedisPersister keeps the cart at "cart:session:<id>" with a sliding TTL.
type RedisPersister struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

func NewRedisPersister(client redis.Cmdable, sessionID string) *RedisPersister {
	return &RedisPersister{
		client: client,
		key:    fmt.Sprintf("cart:session:%s", sessionID),
		ttl:    SessionTTL,
	}
}

// Save writes the snapshot; an empty cart deletes the key.
func (p *RedisPersister) Save(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		return p.Delete(ctx)
	}
	data, err := json.Marshal(snapshot{Lines: lines})
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := p.client.Set(ctx, p.key, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", p.key, err)
	}
	return nil
}

func (p *RedisPersister) Load(ctx context.Context) ([]Line, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", p.key, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return snap.Lines, nil
}

func (p *RedisPersister) Delete(ctx context.Context) error {
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", p.key, err)
	}
	return nil
}
