package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/course-commerce/internal/model"
)

// CartStore keeps validated carts in Redis.  Each cart lives under its
// own key and disappears after the configured TTL.
type CartStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCartStore returns a CartStore writing keys "<prefix>:<id>".
func NewCartStore(rdb *redis.Client, prefix string, ttl time.Duration) *CartStore {
	if prefix == "" {
		prefix = "cc:cart"
	}
	return &CartStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *CartStore) key(id string) string { return s.prefix + ":" + id }

// Save stores the cart under id, replacing any previous value.
func (s *CartStore) Save(ctx context.Context, id string, items []model.CartItem) error {
	if items == nil {
		items = []model.CartItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(id), b, s.ttl).Err()
}

// Load returns the cart stored under id.  An unknown or expired id
// yields ErrNotFound.
func (s *CartStore) Load(ctx context.Context, id string) ([]model.CartItem, error) {
	b, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var items []model.CartItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, err
	}
	return items, nil
}
