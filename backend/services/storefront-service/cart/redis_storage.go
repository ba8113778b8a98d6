package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	maxTxRetries = 5
	checkoutTTL  = 30 * time.Minute
)

// RedisStorage keeps one JSON blob per user and uses WATCH/MULTI so
// concurrent requests for the same cart never lose an update.
type RedisStorage struct {
	client   *redis.Client
	ttl      time.Duration
	notifier *Notifier
	now      func() time.Time
}

func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{
		client:   client,
		ttl:      ttl,
		notifier: NewNotifier(),
		now:      time.Now,
	}
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:user:%s", userID)
}

func checkoutKey(userID string) string {
	return fmt.Sprintf("checkout:user:%s", userID)
}

func (s *RedisStorage) Get(ctx context.Context, userID string) (*Cart, error) {
	return load(ctx, s.client, userID)
}

func (s *RedisStorage) Add(ctx context.Context, userID string, item Item, qty int) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error { return c.add(item, qty) })
}

func (s *RedisStorage) Update(ctx context.Context, userID, productID string, qty int) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error { return c.update(productID, qty) })
}

func (s *RedisStorage) Remove(ctx context.Context, userID string, productIDs ...string) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		c.remove(productIDs...)
		return nil
	})
}

func (s *RedisStorage) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return err
	}
	s.notifier.Notify(Change{UserID: userID})
	return nil
}

func (s *RedisStorage) Total(ctx context.Context, userID string, selectedIDs []string) (int64, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return c.Total(selectedIDs), nil
}

func (s *RedisStorage) StageCheckout(ctx context.Context, userID string, selectedIDs []string) ([]Item, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	selected := make(map[string]struct{}, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = struct{}{}
	}
	var items []Item
	for _, it := range c.Items {
		if _, ok := selected[it.ID]; ok {
			items = append(items, it)
		}
	}
	if len(items) == 0 {
		return nil, ErrEmptySelection
	}

	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, checkoutKey(userID), data, checkoutTTL).Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *RedisStorage) TakeCheckout(ctx context.Context, userID string) ([]Item, error) {
	data, err := s.client.GetDel(ctx, checkoutKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNothingStaged
	}
	if err != nil {
		return nil, err
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *RedisStorage) Subscribe(fn func(Change)) func() {
	return s.notifier.Subscribe(fn)
}

func (s *RedisStorage) mutate(ctx context.Context, userID string, fn func(*Cart) error) (*Cart, error) {
	key := cartKey(userID)
	var result *Cart

	txf := func(tx *redis.Tx) error {
		c, err := load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		c.UpdatedAt = s.now()

		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(c.Items) == 0 {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, data, s.ttl)
			}
			return nil
		})
		result = c
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			s.notifier.Notify(Change{UserID: userID, ItemCount: len(result.Items), Quantity: result.Quantity()})
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrConflict
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// load returns an empty cart when the user has none yet.
func load(ctx context.Context, r stringGetter, userID string) (*Cart, error) {
	data, err := r.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Cart{UserID: userID, Items: []Item{}}, nil
	}
	if err != nil {
		return nil, err
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return &c, nil
}
