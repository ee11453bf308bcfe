// Package redisstore implements the item store on Redis. Items live as JSON
// blobs under item:{id} keys; an items:order list records insertion order so
// listings stay deterministic.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/itemgrid/itemgrid/internal/app/domain/item"
	"github.com/itemgrid/itemgrid/internal/app/storage"
)

const orderKey = "items:order"

// Store implements storage.ItemStore backed by a Redis client.
type Store struct {
	client *redis.Client
}

var _ storage.ItemStore = (*Store)(nil)

// New creates a Store using the provided client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func itemKey(id string) string {
	return "item:" + id
}

func (s *Store) CreateItem(ctx context.Context, it item.Item) (item.Item, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now

	payload, err := json.Marshal(it)
	if err != nil {
		return item.Item{}, err
	}

	ok, err := s.client.SetNX(ctx, itemKey(it.ID), payload, 0).Result()
	if err != nil {
		return item.Item{}, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return item.Item{}, fmt.Errorf("item %s: %w", it.ID, storage.ErrExists)
	}
	if err := s.client.RPush(ctx, orderKey, it.ID).Err(); err != nil {
		return item.Item{}, fmt.Errorf("redis rpush: %w", err)
	}
	return it, nil
}

func (s *Store) UpdateItem(ctx context.Context, it item.Item) (item.Item, error) {
	existing, err := s.GetItem(ctx, it.ID)
	if err != nil {
		return item.Item{}, err
	}

	it.CreatedAt = existing.CreatedAt
	it.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(it)
	if err != nil {
		return item.Item{}, err
	}
	if err := s.client.Set(ctx, itemKey(it.ID), payload, 0).Err(); err != nil {
		return item.Item{}, fmt.Errorf("redis set: %w", err)
	}
	return it, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (item.Item, error) {
	data, err := s.client.Get(ctx, itemKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return item.Item{}, fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
		}
		return item.Item{}, fmt.Errorf("redis get: %w", err)
	}

	var it item.Item
	if err := json.Unmarshal(data, &it); err != nil {
		return item.Item{}, fmt.Errorf("decode item %s: %w", id, err)
	}
	return it, nil
}

func (s *Store) ListItems(ctx context.Context) ([]item.Item, error) {
	ids, err := s.client.LRange(ctx, orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	if len(ids) == 0 {
		return []item.Item{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, itemKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	result := make([]item.Item, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			// Order entry outlived its item; skip it.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get: %w", err)
		}
		var it item.Item
		if err := json.Unmarshal(data, &it); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		result = append(result, it)
	}
	return result, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, itemKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	if err := s.client.LRem(ctx, orderKey, 1, id).Err(); err != nil {
		return fmt.Errorf("redis lrem: %w", err)
	}
	return nil
}
