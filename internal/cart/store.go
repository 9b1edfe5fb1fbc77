// Package cart はユーザーごとの買い物かごを管理する。
// かごの内容はRedisにJSONで保存され、TTLで自動的に失効する。
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/kidstore/internal/model"
)

// Store はかごの永続化インターフェースを定義する。
type Store interface {
	// Get はユーザーのかごを取得する。存在しない場合は空のかごを返す。
	Get(ctx context.Context, userID string) (*model.Cart, error)
	// Save はかごを保存し、TTLを更新する。
	Save(ctx context.Context, cart *model.Cart) error
	// Clear はかごを削除する。存在しない場合は何もしない。
	Clear(ctx context.Context, userID string) error
}

// RedisStore はRedisを使用したStoreの実装。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func cartKey(userID string) string {
	return "cart:" + userID
}

// Get はユーザーのかごを取得する。
func (s *RedisStore) Get(ctx context.Context, userID string) (*model.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &model.Cart{UserID: userID, Items: []model.CartItem{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("かごの取得に失敗しました: %w", err)
	}

	cart := &model.Cart{}
	if err := json.Unmarshal(data, cart); err != nil {
		return nil, fmt.Errorf("かごのデコードに失敗しました: %w", err)
	}
	return cart, nil
}

// Save はかごを保存する。
func (s *RedisStore) Save(ctx context.Context, cart *model.Cart) error {
	cart.UpdatedAt = time.Now()
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("かごのエンコードに失敗しました: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(cart.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("かごの保存に失敗しました: %w", err)
	}
	return nil
}

// Clear はかごを削除する。
func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("かごの削除に失敗しました: %w", err)
	}
	return nil
}
