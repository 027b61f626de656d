package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mailboard/backend/internal/domain"
)

// Cache Redis 缓存实现
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx := context.Background()

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		ctx:    ctx,
	}, nil
}

// ========== 邮件缓存 ==========

// CacheEmail 缓存邮件
func (c *Cache) CacheEmail(email *domain.Email, ttl time.Duration) error {
	key := fmt.Sprintf("email:%s", email.ID)
	data, err := json.Marshal(email)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedEmail 获取缓存的邮件
func (c *Cache) GetCachedEmail(emailID string) (*domain.Email, error) {
	key := fmt.Sprintf("email:%s", emailID)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("email not found in cache")
		}
		return nil, err
	}

	var email domain.Email
	if err := json.Unmarshal([]byte(data), &email); err != nil {
		return nil, err
	}

	return &email, nil
}

// InvalidateEmail 失效邮件缓存
func (c *Cache) InvalidateEmail(emailID string) error {
	return c.client.Del(c.ctx, fmt.Sprintf("email:%s", emailID)).Err()
}

// ========== 分析概览缓存 ==========

// CacheOverview 缓存用户的分析概览
func (c *Cache) CacheOverview(userID string, overview *domain.AnalyticsOverview, ttl time.Duration) error {
	key := fmt.Sprintf("analytics:overview:%s", userID)
	data, err := json.Marshal(overview)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedOverview 获取缓存的分析概览
func (c *Cache) GetCachedOverview(userID string) (*domain.AnalyticsOverview, error) {
	key := fmt.Sprintf("analytics:overview:%s", userID)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("overview not found in cache")
		}
		return nil, err
	}

	var overview domain.AnalyticsOverview
	if err := json.Unmarshal([]byte(data), &overview); err != nil {
		return nil, err
	}

	return &overview, nil
}

// InvalidateOverview 失效用户的分析概览缓存
func (c *Cache) InvalidateOverview(userID string) error {
	return c.client.Del(c.ctx, fmt.Sprintf("analytics:overview:%s", userID)).Err()
}

// ========== 令牌黑名单 ==========

// BlacklistToken 将注销的令牌加入黑名单，到期自动清理
func (c *Cache) BlacklistToken(jti string, ttl time.Duration) error {
	key := fmt.Sprintf("token:blacklist:%s", jti)
	return c.client.Set(c.ctx, key, "1", ttl).Err()
}

// IsTokenBlacklisted 检查令牌是否在黑名单中
func (c *Cache) IsTokenBlacklisted(jti string) (bool, error) {
	key := fmt.Sprintf("token:blacklist:%s", jti)
	_, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ========== 通用 ==========

// Health 检查 Redis 连接
func (c *Cache) Health() error {
	return c.client.Ping(c.ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.client.Close()
}
