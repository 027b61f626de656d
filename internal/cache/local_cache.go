package cache

import (
	"sync"
	"time"

	"mailboard/backend/internal/domain"
)

// LocalOverviewCache 进程内概览缓存
//
// 用于未配置 Redis 的部署，语义与 Redis 实现一致：
// - 按用户缓存分析概览，短 TTL 过期
// - Track 打开事件时失效
// - 定期清理过期条目，避免长期驻留
type LocalOverviewCache struct {
	data sync.Map
	ttl  time.Duration
}

type overviewEntry struct {
	overview  *domain.AnalyticsOverview
	expiresAt time.Time
}

// NewLocalOverviewCache 创建进程内概览缓存
func NewLocalOverviewCache(ttl time.Duration) *LocalOverviewCache {
	c := &LocalOverviewCache{ttl: ttl}
	go c.cleanupLoop()
	return c
}

// GetCachedOverview 读取缓存的概览，未命中或已过期返回 nil
func (c *LocalOverviewCache) GetCachedOverview(userID string) (*domain.AnalyticsOverview, error) {
	val, ok := c.data.Load(userID)
	if !ok {
		return nil, nil
	}

	entry := val.(*overviewEntry)
	if time.Now().After(entry.expiresAt) {
		c.data.Delete(userID)
		return nil, nil
	}
	return entry.overview, nil
}

// CacheOverview 缓存用户的分析概览
func (c *LocalOverviewCache) CacheOverview(userID string, overview *domain.AnalyticsOverview) error {
	c.data.Store(userID, &overviewEntry{
		overview:  overview,
		expiresAt: time.Now().Add(c.ttl),
	})
	return nil
}

// InvalidateOverview 使用户的概览缓存失效
func (c *LocalOverviewCache) InvalidateOverview(userID string) error {
	c.data.Delete(userID)
	return nil
}

// cleanupLoop 定期清理过期条目
func (c *LocalOverviewCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.data.Range(func(key, value interface{}) bool {
			if now.After(value.(*overviewEntry).expiresAt) {
				c.data.Delete(key)
			}
			return true
		})
	}
}
