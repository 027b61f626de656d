package hybrid

import (
	"fmt"
	"time"

	"mailboard/backend/internal/domain"
	"mailboard/backend/internal/storage/postgres"
	"mailboard/backend/internal/storage/redis"
)

const (
	emailCacheTTL    = 10 * time.Minute
	overviewCacheTTL = time.Minute
)

// Store 混合存储实现，数据库为准，Redis 作旁路缓存
//
// 邮件按 ID 缓存，写入与状态转换时失效；分析概览短 TTL 缓存，
// 发送/取消等改变统计口径的写入会立即失效对应用户的概览。
type Store struct {
	*postgres.Store
	cache *redis.Cache
}

// NewStore 创建混合存储实例（指定数据库类型）
func NewStore(dbType, dsn, redisAddr, redisPassword string, redisDB int) (*Store, error) {
	var dbStore *postgres.Store
	var err error

	switch dbType {
	case "mysql":
		dbStore, err = postgres.NewMySQLStore(dsn)
	case "postgres", "postgresql":
		dbStore, err = postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: mysql, postgres)", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cache, err := redis.NewCache(redisAddr, redisPassword, redisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	return &Store{
		Store: dbStore,
		cache: cache,
	}, nil
}

// Cache 返回底层缓存，供分析服务直接使用
func (s *Store) Cache() *redis.Cache {
	return s.cache
}

// OverviewCache 固定 TTL 的概览缓存视图，供分析服务使用
type OverviewCache struct {
	cache *redis.Cache
}

// OverviewCache 返回概览缓存视图
func (s *Store) OverviewCache() *OverviewCache {
	return &OverviewCache{cache: s.cache}
}

func (o *OverviewCache) GetCachedOverview(userID string) (*domain.AnalyticsOverview, error) {
	return o.cache.GetCachedOverview(userID)
}

func (o *OverviewCache) CacheOverview(userID string, overview *domain.AnalyticsOverview) error {
	return o.cache.CacheOverview(userID, overview, overviewCacheTTL)
}

func (o *OverviewCache) InvalidateOverview(userID string) error {
	return o.cache.InvalidateOverview(userID)
}

// TokenBlacklist 带注销保留期的 token 黑名单视图
type TokenBlacklist struct {
	cache *redis.Cache
	ttl   time.Duration
}

// TokenBlacklist 返回 token 黑名单视图，ttl 取访问令牌有效期
func (s *Store) TokenBlacklist(ttl time.Duration) *TokenBlacklist {
	return &TokenBlacklist{cache: s.cache, ttl: ttl}
}

func (t *TokenBlacklist) BlacklistToken(token string) error {
	return t.cache.BlacklistToken(token, t.ttl)
}

func (t *TokenBlacklist) IsTokenBlacklisted(token string) (bool, error) {
	return t.cache.IsTokenBlacklisted(token)
}

// SaveEmail 保存邮件并刷新缓存
func (s *Store) SaveEmail(email *domain.Email) error {
	if err := s.Store.SaveEmail(email); err != nil {
		return err
	}
	s.cache.CacheEmail(email, emailCacheTTL)
	s.cache.InvalidateOverview(email.UserID)
	return nil
}

// GetEmail 优先从缓存读取邮件
func (s *Store) GetEmail(id string) (*domain.Email, error) {
	if email, err := s.cache.GetCachedEmail(id); err == nil {
		return email, nil
	}

	email, err := s.Store.GetEmail(id)
	if err != nil {
		return nil, err
	}

	s.cache.CacheEmail(email, emailCacheTTL)
	return email, nil
}

// TransitionEmailStatus 条件更新状态并失效缓存
//
// 状态是 CAS 的判定依据，陈旧缓存会让并发判定失真，转换前先失效。
func (s *Store) TransitionEmailStatus(id string, from []domain.EmailStatus, to domain.EmailStatus) (*domain.Email, error) {
	s.cache.InvalidateEmail(id)

	email, err := s.Store.TransitionEmailStatus(id, from, to)
	if err != nil {
		return nil, err
	}

	s.cache.CacheEmail(email, emailCacheTTL)
	s.cache.InvalidateOverview(email.UserID)
	return email, nil
}

// UpdateEmail 覆盖保存邮件并刷新缓存
func (s *Store) UpdateEmail(email *domain.Email) error {
	if err := s.Store.UpdateEmail(email); err != nil {
		return err
	}
	s.cache.CacheEmail(email, emailCacheTTL)
	s.cache.InvalidateOverview(email.UserID)
	return nil
}

// ResetStuckSending 清理滞留的 sending 行并逐条失效缓存
func (s *Store) ResetStuckSending(reason string) ([]string, error) {
	ids, err := s.Store.ResetStuckSending(reason)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		s.cache.InvalidateEmail(id)
	}
	return ids, nil
}

// SaveActivity 追加活动事件并失效概览缓存
func (s *Store) SaveActivity(activity *domain.EmailActivity) error {
	if err := s.Store.SaveActivity(activity); err != nil {
		return err
	}

	if email, err := s.Store.GetEmail(activity.EmailID); err == nil {
		s.cache.InvalidateOverview(email.UserID)
	}
	return nil
}

// Close 关闭数据库与缓存连接
func (s *Store) Close() error {
	s.cache.Close()
	return s.Store.Close()
}

// Health 检查数据库与缓存健康状态
func (s *Store) Health() error {
	if err := s.Store.Health(); err != nil {
		return err
	}
	return s.cache.Health()
}
