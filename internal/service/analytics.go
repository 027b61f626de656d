package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailboard/backend/internal/domain"
	"mailboard/backend/internal/monitoring"
)

// OverviewCache 概览统计的读缓存，由 Redis 实现，可缺省
type OverviewCache interface {
	GetCachedOverview(userID string) (*domain.AnalyticsOverview, error)
	CacheOverview(userID string, overview *domain.AnalyticsOverview) error
	InvalidateOverview(userID string) error
}

// AnalyticsService 聚合邮件活动数据，提供面板统计与活动流
type AnalyticsService struct {
	store     domain.Store
	cache     OverviewCache // 可为 nil
	logger    *zap.Logger
	metrics   *monitoring.Metrics // 可为 nil
	publisher ActivityPublisher   // 可为 nil
}

// NewAnalyticsService 创建分析统计服务
func NewAnalyticsService(store domain.Store, cache OverviewCache, logger *zap.Logger, metrics *monitoring.Metrics) *AnalyticsService {
	return &AnalyticsService{
		store:   store,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}
}

// SetPublisher 注入实时推送通道，需在服务启动前调用
func (s *AnalyticsService) SetPublisher(p ActivityPublisher) {
	s.publisher = p
}

// Overview 计算面板概览
//
// openRate = 至少被打开一次的已发送邮件数 / 已发送邮件数，按收件邮件去重，
// 保证比率不超过 100%。结果短暂缓存，Track 写入时失效。
func (s *AnalyticsService) Overview(userID string) (*domain.AnalyticsOverview, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetCachedOverview(userID); err == nil && cached != nil {
			return cached, nil
		}
	}

	totalSent, err := s.store.CountEmailsByStatus(userID, domain.StatusSent)
	if err != nil {
		return nil, fmt.Errorf("count sent: %w", err)
	}
	scheduled, err := s.store.CountEmailsByStatus(userID, domain.StatusScheduled)
	if err != nil {
		return nil, fmt.Errorf("count scheduled: %w", err)
	}
	opened, err := s.store.CountOpenedEmails(userID)
	if err != nil {
		return nil, fmt.Errorf("count opened: %w", err)
	}

	overview := &domain.AnalyticsOverview{
		TotalSent: totalSent,
		Scheduled: scheduled,
		OpenRate:  FormatOpenRate(opened, totalSent),
	}

	if s.cache != nil {
		if err := s.cache.CacheOverview(userID, overview); err != nil {
			s.logger.Warn("cache overview failed", zap.Error(err))
		}
	}
	return overview, nil
}

// Track 记录一次邮件活动事件（打开/点击/退回）
//
// 事件挂在邮件上；邮件不存在时静默丢弃并返回 ErrNotFound，由追踪端点
// 决定是否对外暴露。写入成功后推送到实时通道并使概览缓存失效。
func (s *AnalyticsService) Track(emailID string, activityType domain.ActivityType, recipientEmail string) (*domain.EmailActivity, error) {
	if !domain.ValidActivityType(activityType) {
		return nil, domain.ValidationError("unknown activity type %q", activityType)
	}

	email, err := s.store.GetEmail(emailID)
	if err != nil {
		return nil, err
	}

	activity := &domain.EmailActivity{
		ID:             uuid.New().String(),
		EmailID:        email.ID,
		Type:           activityType,
		RecipientEmail: recipientEmail,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.store.SaveActivity(activity); err != nil {
		return nil, fmt.Errorf("save activity: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ActivitiesRecorded.WithLabelValues(string(activityType)).Inc()
	}
	if s.publisher != nil {
		s.publisher.PublishActivity(email.UserID, activity)
	}
	if s.cache != nil && activityType == domain.ActivityOpen {
		if err := s.cache.InvalidateOverview(email.UserID); err != nil {
			s.logger.Warn("invalidate overview failed", zap.Error(err))
		}
	}

	s.logger.Debug("activity tracked",
		zap.String("emailId", emailID),
		zap.String("type", string(activityType)))
	return activity, nil
}

// ListByEmail 查询单封邮件的活动事件，按时间倒序
func (s *AnalyticsService) ListByEmail(userID, emailID string, limit int) ([]domain.EmailActivity, error) {
	email, err := s.store.GetEmail(emailID)
	if err != nil {
		return nil, err
	}
	if email.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return s.store.ListActivitiesByEmail(emailID, normalizeLimit(limit))
}

// RecentActivity 查询用户全部邮件的最近活动，按时间倒序
func (s *AnalyticsService) RecentActivity(userID string, limit int) ([]domain.EmailActivity, error) {
	return s.store.ListRecentActivities(userID, normalizeLimit(limit))
}

// FormatOpenRate 把打开率格式化为百分比字符串，无已发送邮件时为 "0%"
func FormatOpenRate(opened, totalSent int) string {
	if totalSent == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(opened)/float64(totalSent)*100)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}
