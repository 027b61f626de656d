package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailboard/backend/internal/service"
)

// AnalyticsHandler 处理分析统计相关的 HTTP 请求
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	log       *zap.Logger
}

// NewAnalyticsHandler 创建分析统计处理器
func NewAnalyticsHandler(analytics *service.AnalyticsService, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		log:       log,
	}
}

// Overview 面板概览统计
//
// GET /api/analytics/overview
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	overview, err := h.analytics.Overview(currentUserID(c))
	if err != nil {
		h.log.Error("failed to compute overview", zap.Error(err))
		RespondError(c, err, MsgAnalyticsFailed)
		return
	}

	Success(c, overview)
}

// RecentActivity 最近活动流，支持 ?limit=
//
// GET /api/analytics/activity
func (h *AnalyticsHandler) RecentActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	activities, err := h.analytics.RecentActivity(currentUserID(c), limit)
	if err != nil {
		RespondError(c, err, MsgAnalyticsFailed)
		return
	}

	Success(c, activities)
}

// EmailActivity 单封邮件的活动事件
//
// GET /api/emails/:id/activities
func (h *AnalyticsHandler) EmailActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	activities, err := h.analytics.ListByEmail(currentUserID(c), c.Param("id"), limit)
	if err != nil {
		RespondError(c, err, MsgAnalyticsFailed)
		return
	}

	Success(c, activities)
}
