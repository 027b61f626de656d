package httptransport

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailboard/backend/internal/domain"
	"mailboard/backend/internal/service"
)

// 1x1 透明 GIF
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21,
	0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
	0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
	0x01, 0x00, 0x3b,
}

// TrackingHandler 处理邮件内嵌的追踪端点
//
// 追踪端点无需认证：链接出现在收件人侧的邮件正文里。无论记录是否
// 成功都返回正常响应，不向收件人暴露内部状态。
type TrackingHandler struct {
	analytics *service.AnalyticsService
	log       *zap.Logger
}

// NewTrackingHandler 创建追踪处理器
func NewTrackingHandler(analytics *service.AnalyticsService, log *zap.Logger) *TrackingHandler {
	return &TrackingHandler{
		analytics: analytics,
		log:       log,
	}
}

// Open 打开追踪像素
//
// GET /t/open/:id?r=<recipient>
func (h *TrackingHandler) Open(c *gin.Context) {
	emailID := c.Param("id")
	if _, err := h.analytics.Track(emailID, domain.ActivityOpen, c.Query("r")); err != nil {
		h.log.Debug("open tracking dropped",
			zap.String("emailId", emailID),
			zap.Error(err))
	}

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Data(http.StatusOK, "image/gif", trackingPixel)
}

// Click 点击追踪跳转
//
// GET /t/click/:id?url=<target>&r=<recipient>
func (h *TrackingHandler) Click(c *gin.Context) {
	emailID := c.Param("id")
	target := c.Query("url")
	if !isSafeRedirect(target) {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if _, err := h.analytics.Track(emailID, domain.ActivityClick, c.Query("r")); err != nil {
		h.log.Debug("click tracking dropped",
			zap.String("emailId", emailID),
			zap.Error(err))
	}

	c.Redirect(http.StatusFound, target)
}

// isSafeRedirect 只允许跳转到绝对的 http(s) 地址
func isSafeRedirect(target string) bool {
	if target == "" {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}
