package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailboard/backend/internal/service"
)

// EmailHandler 处理邮件生命周期相关的 HTTP 请求
type EmailHandler struct {
	emails *service.EmailService
	log    *zap.Logger
}

// NewEmailHandler 创建邮件处理器
func NewEmailHandler(emails *service.EmailService, log *zap.Logger) *EmailHandler {
	return &EmailHandler{
		emails: emails,
		log:    log,
	}
}

// Create 创建邮件（草稿或排期）
//
// POST /api/emails
func (h *EmailHandler) Create(c *gin.Context) {
	var input service.CreateEmailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	email, err := h.emails.Create(currentUserID(c), &input)
	if err != nil {
		RespondError(c, err, MsgEmailCreateFailed)
		return
	}

	Created(c, email)
}

// List 查询邮件，支持 ?status= 过滤
//
// GET /api/emails
func (h *EmailHandler) List(c *gin.Context) {
	emails, err := h.emails.ListByStatus(currentUserID(c), c.Query("status"))
	if err != nil {
		RespondError(c, err, MsgEmailListFailed)
		return
	}

	Success(c, emails)
}

// ListScheduled 查询排期中的邮件，按排期时间升序
//
// GET /api/emails/scheduled
func (h *EmailHandler) ListScheduled(c *gin.Context) {
	emails, err := h.emails.ListScheduled(currentUserID(c))
	if err != nil {
		RespondError(c, err, MsgEmailListFailed)
		return
	}

	Success(c, emails)
}

// Get 查询单封邮件
//
// GET /api/emails/:id
func (h *EmailHandler) Get(c *gin.Context) {
	email, err := h.emails.Get(currentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err, MsgEmailGetFailed)
		return
	}

	Success(c, email)
}

// Send 立即投递邮件
//
// POST /api/emails/:id/send
func (h *EmailHandler) Send(c *gin.Context) {
	email, err := h.emails.DispatchNow(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err, MsgEmailSendFailed)
		return
	}

	Success(c, email)
}

// Cancel 取消排期邮件
//
// DELETE /api/emails/:id
// 记录保留并置为 cancelled，不做物理删除。
func (h *EmailHandler) Cancel(c *gin.Context) {
	email, err := h.emails.Cancel(currentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err, MsgEmailCancelFailed)
		return
	}

	Success(c, email)
}

// currentUserID 从上下文取认证中间件写入的用户 ID
func currentUserID(c *gin.Context) string {
	if userID, exists := c.Get("userID"); exists {
		return userID.(string)
	}
	return ""
}
