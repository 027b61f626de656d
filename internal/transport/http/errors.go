package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"mailboard/backend/internal/auth"
	"mailboard/backend/internal/domain"
)

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgInvalidJSON      = "JSON格式错误"
	MsgRequestBodyEmpty = "请求体不能为空"

	// 认证相关
	MsgAuthRequired       = "需要登录认证"
	MsgInvalidCredentials = "用户名或密码错误"
	MsgTokenExpired       = "登录已过期，请重新登录"
	MsgTokenInvalid       = "无效的访问令牌"
	MsgPermissionDenied   = "权限不足"

	// 邮件相关
	MsgEmailCreateFailed   = "创建邮件失败"
	MsgEmailNotFound       = "邮件不存在"
	MsgEmailListFailed     = "获取邮件列表失败"
	MsgEmailSendFailed     = "发送邮件失败"
	MsgEmailCancelFailed   = "取消邮件失败"
	MsgEmailInvalidState   = "邮件当前状态不允许该操作"
	MsgEmailGetFailed      = "获取邮件详情失败"

	// 收件人相关
	MsgRecipientCreateFailed = "创建收件人失败"
	MsgRecipientListFailed   = "获取收件人列表失败"
	MsgRecipientDeleteFailed = "删除收件人失败"
	MsgRecipientNotFound     = "收件人不存在"
	MsgListCreateFailed      = "创建收件人列表失败"
	MsgListDeleteFailed      = "删除收件人列表失败"
	MsgListNotFound          = "收件人列表不存在"

	// 分析统计相关
	MsgAnalyticsFailed = "获取统计数据失败"

	// Gmail 相关
	MsgGmailNotConfigured = "Gmail 集成未配置"
	MsgGmailAuthFailed    = "Gmail 授权失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)

// RespondError 把业务错误映射为 HTTP 响应
//
// 服务层的哨兵错误决定状态码，fallbackMsg 用于兜底的 500 场景。
func RespondError(c *gin.Context, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		NotFound(c, MsgEmailNotFound)
	case errors.Is(err, domain.ErrForbidden):
		// 资源归属他人时不暴露其存在
		NotFound(c, MsgEmailNotFound)
	case errors.Is(err, domain.ErrInvalidState):
		Conflict(c, MsgEmailInvalidState)
	case errors.Is(err, domain.ErrProvider):
		UnprocessableEntity(c, MsgEmailSendFailed)
	case errors.Is(err, auth.ErrInvalidCredentials):
		Unauthorized(c, MsgInvalidCredentials)
	case errors.Is(err, auth.ErrUsernameExists):
		Conflict(c, "用户名已被占用")
	case errors.Is(err, auth.ErrUserNotFound):
		NotFound(c, "用户不存在")
	default:
		InternalError(c, fallbackMsg)
	}
}
