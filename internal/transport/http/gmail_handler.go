package httptransport

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailboard/backend/internal/provider"
	"mailboard/backend/internal/provider/gmail"
	"mailboard/backend/internal/storage"
)

// oauthStateTTL OAuth state 参数的有效期
const oauthStateTTL = 10 * time.Minute

// GmailHandler 处理 Gmail OAuth 授权流程
//
// 授权流程: Auth 签发带 state 的跳转地址 → 用户在 Google 同意授权 →
// Callback 按 state 找回用户并换取 refresh token。
type GmailHandler struct {
	gmail *gmail.Provider // 未配置时为 nil
	users storage.UserRepository
	log   *zap.Logger

	mu     sync.Mutex
	states map[string]oauthState // state -> 发起授权的用户
}

type oauthState struct {
	userID    string
	expiresAt time.Time
}

// NewGmailHandler 创建 Gmail 授权处理器
func NewGmailHandler(gmailProvider *gmail.Provider, users storage.UserRepository, log *zap.Logger) *GmailHandler {
	return &GmailHandler{
		gmail:  gmailProvider,
		users:  users,
		log:    log,
		states: make(map[string]oauthState),
	}
}

// Auth 签发 Gmail 授权跳转地址
//
// GET /api/gmail/auth
func (h *GmailHandler) Auth(c *gin.Context) {
	if h.gmail == nil {
		UnprocessableEntity(c, MsgGmailNotConfigured)
		return
	}

	state := uuid.New().String()
	h.mu.Lock()
	h.pruneStatesLocked()
	h.states[state] = oauthState{
		userID:    currentUserID(c),
		expiresAt: time.Now().Add(oauthStateTTL),
	}
	h.mu.Unlock()

	Success(c, gin.H{
		"url": h.gmail.AuthCodeURL(state),
	})
}

// Callback Google 授权回调
//
// GET /api/gmail/callback?state=&code=
// 回调来自 Google 跳转，不携带认证头，用户身份由 state 找回。
func (h *GmailHandler) Callback(c *gin.Context) {
	if h.gmail == nil {
		UnprocessableEntity(c, MsgGmailNotConfigured)
		return
	}

	if errMsg := c.Query("error"); errMsg != "" {
		h.log.Warn("gmail authorization denied", zap.String("error", errMsg))
		BadRequest(c, MsgGmailAuthFailed)
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	h.mu.Lock()
	entry, ok := h.states[state]
	delete(h.states, state)
	h.mu.Unlock()
	if !ok || time.Now().After(entry.expiresAt) {
		BadRequest(c, "授权状态已过期，请重新发起授权")
		return
	}

	refreshToken, email, err := h.gmail.Exchange(c.Request.Context(), code)
	if err != nil {
		h.log.Error("gmail code exchange failed", zap.Error(err))
		UnprocessableEntity(c, MsgGmailAuthFailed)
		return
	}

	user, err := h.users.GetUserByID(entry.userID)
	if err != nil {
		h.log.Error("gmail callback user lookup failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	user.GmailConnected = true
	user.GmailRefreshToken = refreshToken
	user.GmailEmail = email
	user.UpdatedAt = time.Now().UTC()
	if err := h.users.UpdateUser(user); err != nil {
		h.log.Error("gmail callback user update failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	h.log.Info("gmail connected",
		zap.String("userId", user.ID),
		zap.String("gmailEmail", email))

	Success(c, gin.H{
		"connected": true,
		"email":     email,
	})
}

// Status 查询 Gmail 连接状态
//
// GET /api/gmail/status
// 外部探测失败时降级为未连接，不返回错误。
func (h *GmailHandler) Status(c *gin.Context) {
	user, err := h.users.GetUserByID(currentUserID(c))
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}

	if h.gmail == nil || !user.GmailConnected || user.GmailRefreshToken == "" {
		Success(c, provider.Status{Connected: false})
		return
	}

	Success(c, h.gmail.CheckStatus(c.Request.Context(), user.GmailRefreshToken))
}

// Disconnect 断开 Gmail 连接
//
// DELETE /api/gmail
func (h *GmailHandler) Disconnect(c *gin.Context) {
	user, err := h.users.GetUserByID(currentUserID(c))
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}

	user.GmailConnected = false
	user.GmailRefreshToken = ""
	user.GmailEmail = ""
	user.UpdatedAt = time.Now().UTC()
	if err := h.users.UpdateUser(user); err != nil {
		h.log.Error("gmail disconnect failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, provider.Status{Connected: false})
}

// pruneStatesLocked 清理过期的 state，调用方需持锁
func (h *GmailHandler) pruneStatesLocked() {
	now := time.Now()
	for state, entry := range h.states {
		if now.After(entry.expiresAt) {
			delete(h.states, state)
		}
	}
}
