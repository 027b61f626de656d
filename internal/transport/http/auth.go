package httptransport

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailboard/backend/internal/auth"
	jwtpkg "mailboard/backend/internal/auth/jwt"
	"mailboard/backend/internal/domain"
	"mailboard/backend/internal/monitoring"
)

// TokenRevoker 注销 token 的写入接口，由 Redis 实现，可缺省
type TokenRevoker interface {
	BlacklistToken(token string) error
}

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	authService *auth.Service
	jwtManager  *jwtpkg.Manager
	revoker     TokenRevoker        // 可为 nil
	metrics     *monitoring.Metrics // 可为 nil
	log         *zap.Logger
}

// NewAuthHandler 创建新的认证处理器实例
func NewAuthHandler(authService *auth.Service, jwtManager *jwtpkg.Manager, revoker TokenRevoker, metrics *monitoring.Metrics, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		jwtManager:  jwtManager,
		revoker:     revoker,
		metrics:     metrics,
		log:         log,
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type authResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}

// Register 处理用户注册请求
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Register(auth.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Name:     req.Name,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameExists):
			Conflict(c, "用户名已被占用")
		case isCredentialValidationError(err):
			BadRequest(c, err.Error())
		default:
			h.log.Error("failed to register user", zap.Error(err))
			InternalError(c, "注册失败，请稍后重试")
		}
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, user.Username)
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, "生成令牌失败")
		return
	}

	if h.metrics != nil {
		h.metrics.UsersRegistered.Inc()
	}
	h.log.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)

	Created(c, authResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// Login 处理用户登录请求
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Login(auth.LoginInput{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			Unauthorized(c, MsgInvalidCredentials)
			return
		}
		h.log.Error("failed to login", zap.Error(err))
		InternalError(c, "登录失败，请稍后重试")
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, user.Username)
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, "生成令牌失败")
		return
	}

	h.log.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)

	Success(c, authResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// Logout 注销当前会话
//
// 把当前访问令牌加入黑名单；未配置 Redis 时注销只在客户端生效。
func (h *AuthHandler) Logout(c *gin.Context) {
	if h.revoker != nil {
		if token, exists := c.Get("accessToken"); exists {
			if err := h.revoker.BlacklistToken(token.(string)); err != nil {
				h.log.Warn("failed to blacklist token", zap.Error(err))
			}
		}
	}
	Success(c, gin.H{"loggedOut": true})
}

// Refresh 刷新访问令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, jwtpkg.ErrExpiredToken):
			Unauthorized(c, MsgTokenExpired)
		case errors.Is(err, jwtpkg.ErrInvalidToken):
			Unauthorized(c, "刷新令牌无效")
		default:
			h.log.Error("failed to refresh token", zap.Error(err))
			InternalError(c, "刷新令牌失败")
		}
		return
	}

	Success(c, gin.H{
		"accessToken": accessToken,
	})
}

// Me 获取当前用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	user, err := h.authService.GetUserByID(userID.(string))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			NotFound(c, "用户不存在")
			return
		}
		h.log.Error("failed to get user", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, user)
}

// isCredentialValidationError 判断是否为注册入参校验错误
func isCredentialValidationError(err error) bool {
	for _, sentinel := range []error{
		domain.ErrInvalidEmail,
		domain.ErrEmailTooLong,
		domain.ErrLocalPartTooLong,
		domain.ErrDomainTooLong,
		domain.ErrInvalidDomain,
		domain.ErrPasswordTooShort,
		domain.ErrPasswordTooLong,
		domain.ErrUsernameTooShort,
		domain.ErrUsernameTooLong,
		domain.ErrInvalidUsername,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
