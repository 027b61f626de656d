package httptransport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"mailboard/backend/internal/auth"
	jwtpkg "mailboard/backend/internal/auth/jwt"
	"mailboard/backend/internal/domain"
	"mailboard/backend/internal/storage/memory"
)

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	jwtManager := jwtpkg.NewManager("test-secret-key-32-characters-long!!", "mailboard-test",
		15*time.Minute, 24*time.Hour)
	handler := NewAuthHandler(auth.NewService(store), jwtManager, nil, nil, zap.NewNop())

	router := gin.New()
	router.POST("/api/auth/register", handler.Register)
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestRegister(t *testing.T) {
	router := newAuthRouter(t)

	w := postJSON(router, "/api/auth/register",
		`{"username":"alice","password":"secret-pass-123","email":"alice@example.com"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRegister_InvalidInput(t *testing.T) {
	router := newAuthRouter(t)

	// 入参校验错误一律 400，不落 500
	for name, body := range map[string]string{
		"域名无点":  `{"username":"alice","password":"secret-pass-123","email":"a@b"}`,
		"邮箱格式":  `{"username":"alice","password":"secret-pass-123","email":"not-an-email"}`,
		"密码过短":  `{"username":"alice","password":"short"}`,
		"用户名过短": `{"username":"ab","password":"secret-pass-123"}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := postJSON(router, "/api/auth/register", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestIsCredentialValidationError(t *testing.T) {
	assert.True(t, isCredentialValidationError(domain.ErrInvalidDomain))
	assert.True(t, isCredentialValidationError(domain.ValidateAddress("a@b")))
	assert.False(t, isCredentialValidationError(domain.ErrNotFound))
}
