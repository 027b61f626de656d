package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"MAILBOARD_JWT_SECRET",
		"MAILBOARD_SERVER_HOST",
		"MAILBOARD_SERVER_PORT",
		"MAILBOARD_SERVER_BASE_URL",
		"MAILBOARD_LOG_LEVEL",
		"MAILBOARD_LOG_DEVELOPMENT",
		"MAILBOARD_PROVIDER_DEFAULT",
		"MAILBOARD_PROVIDER_GMAIL_REDIRECT_URL",
		"MAILBOARD_DISPATCH_INTERVAL",
	}

	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	t.Run("加载默认配置成功", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
		os.Setenv("MAILBOARD_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		// 验证默认值
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
		assert.Equal(t, "resend", cfg.Provider.Default)
		assert.Equal(t, 30*time.Second, cfg.Provider.SendTimeout)
		assert.Equal(t, 30*time.Second, cfg.Dispatch.Interval)
		assert.Equal(t, 4, cfg.Dispatch.MaxWorkers)

		// 回调地址按 BaseURL 拼接
		assert.Equal(t, "http://localhost:8080/api/gmail/callback", cfg.Provider.GmailRedirectURL)
	})

	t.Run("拒绝默认JWT密钥", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("拒绝过短的JWT密钥", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
		os.Setenv("MAILBOARD_JWT_SECRET", "too-short")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("拒绝未知的默认发信渠道", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
		os.Setenv("MAILBOARD_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")
		os.Setenv("MAILBOARD_PROVIDER_DEFAULT", "pigeon")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("环境变量覆盖默认值", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
		os.Setenv("MAILBOARD_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")
		os.Setenv("MAILBOARD_SERVER_BASE_URL", "https://mail.example.com/")
		os.Setenv("MAILBOARD_DISPATCH_INTERVAL", "10s")

		cfg, err := Load()

		assert.NoError(t, err)
		// 末尾斜杠被去除
		assert.Equal(t, "https://mail.example.com", cfg.Server.BaseURL)
		assert.Equal(t, 10*time.Second, cfg.Dispatch.Interval)
	})
}
