package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"mailboard/backend/internal/provider"
)

const (
	sendURL    = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"
	profileURL = "https://gmail.googleapis.com/gmail/v1/users/me/profile"

	// 发信与读取授权邮箱所需的最小授权范围
	scopeSend = "https://www.googleapis.com/auth/gmail.send"
)

var (
	// ErrNotConfigured OAuth 客户端未配置
	ErrNotConfigured = errors.New("gmail oauth client not configured")
	// ErrNoRefreshToken 授权响应缺少刷新令牌
	ErrNoRefreshToken = errors.New("no refresh token in oauth response")
)

// Provider Gmail 发信渠道，基于 OAuth 授权的用户账号发信
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// New 创建 Gmail 渠道
//
// 未配置 ClientID/ClientSecret 时返回 nil，调用方据此降级到默认渠道。
func New(clientID, clientSecret, redirectURL string) *Provider {
	if clientID == "" || clientSecret == "" {
		return nil
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{scopeSend, "https://www.googleapis.com/auth/userinfo.email"},
			Endpoint:     googleoauth.Endpoint,
		},
	}
}

// AuthCodeURL 生成用户授权跳转地址
//
// 请求离线访问并强制展示授权页，保证每次连接都能拿到刷新令牌。
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange 用授权码换取令牌，返回刷新令牌与授权邮箱
func (p *Provider) Exchange(ctx context.Context, code string) (refreshToken, email string, err error) {
	ctx = p.contextWithHTTPClient(ctx)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", "", fmt.Errorf("oauth exchange failed: %w", err)
	}
	if token.RefreshToken == "" {
		return "", "", ErrNoRefreshToken
	}

	email, err = p.fetchProfileEmail(ctx, p.config.Client(ctx, token))
	if err != nil {
		return "", "", err
	}

	return token.RefreshToken, email, nil
}

// CheckStatus 检查授权是否仍然有效
//
// 任何失败都返回未连接状态而不报错，避免瞬时故障打断前端轮询。
func (p *Provider) CheckStatus(ctx context.Context, refreshToken string) provider.Status {
	if refreshToken == "" {
		return provider.Status{Connected: false}
	}

	ctx = p.contextWithHTTPClient(ctx)
	email, err := p.fetchProfileEmail(ctx, p.clientFromRefreshToken(ctx, refreshToken))
	if err != nil {
		return provider.Status{Connected: false}
	}

	return provider.Status{Connected: true, Email: email}
}

// Name 返回渠道标识
func (p *Provider) Name() string {
	return "gmail"
}

// Sender 返回绑定到指定刷新令牌的发信器
func (p *Provider) Sender(refreshToken string) provider.Sender {
	return &sender{provider: p, refreshToken: refreshToken}
}

// sender 持有单个用户刷新令牌的 Gmail 发信器
type sender struct {
	provider     *Provider
	refreshToken string
}

func (s *sender) Name() string {
	return "gmail"
}

// Send 通过 Gmail API 发送邮件
//
// 报文按 RFC 822 组装后 base64url 编码提交，令牌刷新由 oauth2 客户端自动完成。
func (s *sender) Send(ctx context.Context, msg *provider.Message) error {
	ctx = s.provider.contextWithHTTPClient(ctx)
	client := s.provider.clientFromRefreshToken(ctx, s.refreshToken)

	raw := base64.URLEncoding.EncodeToString([]byte(provider.BuildMIME(msg)))
	payload, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gmail send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("gmail send rejected: status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// fetchProfileEmail 读取授权账号的邮箱地址
func (p *Provider) fetchProfileEmail(ctx context.Context, client *http.Client) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gmail profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gmail profile rejected: status %d", resp.StatusCode)
	}

	var profile struct {
		EmailAddress string `json:"emailAddress"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", err
	}
	if profile.EmailAddress == "" {
		return "", errors.New("gmail profile missing email address")
	}

	return profile.EmailAddress, nil
}

// clientFromRefreshToken 用刷新令牌构造自动续期的 HTTP 客户端
func (p *Provider) clientFromRefreshToken(ctx context.Context, refreshToken string) *http.Client {
	token := &oauth2.Token{RefreshToken: refreshToken}
	return oauth2.NewClient(ctx, p.config.TokenSource(ctx, token))
}

// contextWithHTTPClient 允许测试注入自定义 HTTP 客户端
func (p *Provider) contextWithHTTPClient(ctx context.Context) context.Context {
	if p.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	return ctx
}
