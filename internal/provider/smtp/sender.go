package smtp

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"mailboard/backend/internal/provider"
)

// Sender 通过 SMTP 中继发信
type Sender struct {
	addr     string
	username string
	password string
}

// New 创建 SMTP 发信器，未配置中继地址时返回 nil
func New(addr, username, password string) *Sender {
	if addr == "" {
		return nil
	}
	return &Sender{
		addr:     addr,
		username: username,
		password: password,
	}
}

// Name 返回渠道标识
func (s *Sender) Name() string {
	return "smtp"
}

// Send 通过 SMTP 中继投递邮件
//
// 单次调用对应一个收件人；ctx 超时由调用方控制，连接层面依赖
// 中继自身的超时设置。
func (s *Sender) Send(ctx context.Context, msg *provider.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth sasl.Client
	if s.username != "" {
		auth = sasl.NewPlainClient("", s.username, s.password)
	}

	raw := strings.NewReader(provider.BuildMIME(msg))
	if err := smtp.SendMail(s.addr, auth, msg.From, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("smtp: failed to send email: %w", err)
	}

	return nil
}
