package resend

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"

	"mailboard/backend/internal/provider"
)

// Sender 基于 Resend API 的发信器
type Sender struct {
	client *resend.Client
}

// New 创建 Resend 发信器，未配置 API Key 时返回 nil
func New(apiKey string) *Sender {
	if apiKey == "" {
		return nil
	}
	return &Sender{
		client: resend.NewClient(apiKey),
	}
}

// Name 返回渠道标识
func (s *Sender) Name() string {
	return "resend"
}

// Send 通过 Resend API 发送邮件
func (s *Sender) Send(ctx context.Context, msg *provider.Message) error {
	req := &resend.SendEmailRequest{
		From:    provider.FormatFrom(msg.FromName, msg.From),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}

	return nil
}
