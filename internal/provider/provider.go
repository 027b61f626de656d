package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
)

// Message 一次外发邮件的载荷
type Message struct {
	From     string // 发件地址
	FromName string // 发件人显示名，可空
	To       string // 单个收件地址
	Subject  string
	HTML     string // 正文，HTML 格式
}

// Sender 外部发信能力的抽象
//
// Send 对单个收件人执行一次投递，失败返回错误；核心层不做重试。
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}

// Status 发信渠道连接状态
type Status struct {
	Connected bool   `json:"connected"`
	Email     string `json:"email,omitempty"`
}

// FormatFrom 拼装 From 头，带显示名时使用 "Name <addr>" 形式
func FormatFrom(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("UTF-8", name), addr)
}

// BuildMIME 构造最小可用的 RFC 822 报文（HTML 正文）
func BuildMIME(msg *Message) string {
	var b strings.Builder

	b.WriteString("From: " + FormatFrom(msg.FromName, msg.From) + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + encodeSubject(msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")
	b.WriteString(wrapBase64(msg.HTML))

	return b.String()
}

// encodeSubject 非 ASCII 主题按 RFC 2047 编码
func encodeSubject(subject string) string {
	return mime.QEncoding.Encode("UTF-8", subject)
}

// wrapBase64 正文 base64 编码并按 76 列折行
func wrapBase64(body string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(body))

	var b strings.Builder
	for len(encoded) > 76 {
		b.WriteString(encoded[:76])
		b.WriteString("\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded)
	b.WriteString("\r\n")

	return b.String()
}
