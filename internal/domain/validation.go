package domain

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrEmailTooLong     = errors.New("email address too long")
	ErrLocalPartTooLong = errors.New("local part too long (max 64 chars)")
	ErrDomainTooLong    = errors.New("domain too long (max 253 chars)")
	ErrInvalidDomain    = errors.New("invalid domain format")
	ErrPasswordTooShort = errors.New("password too short (min 8 chars)")
	ErrPasswordTooLong  = errors.New("password too long (max 128 chars)")
	ErrUsernameTooShort = errors.New("username too short (min 3 chars)")
	ErrUsernameTooLong  = errors.New("username too long (max 32 chars)")
	ErrInvalidUsername  = errors.New("invalid username format")
	ErrSubjectRequired  = errors.New("subject is required")
	ErrBodyRequired     = errors.New("body is required")
	ErrSubjectTooLong   = errors.New("subject too long (max 500 chars)")
)

// 验证常量
const (
	// RFC 5322 邮箱地址长度限制
	MaxEmailLength     = 254 // 整个邮箱地址最大长度
	MaxLocalPartLength = 64  // 本地部分最大长度(@前面)
	MaxDomainLength    = 253 // 域名最大长度

	// 密码长度限制
	MinPasswordLength = 8
	MaxPasswordLength = 128

	// 用户名长度限制
	MinUsernameLength = 3
	MaxUsernameLength = 32

	// 邮件主题长度限制
	MaxSubjectLength = 500
)

// 正则表达式
var (
	// 域名验证（支持子域名）
	domainRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?(\.[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?)*$`)

	// 用户名验证（必须以字母开头）
	usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]*[a-zA-Z0-9]$|^[a-zA-Z]$`)
)

// ValidateAddress 完整验证收件人邮箱地址
func ValidateAddress(address string) error {
	address = strings.TrimSpace(strings.ToLower(address))
	if address == "" {
		return ErrInvalidEmail
	}

	// 长度检查
	if len(address) > MaxEmailLength {
		return ErrEmailTooLong
	}

	// 使用标准库进行基础格式验证
	if _, err := mail.ParseAddress(address); err != nil {
		return ErrInvalidEmail
	}

	// 分离本地部分和域名
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return ErrInvalidEmail
	}

	localPart := address[:at]
	domain := address[at+1:]

	if len(localPart) > MaxLocalPartLength {
		return ErrLocalPartTooLong
	}

	return ValidateDomain(domain)
}

// ValidateDomain 验证域名部分
func ValidateDomain(domain string) error {
	if domain == "" {
		return ErrInvalidDomain
	}
	if len(domain) > MaxDomainLength {
		return ErrDomainTooLong
	}

	// 必须包含至少一个点（顶级域名）
	if !strings.Contains(domain, ".") {
		return ErrInvalidDomain
	}

	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}

	return nil
}

// ValidateUsername 验证用户名格式
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return ErrUsernameTooShort
	}
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePassword 验证密码强度
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// ValidateSubject 验证邮件主题
func ValidateSubject(subject string) error {
	if strings.TrimSpace(subject) == "" {
		return ErrSubjectRequired
	}
	if len(subject) > MaxSubjectLength {
		return ErrSubjectTooLong
	}
	return nil
}

// ValidateBody 验证邮件正文
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrBodyRequired
	}
	return nil
}
