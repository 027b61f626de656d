package domain

import (
	"errors"
	"fmt"
)

// 业务错误分类，服务层统一返回，HTTP 层据此映射状态码
var (
	// ErrValidation 输入校验失败，在落库前拦截
	ErrValidation = errors.New("validation failed")
	// ErrNotFound 资源不存在
	ErrNotFound = errors.New("not found")
	// ErrForbidden 跨用户访问被拒绝
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState 非法状态转换
	ErrInvalidState = errors.New("invalid state transition")
	// ErrProvider 外部发信服务失败
	ErrProvider = errors.New("provider error")
)

// ValidationError 构造携带字段信息的校验错误
func ValidationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ProviderError 包装外部发信服务的失败原因
func ProviderError(err error) error {
	return fmt.Errorf("%w: %v", ErrProvider, err)
}
