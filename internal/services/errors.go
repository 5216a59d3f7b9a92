package services

import (
	"errors"
	"fmt"
	"strings"
)

// 业务错误在这里统一定义，handler 层据此决定返回 404 还是 403。
// 邮件发送的错误不在此列，它们在 MailService 内部就被吞掉了。
var (
	ErrNotFound  = errors.New("记录不存在")
	ErrForbidden = errors.New("没有权限执行该操作")
)

// ValidationError 表单校验失败，Fields 按字段存放提示语，用于回填表单
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "提交内容不合法"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return strings.Join(parts, "; ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// IsValidation 判断是否为校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
