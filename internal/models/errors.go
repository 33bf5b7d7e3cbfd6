package models

import (
	"fmt"
)

// ValidationError 输入校验错误
// 校验失败的事件在评估前被拒绝，由调用方反馈给事件来源
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidationError 创建校验错误
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
