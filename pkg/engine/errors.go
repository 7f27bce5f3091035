package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEngine 注册表中没有该引擎
	ErrUnknownEngine = errors.New("unknown engine")
	// ErrMissingAPIKey 引擎需要 API 密钥
	ErrMissingAPIKey = errors.New("missing api key")
	// ErrEmptyResponse 引擎没有返回内容
	ErrEmptyResponse = errors.New("empty response")
	// ErrResultMismatch 批量结果数量与输入不一致
	ErrResultMismatch = errors.New("batch result count mismatch")
)

// Error 引擎调用错误
type Error struct {
	Engine    string
	Code      int
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Engine, e.Message)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s: [%d] %s", e.Engine, e.Code, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable 判断错误是否值得重试
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// NewError 创建引擎错误
func NewError(engine string, code int, message string, cause error) *Error {
	return &Error{
		Engine:    engine,
		Code:      code,
		Message:   message,
		Retryable: code == 429 || code >= 500,
		Cause:     cause,
	}
}
