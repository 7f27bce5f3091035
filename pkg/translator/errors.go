package translator

import (
	"errors"
	"fmt"

	"github.com/nerdneilsfield/novel-translator/pkg/cost"
)

// 预定义错误
var (
	// ErrInvalidConfig 配置缺失或无效
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBudgetExceeded 估算费用超过预算
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrEngineFailed 引擎调用失败，只影响当前批次
	ErrEngineFailed = errors.New("engine call failed")

	// ErrInterrupted 翻译被中断，进度已保存
	ErrInterrupted = errors.New("translation interrupted")

	// ErrDocumentLocked 同一文档已有翻译任务在运行
	ErrDocumentLocked = errors.New("document is locked by another translator")
)

// ConfigError 配置错误
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Message)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// Is 使 errors.Is(err, ErrInvalidConfig) 成立
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError 创建配置错误
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// BudgetExceededError 预算超限
type BudgetExceededError struct {
	Estimate cost.Estimate
	Limit    float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("estimated cost %.2f %s exceeds budget limit %.2f %s",
		e.Estimate.Cost, e.Estimate.Currency, e.Limit, e.Estimate.Currency)
}

// Is 使 errors.Is(err, ErrBudgetExceeded) 成立
func (e *BudgetExceededError) Is(target error) bool {
	return target == ErrBudgetExceeded
}

// EngineError 某个批次的引擎错误
type EngineError struct {
	Engine       string
	Batch        int
	ParagraphIDs []int
	Cause        error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s failed on batch %d (%d paragraphs): %v",
		e.Engine, e.Batch, len(e.ParagraphIDs), e.Cause)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is 使 errors.Is(err, ErrEngineFailed) 成立
func (e *EngineError) Is(target error) bool {
	return target == ErrEngineFailed
}
