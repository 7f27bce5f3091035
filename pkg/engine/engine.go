// Package engine 定义翻译引擎接口、引擎注册表以及引擎错误。
package engine

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Engine 翻译引擎
type Engine interface {
	// Translate 翻译单段文本
	Translate(ctx context.Context, text string) (string, error)
	// BatchTranslate 翻译一批文本，结果与输入一一对应
	BatchTranslate(ctx context.Context, texts []string) ([]string, error)
	// GetName 返回引擎在注册表中的名称
	GetName() string
	// EstimateCost 估算翻译一段文本的费用
	EstimateCost(text string) float64
}

// UsageTranslator 可以报告 token 用量的引擎
type UsageTranslator interface {
	Engine
	// BatchTranslateWithUsage 与 BatchTranslate 相同，另外返回每段文本消耗的 token 数
	BatchTranslateWithUsage(ctx context.Context, texts []string) ([]string, []int, error)
}

// Options 引擎的通用配置
type Options struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float32
	SystemPrompt    string
	SourceLanguage  string
	TargetLanguage  string
	Timeout         time.Duration
	MaxRetries      int
	RequestInterval time.Duration
	Concurrency     int
	Headers         map[string]string
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// DefaultOptions 返回默认配置
func DefaultOptions() Options {
	return Options{
		SourceLanguage: "zh",
		TargetLanguage: "en",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		Concurrency:    3,
		Logger:         zap.NewNop(),
	}
}

// WithDefaults 用默认值补齐未设置的字段
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.SourceLanguage == "" {
		o.SourceLanguage = d.SourceLanguage
	}
	if o.TargetLanguage == "" {
		o.TargetLanguage = d.TargetLanguage
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

// SequentialBatch 逐条调用 translate 完成批量翻译，任一条失败则整批失败
func SequentialBatch(ctx context.Context, texts []string, translate func(context.Context, string) (string, error)) ([]string, error) {
	results := make([]string, len(texts))
	for i, text := range texts {
		out, err := translate(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = out
	}
	return results, nil
}
