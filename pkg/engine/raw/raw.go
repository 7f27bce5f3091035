// Package raw 提供不做任何翻译的直通引擎，用于演练流程和测试。
package raw

import (
	"context"

	"github.com/nerdneilsfield/novel-translator/pkg/engine"
)

// Name 引擎名称
const Name = "raw"

// Engine 直通引擎，原样返回输入
type Engine struct{}

var _ engine.Engine = (*Engine)(nil)

// New 创建直通引擎
func New(engine.Options) (engine.Engine, error) {
	return &Engine{}, nil
}

// Translate 原样返回文本
func (e *Engine) Translate(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return text, nil
}

// BatchTranslate 原样返回每段文本
func (e *Engine) BatchTranslate(ctx context.Context, texts []string) ([]string, error) {
	return engine.SequentialBatch(ctx, texts, e.Translate)
}

// GetName 返回引擎名称
func (e *Engine) GetName() string {
	return Name
}

// EstimateCost 直通引擎不产生费用
func (e *Engine) EstimateCost(string) float64 {
	return 0
}
