// Package openai 实现基于 OpenAI Chat Completions 的翻译引擎。
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nerdneilsfield/novel-translator/pkg/cost"
	"github.com/nerdneilsfield/novel-translator/pkg/engine"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/retry"
)

const (
	// Name 引擎名称
	Name = "openai"
	// DefaultModel 默认模型
	DefaultModel = "gpt-3.5-turbo"
	// DefaultTemperature 默认温度
	DefaultTemperature = 0.3
)

// ChatCompleter 聊天补全客户端
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Engine OpenAI 翻译引擎
type Engine struct {
	client       ChatCompleter
	model        string
	temperature  float32
	systemPrompt string
	concurrency  int
	retrier      *retry.Retrier
	rate         cost.Rate
	logger       *zap.Logger
}

var _ engine.UsageTranslator = (*Engine)(nil)

// New 创建 OpenAI 引擎
func New(opts engine.Options) (engine.Engine, error) {
	opts = opts.WithDefaults()
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s: %w (set OPENAI_API_KEY)", Name, engine.ErrMissingAPIKey)
	}

	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	} else {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	return NewWithClient(goopenai.NewClientWithConfig(cfg), opts), nil
}

// NewWithClient 使用给定客户端创建引擎
func NewWithClient(client ChatCompleter, opts engine.Options) *Engine {
	opts = opts.WithDefaults()

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	prompt := engine.SystemPrompt(opts.SystemPrompt, opts.TargetLanguage)

	retryConfig := retry.DefaultConfig()
	retryConfig.MaxRetries = opts.MaxRetries

	return &Engine{
		client:       client,
		model:        model,
		temperature:  temperature,
		systemPrompt: prompt,
		concurrency:  opts.Concurrency,
		retrier:      retry.New(retryConfig, opts.Logger),
		rate:         cost.DefaultRates()[Name],
		logger:       opts.Logger.Named(Name),
	}
}

// Translate 翻译单段文本
func (e *Engine) Translate(ctx context.Context, text string) (string, error) {
	out, _, err := e.translate(ctx, text)
	return out, err
}

// BatchTranslate 并发翻译一批文本，结果保持输入顺序
func (e *Engine) BatchTranslate(ctx context.Context, texts []string) ([]string, error) {
	out, _, err := e.BatchTranslateWithUsage(ctx, texts)
	return out, err
}

// BatchTranslateWithUsage 并发翻译一批文本，同时返回每段文本的 token 用量
func (e *Engine) BatchTranslateWithUsage(ctx context.Context, texts []string) ([]string, []int, error) {
	results := make([]string, len(texts))
	tokens := make([]int, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			out, used, err := e.translate(gctx, text)
			if err != nil {
				return err
			}
			results[i] = out
			tokens[i] = used
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, tokens, nil
}

func (e *Engine) translate(ctx context.Context, text string) (string, int, error) {
	if strings.TrimSpace(text) == "" {
		return text, 0, nil
	}

	req := goopenai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: e.temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: e.systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: text},
		},
	}

	var resp goopenai.ChatCompletionResponse
	err := e.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = e.client.CreateChatCompletion(ctx, req)
		return classifyError(err)
	})
	if err != nil {
		return "", 0, err
	}

	if len(resp.Choices) == 0 {
		return "", 0, engine.NewError(Name, 0, "no choices returned", engine.ErrEmptyResponse)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", 0, engine.NewError(Name, 0, "empty completion", engine.ErrEmptyResponse)
	}

	e.logger.Debug("completion finished",
		zap.String("model", e.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return content, resp.Usage.TotalTokens, nil
}

// classifyError 把 SDK 错误转换为带状态码的引擎错误
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		e := engine.NewError(Name, apiErr.HTTPStatusCode, apiErr.Message, err)
		// 额度不足需要用户处理，重试无意义
		if strings.Contains(apiErr.Message, "quota") || strings.Contains(apiErr.Message, "billing") {
			e.Retryable = false
			e.Code = http.StatusPaymentRequired
		}
		return e
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return engine.NewError(Name, reqErr.HTTPStatusCode, "request failed", err)
	}
	return err
}

// GetName 返回引擎名称
func (e *Engine) GetName() string {
	return Name
}

// EstimateCost 按 token 估算费用
func (e *Engine) EstimateCost(text string) float64 {
	return cost.Round(e.rate.Price(utf8.RuneCountInString(text)))
}
