// Package compatible 通过官方 openai-go SDK 接入兼容 OpenAI 协议的服务，如 DeepSeek、Ollama、vLLM。
package compatible

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/novel-translator/pkg/cost"
	"github.com/nerdneilsfield/novel-translator/pkg/engine"
)

const (
	// Name 引擎名称
	Name = "compatible"
	// DefaultBaseURL 默认指向本地 Ollama 的兼容接口
	DefaultBaseURL = "http://localhost:11434/v1/"
	// DefaultModel 默认模型
	DefaultModel = "qwen2.5:7b"
)

// Engine 兼容 OpenAI 协议的引擎，逐段顺序请求
type Engine struct {
	client       openai.Client
	model        string
	temperature  float64
	systemPrompt string
	rate         cost.Rate
	logger       *zap.Logger
}

var _ engine.UsageTranslator = (*Engine)(nil)

// New 创建引擎。本地服务通常不校验密钥，因此 APIKey 可以为空。
func New(opts engine.Options) (engine.Engine, error) {
	opts = opts.WithDefaults()

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = "none"
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithRequestTimeout(opts.Timeout),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	for k, v := range opts.Headers {
		reqOpts = append(reqOpts, option.WithHeader(k, v))
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	temperature := float64(opts.Temperature)
	if temperature <= 0 {
		temperature = 0.3
	}

	rates := cost.DefaultRates()
	return &Engine{
		client:       openai.NewClient(reqOpts...),
		model:        model,
		temperature:  temperature,
		systemPrompt: engine.SystemPrompt(opts.SystemPrompt, opts.TargetLanguage),
		rate:         rates[cost.DefaultEngine],
		logger:       opts.Logger.Named(Name),
	}, nil
}

// Translate 翻译单段文本
func (e *Engine) Translate(ctx context.Context, text string) (string, error) {
	out, _, err := e.translate(ctx, text)
	return out, err
}

// BatchTranslate 顺序翻译一批文本
func (e *Engine) BatchTranslate(ctx context.Context, texts []string) ([]string, error) {
	return engine.SequentialBatch(ctx, texts, e.Translate)
}

// BatchTranslateWithUsage 顺序翻译一批文本并返回 token 用量
func (e *Engine) BatchTranslateWithUsage(ctx context.Context, texts []string) ([]string, []int, error) {
	results := make([]string, len(texts))
	tokens := make([]int, len(texts))
	for i, text := range texts {
		out, used, err := e.translate(ctx, text)
		if err != nil {
			return nil, nil, err
		}
		results[i] = out
		tokens[i] = used
	}
	return results, tokens, nil
}

func (e *Engine) translate(ctx context.Context, text string) (string, int, error) {
	if strings.TrimSpace(text) == "" {
		return text, 0, nil
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(e.systemPrompt),
			openai.UserMessage(text),
		},
		Model:       openai.ChatModel(e.model),
		Temperature: openai.Float(e.temperature),
	}

	completion, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", 0, engine.NewError(Name, apiErr.StatusCode, "chat completion failed", err)
		}
		return "", 0, engine.NewError(Name, 0, "chat completion failed", err)
	}

	if len(completion.Choices) == 0 {
		return "", 0, engine.NewError(Name, 0, "no choices returned", engine.ErrEmptyResponse)
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", 0, engine.NewError(Name, 0, fmt.Sprintf("empty completion (finish reason %q)", completion.Choices[0].FinishReason), engine.ErrEmptyResponse)
	}

	e.logger.Debug("completion finished",
		zap.String("model", completion.Model),
		zap.Int64("total_tokens", completion.Usage.TotalTokens))

	return content, int(completion.Usage.TotalTokens), nil
}

// GetName 返回引擎名称
func (e *Engine) GetName() string {
	return Name
}

// EstimateCost 按默认字符费率估算
func (e *Engine) EstimateCost(text string) float64 {
	return cost.Round(e.rate.Price(utf8.RuneCountInString(text)))
}
