// Package caiyun 实现彩云小译翻译引擎。
package caiyun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nerdneilsfield/novel-translator/pkg/cost"
	"github.com/nerdneilsfield/novel-translator/pkg/engine"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/retry"
)

const (
	// Name 引擎名称
	Name = "caiyun"
	// DefaultURL 彩云小译 API 地址
	DefaultURL = "http://api.interpreter.caiyunai.com/v1/translator"
	// DefaultRequestInterval 两次请求之间的最小间隔
	DefaultRequestInterval = 500 * time.Millisecond
)

type request struct {
	Source    any    `json:"source"`
	TransType string `json:"trans_type"`
	RequestID string `json:"request_id"`
	Detect    bool   `json:"detect"`
}

type response struct {
	Target  json.RawMessage `json:"target"`
	Message string          `json:"message,omitempty"`
}

// Engine 彩云小译引擎
type Engine struct {
	apiKey    string
	url       string
	transType string
	client    *retry.HTTPClient
	limiter   *rate.Limiter
	rate      cost.Rate
	logger    *zap.Logger
}

var _ engine.Engine = (*Engine)(nil)

// New 创建彩云小译引擎
func New(opts engine.Options) (engine.Engine, error) {
	opts = opts.WithDefaults()
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s: %w (set CAIYUN_API_KEY)", Name, engine.ErrMissingAPIKey)
	}

	url := opts.BaseURL
	if url == "" {
		url = DefaultURL
	}

	interval := opts.RequestInterval
	if interval <= 0 {
		interval = DefaultRequestInterval
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	retryConfig := retry.DefaultConfig()
	retryConfig.MaxRetries = opts.MaxRetries

	return &Engine{
		apiKey:    opts.APIKey,
		url:       url,
		transType: TransType(opts.SourceLanguage, opts.TargetLanguage),
		client:    retry.New(retryConfig, opts.Logger).WrapHTTPClient(httpClient),
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		rate:      cost.DefaultRates()[Name],
		logger:    opts.Logger.Named(Name),
	}, nil
}

// TransType 生成彩云的翻译方向参数，例如 zh2en
func TransType(source, target string) string {
	return langCode(source) + "2" + langCode(target)
}

func langCode(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return "auto"
	}
	return lang
}

// Translate 翻译单段文本
func (e *Engine) Translate(ctx context.Context, text string) (string, error) {
	var out string
	if err := e.call(ctx, text, &out); err != nil {
		return "", err
	}
	return out, nil
}

// BatchTranslate 在一次请求中翻译多段文本
func (e *Engine) BatchTranslate(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}

	var out []string
	if err := e.call(ctx, texts, &out); err != nil {
		return nil, err
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("%s: %w: got %d, want %d", Name, engine.ErrResultMismatch, len(out), len(texts))
	}
	return out, nil
}

func (e *Engine) call(ctx context.Context, source any, target any) error {
	payload, err := json.Marshal(request{
		Source:    source,
		TransType: e.transType,
		RequestID: "novel-translator",
		Detect:    true,
	})
	if err != nil {
		return err
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	body, err := e.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Authorization", "token "+e.apiKey)
		return req, nil
	})
	if err != nil {
		var statusErr *retry.StatusError
		if errors.As(err, &statusErr) {
			return engine.NewError(Name, statusErr.StatusCode, "request failed", err)
		}
		return engine.NewError(Name, 0, "request failed", err)
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return engine.NewError(Name, 0, "invalid response", err)
	}
	if len(resp.Target) == 0 || string(resp.Target) == "null" {
		msg := resp.Message
		if msg == "" {
			msg = engine.ErrEmptyResponse.Error()
		}
		return engine.NewError(Name, 0, msg, engine.ErrEmptyResponse)
	}
	if err := json.Unmarshal(resp.Target, target); err != nil {
		return engine.NewError(Name, 0, "unexpected target type", err)
	}

	e.logger.Debug("caiyun request finished",
		zap.String("trans_type", e.transType),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// GetName 返回引擎名称
func (e *Engine) GetName() string {
	return Name
}

// EstimateCost 按字符数估算费用
func (e *Engine) EstimateCost(text string) float64 {
	return cost.Round(e.rate.Price(utf8.RuneCountInString(text)))
}
