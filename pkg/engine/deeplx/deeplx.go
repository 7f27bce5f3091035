// Package deeplx 接入自建的 DeepLX 服务。
package deeplx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/nerdneilsfield/novel-translator/pkg/cost"
	"github.com/nerdneilsfield/novel-translator/pkg/engine"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/retry"
)

const (
	// Name 引擎名称
	Name = "deeplx"
	// DefaultURL 默认服务地址
	DefaultURL = "http://localhost:1188/translate"
)

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    string `json:"data"`
}

// Engine DeepLX 引擎
type Engine struct {
	url         string
	accessToken string
	sourceLang  string
	targetLang  string
	client      *retry.HTTPClient
	rate        cost.Rate
}

var _ engine.Engine = (*Engine)(nil)

// New 创建 DeepLX 引擎，APIKey 作为可选的访问令牌
func New(opts engine.Options) (engine.Engine, error) {
	opts = opts.WithDefaults()

	url := opts.BaseURL
	if url == "" {
		url = DefaultURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	retryConfig := retry.DefaultConfig()
	retryConfig.MaxRetries = opts.MaxRetries

	return &Engine{
		url:         url,
		accessToken: opts.APIKey,
		sourceLang:  languageCode(opts.SourceLanguage),
		targetLang:  languageCode(opts.TargetLanguage),
		client:      retry.New(retryConfig, opts.Logger).WrapHTTPClient(httpClient),
		rate:        cost.DefaultRates()[cost.DefaultEngine],
	}, nil
}

// languageCode DeepL 使用大写的语言代码
func languageCode(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return strings.ToUpper(lang)
}

// Translate 翻译单段文本
func (e *Engine) Translate(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(translateRequest{
		Text:       text,
		SourceLang: e.sourceLang,
		TargetLang: e.targetLang,
	})
	if err != nil {
		return "", err
	}

	body, err := e.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if e.accessToken != "" {
			req.Header.Set("Authorization", "Bearer "+e.accessToken)
		}
		return req, nil
	})
	if err != nil {
		var statusErr *retry.StatusError
		if errors.As(err, &statusErr) {
			return "", engine.NewError(Name, statusErr.StatusCode, "request failed", err)
		}
		return "", engine.NewError(Name, 0, "request failed", err)
	}

	var resp translateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", engine.NewError(Name, 0, "invalid response", err)
	}
	if resp.Code != http.StatusOK {
		return "", engine.NewError(Name, resp.Code, fmt.Sprintf("translation failed: %s", resp.Message), nil)
	}
	if resp.Data == "" {
		return "", engine.NewError(Name, 0, "empty translation", engine.ErrEmptyResponse)
	}
	return resp.Data, nil
}

// BatchTranslate 逐段翻译
func (e *Engine) BatchTranslate(ctx context.Context, texts []string) ([]string, error) {
	return engine.SequentialBatch(ctx, texts, e.Translate)
}

// GetName 返回引擎名称
func (e *Engine) GetName() string {
	return Name
}

// EstimateCost 自建服务按默认费率估算
func (e *Engine) EstimateCost(text string) float64 {
	return cost.Round(e.rate.Price(utf8.RuneCountInString(text)))
}
