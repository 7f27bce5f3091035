// Package retry 为引擎的网络请求提供指数退避重试。
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/novel-translator/pkg/engine"
)

// Config 重试配置
type Config struct {
	// MaxRetries 首次请求之后的最大重试次数
	MaxRetries int
	// InitialDelay 第一次重试前的等待时间
	InitialDelay time.Duration
	// MaxDelay 单次等待的上限
	MaxDelay time.Duration
	// BackoffFactor 指数退避因子
	BackoffFactor float64
}

// DefaultConfig 返回默认重试配置：最多重试 3 次，1s 起步，每次翻倍
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Kind 错误分类
type Kind int

const (
	KindNone      Kind = iota
	KindNetwork        // 网络瞬时错误
	KindThrottled      // 429
	KindServer         // 5xx
	KindClient         // 其他 4xx
	KindPermanent      // 不可重试
)

// Retryable 判断该类错误是否值得重试
func (k Kind) Retryable() bool {
	return k == KindNetwork || k == KindThrottled || k == KindServer
}

// Retrier 重试执行器
type Retrier struct {
	config Config
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New 创建重试执行器
func New(config Config, logger *zap.Logger) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BackoffFactor <= 1.0 {
		config.BackoffFactor = 2.0
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultConfig().MaxDelay
	}
	return &Retrier{
		config: config,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Do 执行 fn，可重试的错误按指数退避重试。fn 返回的错误由 Classify 分类。
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		kind := Classify(lastErr)
		if !kind.Retryable() || attempt == r.config.MaxRetries {
			break
		}

		delay := r.Delay(attempt)
		r.logger.Debug("request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// Delay 计算第 attempt 次失败后的等待时间
func (r *Retrier) Delay(attempt int) time.Duration {
	delay := time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt)))
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

// StatusError 非 2xx 的 HTTP 响应
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// Classify 对错误分类
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindPermanent
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode)
	}

	var engineErr *engine.Error
	if errors.As(err, &engineErr) && engineErr.Code != 0 {
		return classifyStatus(engineErr.Code)
	}

	if IsNetworkError(err) {
		return KindNetwork
	}
	return KindPermanent
}

func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindThrottled
	case code >= 500:
		return KindServer
	case code >= 400:
		return KindClient
	default:
		return KindNone
	}
}

var networkPatterns = []string{
	"connection refused",
	"connection reset",
	"connection timed out",
	"timeout",
	"temporary failure",
	"network is unreachable",
	"no such host",
	"broken pipe",
	"i/o timeout",
	"eof",
}

// IsNetworkError 判断是否为网络瞬时错误
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range networkPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// HTTPClient 带重试的 HTTP 客户端。非 2xx 响应被转换为 *StatusError。
type HTTPClient struct {
	client  *http.Client
	retrier *Retrier
}

// WrapHTTPClient 包装 HTTP 客户端
func (r *Retrier) WrapHTTPClient(client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{client: client, retrier: r}
}

// Do 发送请求并在失败时重试，返回成功响应的正文。
// newRequest 每次尝试都会被调用，以便重新生成请求体。
func (c *HTTPClient) Do(ctx context.Context, newRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var body []byte
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		req, err := newRequest(ctx)
		if err != nil {
			return err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
		}
		body = data
		return nil
	})
	return body, err
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
