package openai

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/novel-translator/pkg/engine"
)

type mockCompleter struct {
	mock.Mock
	mu       sync.Mutex
	requests []goopenai.ChatCompletionRequest
}

func (m *mockCompleter) CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	args := m.Called(req.Messages[1].Content)
	return args.Get(0).(goopenai.ChatCompletionResponse), args.Error(1)
}

func completion(content string, tokens int) goopenai.ChatCompletionResponse {
	return goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{
			{Message: goopenai.ChatCompletionMessage{Content: content}},
		},
		Usage: goopenai.Usage{TotalTokens: tokens},
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(engine.Options{})
	assert.ErrorIs(t, err, engine.ErrMissingAPIKey)

	e, err := New(engine.Options{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, Name, e.GetName())
}

func TestBatchTranslateKeepsOrder(t *testing.T) {
	client := &mockCompleter{}
	client.On("CreateChatCompletion", "一").Return(completion("one", 10), nil)
	client.On("CreateChatCompletion", "二").Return(completion("two", 11), nil)
	client.On("CreateChatCompletion", "三").Return(completion(" three \n", 12), nil)

	e := NewWithClient(client, engine.Options{TargetLanguage: "en", Concurrency: 2})
	out, tokens, err := e.BatchTranslateWithUsage(context.Background(), []string{"一", "二", "三"})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, out)
	assert.Equal(t, []int{10, 11, 12}, tokens)
	client.AssertExpectations(t)

	require.NotEmpty(t, client.requests)
	req := client.requests[0]
	assert.Equal(t, DefaultModel, req.Model)
	assert.InDelta(t, DefaultTemperature, req.Temperature, 1e-6)
	assert.Equal(t, goopenai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "into English")
	assert.Contains(t, req.Messages[0].Content, "<term></term>")
}

func TestBatchTranslateFailsWholeBatch(t *testing.T) {
	client := &mockCompleter{}
	client.On("CreateChatCompletion", "a").Return(completion("A", 1), nil).Maybe()
	client.On("CreateChatCompletion", "b").Return(goopenai.ChatCompletionResponse{},
		&goopenai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "bad request"})

	e := NewWithClient(client, engine.Options{})
	_, err := e.BatchTranslate(context.Background(), []string{"a", "b"})

	var engineErr *engine.Error
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, http.StatusBadRequest, engineErr.Code)
}

func TestQuotaErrorNotRetried(t *testing.T) {
	client := &mockCompleter{}
	client.On("CreateChatCompletion", "x").Return(goopenai.ChatCompletionResponse{},
		&goopenai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "You exceeded your current quota"})

	e := NewWithClient(client, engine.Options{MaxRetries: 3})
	_, err := e.Translate(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, engine.IsRetryable(err))
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 1)
}

func TestEmptyCompletion(t *testing.T) {
	client := &mockCompleter{}
	client.On("CreateChatCompletion", "x").Return(completion("   ", 3), nil)

	e := NewWithClient(client, engine.Options{})
	_, err := e.Translate(context.Background(), "x")
	assert.ErrorIs(t, err, engine.ErrEmptyResponse)

	out, err := e.Translate(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, "  ", out)
}

func TestCustomPrompt(t *testing.T) {
	client := &mockCompleter{}
	client.On("CreateChatCompletion", "x").Return(completion("y", 1), nil)

	e := NewWithClient(client, engine.Options{
		SystemPrompt:   "Translate to %s, keep it short.",
		TargetLanguage: "ja",
		Model:          "gpt-4o-mini",
		Timeout:        time.Second,
	})
	_, err := e.Translate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Translate to Japanese, keep it short.", client.requests[0].Messages[0].Content)
	assert.Equal(t, "gpt-4o-mini", client.requests[0].Model)
}

func TestEstimateCost(t *testing.T) {
	e := NewWithClient(&mockCompleter{}, engine.Options{})
	// 100000 字符 -> 75000 输入 token, 90000 输出 token
	assert.InDelta(t, 0.17, e.EstimateCost(strings.Repeat("a", 100000)), 1e-9)
	assert.Equal(t, "Korean", engine.LanguageName("ko-KR"))
	assert.Equal(t, "xx", engine.LanguageName("xx"))
}
