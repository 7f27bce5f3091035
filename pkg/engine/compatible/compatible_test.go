package compatible

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/novel-translator/pkg/engine"
)

func newServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		user := body.Messages[len(body.Messages)-1].Content
		if user == "fail" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   body.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "[" + user + "]"},
			}},
			"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 4, "total_tokens": 9},
		})
	}))
}

func TestBatchTranslateWithUsage(t *testing.T) {
	var hits int32
	server := newServer(t, &hits)
	defer server.Close()

	e, err := New(engine.Options{BaseURL: server.URL + "/v1/", Model: "test-model"})
	require.NoError(t, err)

	ut := e.(engine.UsageTranslator)
	out, tokens, err := ut.BatchTranslateWithUsage(context.Background(), []string{"甲", "乙"})
	require.NoError(t, err)
	assert.Equal(t, []string{"[甲]", "[乙]"}, out)
	assert.Equal(t, []int{9, 9}, tokens)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestTranslateError(t *testing.T) {
	var hits int32
	server := newServer(t, &hits)
	defer server.Close()

	e, err := New(engine.Options{BaseURL: server.URL + "/v1/"})
	require.NoError(t, err)

	_, err = e.BatchTranslate(context.Background(), []string{"ok", "fail"})
	var engineErr *engine.Error
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, http.StatusBadRequest, engineErr.Code)
	assert.Equal(t, Name, e.GetName())
}
