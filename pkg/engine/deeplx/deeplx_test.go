package deeplx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/novel-translator/pkg/engine"
)

func TestBatchTranslate(t *testing.T) {
	var requests []translateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req translateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		json.NewEncoder(w).Encode(translateResponse{Code: 200, Data: "EN:" + req.Text})
	}))
	defer server.Close()

	e, err := New(engine.Options{BaseURL: server.URL, APIKey: "secret", SourceLanguage: "zh-CN", TargetLanguage: "en"})
	require.NoError(t, err)

	out, err := e.BatchTranslate(context.Background(), []string{"一", "二"})
	require.NoError(t, err)
	assert.Equal(t, []string{"EN:一", "EN:二"}, out)

	require.Len(t, requests, 2)
	assert.Equal(t, "ZH", requests[0].SourceLang)
	assert.Equal(t, "EN", requests[0].TargetLang)
}

func TestServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(translateResponse{Code: 429, Message: "too many requests"})
	}))
	defer server.Close()

	e, err := New(engine.Options{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = e.Translate(context.Background(), "x")
	var engineErr *engine.Error
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, 429, engineErr.Code)
	assert.Contains(t, err.Error(), "too many requests")
}
