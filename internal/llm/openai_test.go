package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jurkyy/project-pilot/internal/credential"
	"github.com/Jurkyy/project-pilot/internal/project"
)

func newCompletionServer(t *testing.T, status int, body any) (*httptest.Server, *map[string]any) {
	t.Helper()
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test0123456789abcdefghij", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestOpenAITransport_Complete(t *testing.T) {
	srv, captured := newCompletionServer(t, http.StatusOK, map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-test",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": "### FILE: main.go"},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})

	tr := NewOpenAITransport(OpenAIConfig{BaseURL: srv.URL, Model: "gpt-test", MaxTokens: 100})
	c, err := tr.Complete(context.Background(), testKey(t), Compose(project.Request{Description: "a url shortener", Language: "go"}))
	require.NoError(t, err)

	assert.Equal(t, "### FILE: main.go", c.Text)
	assert.Equal(t, "stop", c.FinishReason)
	assert.Equal(t, 15, c.Usage.TotalTokens)

	assert.Equal(t, "gpt-test", (*captured)["model"])
	assert.EqualValues(t, 100, (*captured)["max_tokens"])
	msgs, ok := (*captured)["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestOpenAITransport_ErrorStatuses(t *testing.T) {
	tests := []struct {
		code      int
		errCode   string
		status    Status
		retryable bool
	}{
		{http.StatusUnauthorized, "invalid_api_key", StatusInvalidCredential, false},
		{http.StatusTooManyRequests, "rate_limit_exceeded", StatusRateLimited, true},
		{http.StatusTooManyRequests, "insufficient_quota", StatusRateLimited, false},
		{http.StatusInternalServerError, "server_error", StatusTransportError, true},
	}
	for _, tt := range tests {
		t.Run(tt.errCode, func(t *testing.T) {
			srv, _ := newCompletionServer(t, tt.code, map[string]any{
				"error": map[string]any{"message": "failure", "type": "error", "code": tt.errCode},
			})
			tr := NewOpenAITransport(OpenAIConfig{BaseURL: srv.URL})

			_, err := tr.Complete(context.Background(), testKey(t), Query{Messages: []Message{{Role: RoleUser, Content: "x"}}})
			require.Error(t, err)

			status, retryable := Classify(err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.retryable, retryable)
			assert.NotContains(t, err.Error(), "sk-test0123456789abcdefghij")
		})
	}
}

func TestOpenAITransport_EmptyChoices(t *testing.T) {
	srv, _ := newCompletionServer(t, http.StatusOK, map[string]any{"id": "x", "choices": []any{}})
	tr := NewOpenAITransport(OpenAIConfig{BaseURL: srv.URL})

	_, err := tr.Complete(context.Background(), testKey(t), Query{})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestNewTransport(t *testing.T) {
	tr, err := NewTransport(credential.ProviderDeepSeek, OpenAIConfig{})
	require.NoError(t, err)
	assert.Equal(t, "deepseek", tr.Name())
	assert.Equal(t, DefaultDeepSeekModel, tr.Model())

	tr, err = NewTransport(credential.ProviderOpenAI, OpenAIConfig{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "openai", tr.Name())
	assert.Equal(t, "gpt-4o", tr.Model())

	_, err = NewTransport("anthropic", OpenAIConfig{})
	assert.Error(t, err)
}
