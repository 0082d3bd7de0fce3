package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quorumhq/quorum/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenAICompatGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-chat", req.Model)
		require.NotEmpty(t, req.Messages)
		assert.Equal(t, "system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello back"}},
			},
			"usage": map[string]any{"total_tokens": 42},
		})
	}))
	defer srv.Close()

	c := NewOpenAICompat(OpenAICompatConfig{BaseURL: srv.URL, APIKey: "test-key"}, zap.NewNop())
	res, err := c.Generate(context.Background(), &GenerateRequest{
		Model:        "deepseek-chat",
		SystemPrompt: "be brief",
		Prompt:       "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello back", res.Text)
	assert.Equal(t, 42, res.TokensUsed)
}

func TestOpenAICompatGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewOpenAICompat(OpenAICompatConfig{BaseURL: srv.URL}, zap.NewNop())
	_, err := c.Generate(context.Background(), &GenerateRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)

	var te *types.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.ErrAgentCall, te.Code)
	assert.True(t, te.Retryable)
}
