package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quorumhq/quorum/types"
	"go.uber.org/zap"
)

// OpenAICompatConfig configures the OpenAI-compatible chat provider. Most
// hosted providers (DeepSeek, Qwen, GLM, Kimi, OpenRouter) speak this API.
type OpenAICompatConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	APIKey  string        `yaml:"api_key" json:"-"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultOpenAICompatConfig returns default provider settings.
func DefaultOpenAICompatConfig() OpenAICompatConfig {
	return OpenAICompatConfig{
		BaseURL: "https://api.openai.com/v1",
		Timeout: 60 * time.Second,
	}
}

// OpenAICompatClient is a thin chat-completions wrapper. It owns no
// orchestration logic; failures surface as AGENT_CALL_FAILED errors for the
// engine to contain per-turn.
type OpenAICompatClient struct {
	config OpenAICompatConfig
	http   *http.Client
	logger *zap.Logger
}

// NewOpenAICompat creates the provider client.
func NewOpenAICompat(config OpenAICompatConfig, logger *zap.Logger) *OpenAICompatClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultOpenAICompatConfig().Timeout
	}
	return &OpenAICompatClient{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		logger: logger.With(zap.String("component", "llm_openai_compat")),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate implements Client.
func (c *OpenAICompatClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	msgs := make([]chatMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, h := range req.History {
		role := "user"
		if h.Role == types.RoleBot || h.Role == types.RoleModerator {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: h.Content})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrAgentCall, "chat completion request failed").
			WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrAgentCall, "read chat completion response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewError(types.ErrAgentCall,
			fmt.Sprintf("provider returned status %d", resp.StatusCode)).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, types.NewError(types.ErrAgentCall, "decode chat completion response").WithCause(err)
	}
	if parsed.Error != nil {
		return nil, types.NewError(types.ErrAgentCall, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, types.NewError(types.ErrAgentCall, "no choices in chat completion response")
	}

	return &GenerateResult{
		Text:       parsed.Choices[0].Message.Content,
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}
