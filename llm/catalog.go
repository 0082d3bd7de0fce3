package llm

import (
	"sync"

	"github.com/quorumhq/quorum/types"
	"go.uber.org/zap"
)

// ModelDescriptor describes one selectable model in the catalog.
type ModelDescriptor struct {
	ID             string  `yaml:"id" json:"id"`
	Name           string  `yaml:"name" json:"name"`
	Provider       string  `yaml:"provider" json:"provider"`
	Model          string  `yaml:"model" json:"model"`
	SupportsSearch bool    `yaml:"supports_search" json:"supports_search"`
	Temperature    float32 `yaml:"temperature" json:"temperature,omitempty"`
	MaxTokens      int     `yaml:"max_tokens" json:"max_tokens,omitempty"`
}

// Catalog maps model selection ids to descriptors. Debate participants are
// instantiated from catalog entries at conversation start.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]ModelDescriptor
	order  []string
	logger *zap.Logger
}

// NewCatalog creates a catalog from the given descriptors.
func NewCatalog(descriptors []ModelDescriptor, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		models: make(map[string]ModelDescriptor, len(descriptors)),
		logger: logger.With(zap.String("component", "model_catalog")),
	}
	for _, d := range descriptors {
		if _, exists := c.models[d.ID]; exists {
			c.logger.Warn("duplicate model id in catalog, keeping first", zap.String("id", d.ID))
			continue
		}
		c.models[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	return c
}

// DefaultCatalog returns the built-in model roster.
func DefaultCatalog(logger *zap.Logger) *Catalog {
	return NewCatalog([]ModelDescriptor{
		{ID: "deepseek-chat", Name: "DeepSeek Chat", Provider: "deepseek", Model: "deepseek-chat", SupportsSearch: true, Temperature: 0.7, MaxTokens: 4096},
		{ID: "claude-sonnet", Name: "Claude Sonnet", Provider: "anthropic", Model: "claude-sonnet-4-20250514", Temperature: 0.7, MaxTokens: 4096},
		{ID: "qwen-max", Name: "Qwen Max", Provider: "qwen", Model: "qwen-max", SupportsSearch: true, Temperature: 0.7, MaxTokens: 4096},
		{ID: "glm-4", Name: "GLM-4", Provider: "glm", Model: "glm-4-plus", Temperature: 0.7, MaxTokens: 4096},
		{ID: "kimi-k2", Name: "Kimi K2", Provider: "kimi", Model: "kimi-k2", Temperature: 0.7, MaxTokens: 4096},
		{ID: "gemini-pro", Name: "Gemini Pro", Provider: "gemini", Model: "gemini-2.5-pro", SupportsSearch: true, Temperature: 0.7, MaxTokens: 4096},
	}, logger)
}

// Resolve looks up a model selection id.
func (c *Catalog) Resolve(id string) (ModelDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.models[id]
	return d, ok
}

// Register adds a descriptor to the catalog.
func (c *Catalog) Register(d ModelDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.models[d.ID]; exists {
		return types.NewError(types.ErrDuplicateAgent, "model already registered: "+d.ID)
	}
	c.models[d.ID] = d
	c.order = append(c.order, d.ID)
	c.logger.Info("model registered", zap.String("id", d.ID), zap.String("provider", d.Provider))
	return nil
}

// List returns all descriptors in registration order.
func (c *Catalog) List() []ModelDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ModelDescriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.models[id])
	}
	return out
}
