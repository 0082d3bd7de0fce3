// Package quorum provides a top-level convenience entry point for running
// a moderated multi-agent conversation engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/quorumhq/quorum"
//
//	eng, err := quorum.New(quorum.WithAPIKey(key))
//	eng, err := quorum.New(quorum.WithClient(myClient), quorum.WithModerator("deepseek-chat"))
//
// This wraps the orchestrator, registry, and model catalog wiring done by
// cmd/quorum; use it when embedding the engine in another program.
package quorum

import (
	"go.uber.org/zap"

	"github.com/quorumhq/quorum/agent"
	"github.com/quorumhq/quorum/llm"
	"github.com/quorumhq/quorum/orchestrator"
	"github.com/quorumhq/quorum/search"
	"github.com/quorumhq/quorum/types"
)

const moderatorPrompt = "You are the moderator of a panel of AI research specialists. " +
	"You analyze user questions, plan research, route questions to specialists, and synthesize their " +
	"findings into clear reports. You always answer in the exact JSON format you are asked for."

type options struct {
	baseURL   string
	apiKey    string
	client    llm.Client
	moderator string
	searcher  search.Provider
	logger    *zap.Logger
}

// Option configures the engine created by [New].
type Option func(*options)

// WithBaseURL points the built-in OpenAI-compatible client at a provider.
func WithBaseURL(url string) Option { return func(o *options) { o.baseURL = url } }

// WithAPIKey sets the API key for the built-in client.
func WithAPIKey(key string) Option { return func(o *options) { o.apiKey = key } }

// WithClient supplies a pre-built LLM client, skipping the built-in one.
func WithClient(c llm.Client) Option { return func(o *options) { o.client = c } }

// WithModerator selects the catalog model backing the moderator.
// Defaults to "deepseek-chat".
func WithModerator(modelID string) Option { return func(o *options) { o.moderator = modelID } }

// WithSearch attaches a web search provider to search-capable specialists.
func WithSearch(p search.Provider) Option { return func(o *options) { o.searcher = p } }

// WithLogger sets the logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// New creates an [orchestrator.Orchestrator] with the default model catalog,
// one specialist per catalog model, and a rate-limited OpenAI-compatible
// client unless [WithClient] overrides it.
func New(opts ...Option) (*orchestrator.Orchestrator, error) {
	o := options{moderator: "deepseek-chat"}
	for _, opt := range opts {
		opt(&o)
	}

	catalog := llm.DefaultCatalog(o.logger)
	client := o.client
	if client == nil {
		cfg := llm.DefaultOpenAICompatConfig()
		if o.baseURL != "" {
			cfg.BaseURL = o.baseURL
		}
		cfg.APIKey = o.apiKey
		client = llm.NewRateLimited(llm.NewOpenAICompat(cfg, o.logger), llm.DefaultRateLimitConfig(), o.logger)
	}

	desc, ok := catalog.Resolve(o.moderator)
	if !ok {
		return nil, types.NewError(types.ErrModelNotFound, "moderator model "+o.moderator+" is not in the catalog")
	}
	moderator := agent.New(types.AgentSpec{
		ID:           "moderator",
		Name:         "Moderator",
		Description:  "Coordinates the specialist panel",
		Model:        desc.Model,
		SystemPrompt: moderatorPrompt,
	}, client, o.logger)

	registry := agent.NewRegistry(moderator, o.logger)
	for _, d := range catalog.List() {
		var caps []types.Capability
		if d.SupportsSearch {
			caps = append(caps, types.CapabilitySearch)
		}
		bot := agent.New(types.AgentSpec{
			ID:           d.ID,
			Name:         d.Name,
			Description:  "Research specialist backed by " + d.Name,
			Model:        d.Model,
			SystemPrompt: "You are " + d.Name + ", a research specialist. Answer the moderator's questions thoroughly and cite your sources when you can.",
			Capabilities: caps,
		}, client, o.logger)
		if o.searcher != nil {
			bot = bot.WithSearch(o.searcher)
		}
		if err := registry.AddBot(bot); err != nil {
			return nil, err
		}
	}

	factory := agent.NewFactory(catalog, client, o.logger)
	return orchestrator.New(orchestrator.DefaultConfig(), registry, factory, nil, o.logger), nil
}
