package agent

import (
	"context"
	"strings"

	"github.com/quorumhq/quorum/llm"
	"github.com/quorumhq/quorum/search"
	"github.com/quorumhq/quorum/types"
	"go.uber.org/zap"
)

// searchResultLimit caps how many hits are injected into a prompt.
const searchResultLimit = 5

// Agent binds an immutable spec to the model-call primitive.
type Agent struct {
	spec     types.AgentSpec
	client   llm.Client
	searcher search.Provider
	logger   *zap.Logger
}

// New creates an agent from a spec and a client.
func New(spec types.AgentSpec, client llm.Client, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		spec:   spec,
		client: client,
		logger: logger.With(zap.String("component", "agent"), zap.String("agent_id", spec.ID)),
	}
}

// WithSearch attaches a web-search provider. It only has an effect on
// agents that declare the search capability.
func (a *Agent) WithSearch(p search.Provider) *Agent {
	a.searcher = p
	return a
}

// ID returns the agent id.
func (a *Agent) ID() string { return a.spec.ID }

// Name returns the display name.
func (a *Agent) Name() string { return a.spec.Name }

// Model returns the underlying model identifier.
func (a *Agent) Model() string { return a.spec.Model }

// Spec returns the full registration.
func (a *Agent) Spec() types.AgentSpec { return a.spec }

// HasCapability reports whether the agent declares the capability.
func (a *Agent) HasCapability(c types.Capability) bool { return a.spec.HasCapability(c) }

// Reply produces a text reply to prompt given optional prior context.
// The call is a suspension point; failures are returned, never swallowed.
// Search-capable agents with an attached provider get fresh search
// results injected into the prompt, recorded in the tool audit trail.
func (a *Agent) Reply(ctx context.Context, prompt string, history []types.Message) (*llm.GenerateResult, error) {
	augmented, toolUse := a.augmentWithSearch(ctx, prompt)

	res, err := a.client.Generate(ctx, &llm.GenerateRequest{
		Model:        a.spec.Model,
		SystemPrompt: a.spec.SystemPrompt,
		Prompt:       augmented,
		History:      history,
	})
	if err != nil {
		a.logger.Warn("agent reply failed", zap.Error(err))
		return nil, types.NewError(types.ErrAgentCall, "agent "+a.spec.ID+" reply failed").WithCause(err)
	}
	if toolUse != nil {
		res.ToolsUsed = append(res.ToolsUsed, *toolUse)
	}
	return res, nil
}

// augmentWithSearch prepends web results to the prompt. Search failures
// degrade to the bare prompt; the model call still happens.
func (a *Agent) augmentWithSearch(ctx context.Context, prompt string) (string, *types.ToolUse) {
	if a.searcher == nil || !a.spec.HasCapability(types.CapabilitySearch) {
		return prompt, nil
	}

	results, err := a.searcher.Search(ctx, prompt, searchResultLimit)
	if err != nil {
		a.logger.Warn("web search failed, replying without results", zap.Error(err))
		return prompt, nil
	}
	if len(results) == 0 {
		return prompt, nil
	}

	var b strings.Builder
	b.WriteString("Web search results:\n")
	for _, r := range results {
		b.WriteString("- ")
		b.WriteString(r.Title)
		b.WriteString(" (")
		b.WriteString(r.URL)
		b.WriteString(")")
		if r.Snippet != "" {
			b.WriteString(": ")
			b.WriteString(r.Snippet)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(prompt)

	return b.String(), &types.ToolUse{
		Tool:    "web_search",
		Input:   prompt,
		Summary: results[0].Title,
	}
}
