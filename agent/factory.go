package agent

import (
	"fmt"

	"github.com/quorumhq/quorum/llm"
	"github.com/quorumhq/quorum/types"
	"go.uber.org/zap"
)

// debateSystemPrompt is the persona template for dynamically created
// debate participants.
const debateSystemPrompt = "You are %s, an independent debate participant. " +
	"Argue from your own analysis. Build on strong points made by others, " +
	"challenge weak ones directly, and never simply restate the consensus."

// Factory creates debate participants from the model catalog at
// conversation start. Produced agents are immutable descriptors with
// generated unique ids.
type Factory struct {
	catalog *llm.Catalog
	client  llm.Client
	logger  *zap.Logger
}

// NewFactory creates a factory.
func NewFactory(catalog *llm.Catalog, client llm.Client, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		catalog: catalog,
		client:  client,
		logger:  logger.With(zap.String("component", "agent_factory")),
	}
}

// DebateTeam instantiates one agent per requested model instance. The scope
// (normally a conversation id fragment) namespaces agent ids so teams from
// different conversations never collide in the registry. Unknown model ids
// are skipped with a warning; the team errors only when nothing could be
// resolved.
func (f *Factory) DebateTeam(scope string, selections []types.ModelSelection) ([]*Agent, error) {
	var team []*Agent
	for _, sel := range selections {
		desc, ok := f.catalog.Resolve(sel.ModelID)
		if !ok {
			f.logger.Warn("unknown model selection skipped", zap.String("model_id", sel.ModelID))
			continue
		}
		count := sel.Count
		if count <= 0 {
			count = 1
		}
		for i := 1; i <= count; i++ {
			id := fmt.Sprintf("%s-%d", desc.ID, i)
			if scope != "" {
				id = scope + "-" + id
			}
			spec := types.AgentSpec{
				ID:          id,
				Name:        desc.Name,
				Description: fmt.Sprintf("debate participant running %s", desc.Model),
				Model:       desc.Model,
			}
			if count > 1 {
				spec.Name = fmt.Sprintf("%s #%d", desc.Name, i)
			}
			spec.SystemPrompt = fmt.Sprintf(debateSystemPrompt, spec.Name)
			if desc.SupportsSearch {
				spec.Capabilities = []types.Capability{types.CapabilitySearch}
			}
			team = append(team, New(spec, f.client, f.logger))
		}
	}
	if len(team) == 0 {
		return nil, types.NewError(types.ErrModelNotFound, "no debate participants could be resolved")
	}
	return team, nil
}
