package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/quorumhq/quorum/agent"
	"github.com/quorumhq/quorum/llm"
	"github.com/quorumhq/quorum/types"
)

// scriptedClient replies with queued responses in order, repeating the
// last one once the script runs out.
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   []*llm.GenerateRequest
}

func (c *scriptedClient) Generate(_ context.Context, req *llm.GenerateRequest) (*llm.GenerateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	if c.err != nil {
		return nil, c.err
	}
	if len(c.replies) == 0 {
		return &llm.GenerateResult{Text: "ok"}, nil
	}
	text := c.replies[0]
	if len(c.replies) > 1 {
		c.replies = c.replies[1:]
	}
	return &llm.GenerateResult{Text: text}, nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type testEnv struct {
	store      *Store
	registry   *agent.Registry
	prompts    *PromptBuilder
	engine     *DecisionEngine
	dispatcher *Dispatcher
	moderator  *scriptedClient
	alpha      *scriptedClient
	beta       *scriptedClient
}

// newTestEnv builds the engine around a scripted moderator and two
// specialists: alpha (search capable) and beta.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		moderator: &scriptedClient{},
		alpha:     &scriptedClient{replies: []string{"alpha findings"}},
		beta:      &scriptedClient{replies: []string{"beta findings"}},
	}

	mod := agent.New(types.AgentSpec{ID: "moderator", Name: "Moderator", Model: "mod-model"}, env.moderator, nil)
	env.registry = agent.NewRegistry(mod, nil)

	alpha := agent.New(types.AgentSpec{
		ID: "alpha", Name: "Alpha", Model: "alpha-model",
		Capabilities: []types.Capability{types.CapabilitySearch},
	}, env.alpha, nil)
	beta := agent.New(types.AgentSpec{ID: "beta", Name: "Beta", Model: "beta-model"}, env.beta, nil)
	if err := env.registry.AddBot(alpha); err != nil {
		t.Fatalf("add alpha: %v", err)
	}
	if err := env.registry.AddBot(beta); err != nil {
		t.Fatalf("add beta: %v", err)
	}

	env.store = NewStore(nil, nil)
	env.prompts = NewPromptBuilder(0, nil)
	env.engine = NewDecisionEngine(env.registry, env.prompts, nil, nil)
	env.dispatcher = NewDispatcher(env.store, env.registry, env.engine, env.prompts, nil, nil)
	return env
}

// newEmptyRegistry builds a registry holding only a scripted moderator.
func newEmptyRegistry(t *testing.T) *agent.Registry {
	t.Helper()
	mod := agent.New(types.AgentSpec{ID: "moderator", Name: "Moderator", Model: "mod-model"}, &scriptedClient{}, nil)
	return agent.NewRegistry(mod, nil)
}

// newGuidedConv creates a guided conversation and returns its id.
func (env *testEnv) newGuidedConv(t *testing.T, question string) string {
	t.Helper()
	conv, _ := env.store.Create(context.Background(), "", "user-1", question, false, nil)
	return conv.ID
}

// newDebateConv creates a debate conversation over alpha and beta.
func (env *testEnv) newDebateConv(t *testing.T, topic string) string {
	t.Helper()
	conv, _ := env.store.Create(context.Background(), "", "user-1", topic, true, []string{"alpha", "beta"})
	return conv.ID
}

// messagesOfType filters the conversation's log by message type.
func (env *testEnv) messagesOfType(t *testing.T, convID string, mt types.MessageType) []types.Message {
	t.Helper()
	snap, ok := env.store.Snapshot(convID)
	if !ok {
		t.Fatalf("conversation %s not found", convID)
	}
	var out []types.Message
	for _, m := range snap.Messages {
		if m.Type == mt {
			out = append(out, m)
		}
	}
	return out
}

func (env *testEnv) snapshot(t *testing.T, convID string) *types.Conversation {
	t.Helper()
	snap, ok := env.store.Snapshot(convID)
	if !ok {
		t.Fatalf("conversation %s not found", convID)
	}
	return snap
}
