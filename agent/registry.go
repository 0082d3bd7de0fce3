package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/quorumhq/quorum/types"
	"go.uber.org/zap"
)

// Registry holds the moderator singleton and the mutable specialist roster.
// Debate participants register dynamically at conversation start.
type Registry struct {
	mu        sync.RWMutex
	moderator *Agent
	bots      map[string]*Agent
	order     []string
	logger    *zap.Logger
}

// NewRegistry creates a registry around the given moderator.
func NewRegistry(moderator *Agent, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		moderator: moderator,
		bots:      make(map[string]*Agent),
		logger:    logger.With(zap.String("component", "agent_registry")),
	}
}

// Moderator returns the moderator agent.
func (r *Registry) Moderator() *Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.moderator
}

// AddBot registers a specialist. Duplicate ids are rejected so a debate
// participant is never silently overwritten.
func (r *Registry) AddBot(a *Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bots[a.ID()]; exists {
		return types.NewError(types.ErrDuplicateAgent, "agent already registered: "+a.ID())
	}
	r.bots[a.ID()] = a
	r.order = append(r.order, a.ID())
	r.logger.Info("bot registered",
		zap.String("id", a.ID()),
		zap.String("model", a.Model()),
	)
	return nil
}

// Bot looks up a specialist by id.
func (r *Registry) Bot(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.bots[id]
	return a, ok
}

// Bots returns all specialists in registration order.
func (r *Registry) Bots() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.bots[id])
	}
	return out
}

// BotsWithCapability returns specialists declaring the capability,
// in registration order.
func (r *Registry) BotsWithCapability(c types.Capability) []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Agent
	for _, id := range r.order {
		if r.bots[id].HasCapability(c) {
			out = append(out, r.bots[id])
		}
	}
	return out
}

// DefaultSearchBot returns the designated fallback research target: the
// first search-capable specialist, or the first specialist if none declare
// search.
func (r *Registry) DefaultSearchBot() (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if r.bots[id].HasCapability(types.CapabilitySearch) {
			return r.bots[id], true
		}
	}
	if len(r.order) == 0 {
		return nil, false
	}
	return r.bots[r.order[0]], true
}

// Roster renders the specialist roster for moderator prompts.
func (r *Registry) Roster() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, id := range r.order {
		a := r.bots[id]
		caps := ""
		if a.HasCapability(types.CapabilitySearch) {
			caps = " [web search]"
		}
		fmt.Fprintf(&b, "- %s (id: %s, model: %s)%s: %s\n",
			a.Name(), a.ID(), a.Model(), caps, a.Spec().Description)
	}
	return b.String()
}
