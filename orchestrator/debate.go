package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quorumhq/quorum/agent"
	"github.com/quorumhq/quorum/internal/metrics"
	"github.com/quorumhq/quorum/types"
)

// DebateConfig tunes the round-robin scheduler.
type DebateConfig struct {
	// TurnDelay is the pause between speakers.
	TurnDelay time.Duration `json:"turn_delay" yaml:"turn_delay"`
	// ContextWindow is how many recent specialist turns each speaker sees.
	ContextWindow int `json:"context_window" yaml:"context_window"`
}

// DefaultDebateConfig returns the stock pacing.
func DefaultDebateConfig() DebateConfig {
	return DebateConfig{
		TurnDelay:     3 * time.Second,
		ContextWindow: 6,
	}
}

// DebateScheduler drives autonomous round-robin debates. Each turn picks
// the next speaker from the total specialist reply count, so the rotation
// survives stop and resume without extra bookkeeping.
type DebateScheduler struct {
	store    *Store
	registry *agent.Registry
	prompts  *PromptBuilder
	metrics  *metrics.Collector
	config   DebateConfig
	logger   *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewDebateScheduler creates a scheduler.
func NewDebateScheduler(store *Store, registry *agent.Registry, prompts *PromptBuilder, m *metrics.Collector, config DebateConfig, logger *zap.Logger) *DebateScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TurnDelay <= 0 {
		config.TurnDelay = DefaultDebateConfig().TurnDelay
	}
	if config.ContextWindow <= 0 {
		config.ContextWindow = DefaultDebateConfig().ContextWindow
	}
	return &DebateScheduler{
		store:    store,
		registry: registry,
		prompts:  prompts,
		metrics:  m,
		config:   config,
		logger:   logger.With(zap.String("component", "debate_scheduler")),
		timers:   map[string]*time.Timer{},
	}
}

// Start begins (or resumes) the debate loop for the conversation. The
// first turn fires immediately; subsequent turns are paced by TurnDelay.
func (s *DebateScheduler) Start(ctx context.Context, convID string) {
	s.schedule(ctx, convID, 0)
}

// schedule arms the next turn. The status check inside the callback is
// the single cancellation point: a conversation that is no longer
// debating when its timer fires simply stops rotating.
func (s *DebateScheduler) schedule(ctx context.Context, convID string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[convID]; ok {
		old.Stop()
	}
	s.timers[convID] = time.AfterFunc(delay, s.tick(ctx, convID))
}

// rearm re-arms the next turn only while the conversation still holds a
// timer entry. Stop, Conclude, and Close remove the entry, so a turn that
// was in flight when they ran completes without reviving the loop.
func (s *DebateScheduler) rearm(ctx context.Context, convID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[convID]; !ok {
		return
	}
	s.timers[convID] = time.AfterFunc(s.config.TurnDelay, s.tick(ctx, convID))
}

func (s *DebateScheduler) tick(ctx context.Context, convID string) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		snap, ok := s.store.Snapshot(convID)
		if !ok || snap.Status != types.StatusDebating {
			return
		}
		if err := s.runTurn(ctx, snap); err != nil {
			s.logger.Warn("debate turn failed",
				zap.String("conversation_id", convID),
				zap.Error(err),
			)
		}
		s.rearm(ctx, convID)
	}
}

// runTurn executes one speaker's turn against the given snapshot. A
// specialist failure is recorded in the transcript and the rotation
// continues with the next speaker.
func (s *DebateScheduler) runTurn(ctx context.Context, conv *types.Conversation) error {
	k := len(conv.ParticipatingBots)
	if k == 0 {
		return types.NewError(types.ErrInvalidStatus, "debate has no participants")
	}

	n := conv.BotResponseCount()
	speakerID := conv.ParticipatingBots[n%k]
	speaker, ok := s.registry.Bot(speakerID)
	if !ok {
		return types.NewError(types.ErrUnknownAgent, "participant "+speakerID+" is not registered")
	}

	round := n/k + 1
	err := s.store.Mutate(ctx, conv.ID, func(c *types.Conversation) error {
		c.ActiveBot = speaker.ID()
		c.CurrentPhase = fmt.Sprintf("round %d: %s speaking", round, speaker.Name())
		return nil
	})
	if err != nil {
		return err
	}

	prompt := s.prompts.DebateTurn(conv.Title, s.contextLines(conv), speaker.Name())
	start := time.Now()
	res, err := speaker.Reply(ctx, prompt, nil)
	if err != nil {
		s.metrics.AgentCall(speaker.ID(), "error", time.Since(start))
		note := types.NewSystemMessage(conv.ID, speaker.Name()+" missed their turn: "+err.Error())
		return s.store.AppendMessage(ctx, conv.ID, note)
	}
	s.metrics.AgentCall(speaker.ID(), "ok", time.Since(start))
	s.metrics.DebateTurn()

	reply := types.NewBotResponse(conv.ID, speaker.ID(), speaker.Model(), res.Text, res.ToolsUsed)
	if err := s.store.AppendMessage(ctx, conv.ID, reply); err != nil {
		return err
	}
	// Round is recomputed from the total reply count, ceil((n+1)/k).
	return s.store.SetDebateRound(ctx, conv.ID, (n+1+k-1)/k)
}

// contextLines renders the recent debate turns each speaker argues
// against, oldest first, annotated with display name and model.
func (s *DebateScheduler) contextLines(conv *types.Conversation) []string {
	recent := conv.LastBotResponses(s.config.ContextWindow)
	lines := make([]string, 0, len(recent))
	for _, m := range recent {
		name := m.BotID
		if b, ok := s.registry.Bot(m.BotID); ok {
			name = b.Name()
		}
		if m.ModelName != "" {
			name = fmt.Sprintf("%s (%s)", name, m.ModelName)
		}
		lines = append(lines, name+": "+m.Content)
	}
	return lines
}

// Stop halts the rotation. Stopping an already stopped debate is a no-op
// so repeated requests do not pile up system messages.
func (s *DebateScheduler) Stop(ctx context.Context, convID string) error {
	s.mu.Lock()
	if t, ok := s.timers[convID]; ok {
		t.Stop()
		delete(s.timers, convID)
	}
	s.mu.Unlock()

	// The status check runs inside the mutation's critical section so
	// concurrent stops cannot both win and double-append the notice.
	stopped := false
	err := s.store.Mutate(ctx, convID, func(c *types.Conversation) error {
		if c.Status != types.StatusDebating {
			return nil
		}
		stopped = true
		c.Status = types.StatusStopped
		c.CurrentPhase = "debate stopped"
		c.ActiveBot = ""
		return nil
	})
	if err != nil {
		return err
	}
	if !stopped {
		return nil
	}
	return s.store.AppendMessage(ctx, convID, types.NewSystemMessage(convID, "The debate has been stopped."))
}

// Resume restarts a stopped debate from where the rotation left off.
func (s *DebateScheduler) Resume(ctx context.Context, convID string) error {
	snap, ok := s.store.Snapshot(convID)
	if !ok {
		return types.NewError(types.ErrConversationNotFound, "no conversation with id "+convID)
	}
	if snap.Status != types.StatusStopped {
		return types.NewError(types.ErrInvalidStatus, "conversation is not a stopped debate")
	}

	err := s.store.Mutate(ctx, convID, func(c *types.Conversation) error {
		c.Status = types.StatusDebating
		c.CurrentPhase = "debate resumed"
		return nil
	})
	if err != nil {
		return err
	}
	s.Start(ctx, convID)
	return nil
}

// Conclude stops the rotation and has the moderator synthesize the
// debate into a final report. The report text is returned to the caller.
func (s *DebateScheduler) Conclude(ctx context.Context, convID string) (string, error) {
	s.mu.Lock()
	if t, ok := s.timers[convID]; ok {
		t.Stop()
		delete(s.timers, convID)
	}
	s.mu.Unlock()

	snap, ok := s.store.Snapshot(convID)
	if !ok {
		return "", types.NewError(types.ErrConversationNotFound, "no conversation with id "+convID)
	}

	err := s.store.Mutate(ctx, convID, func(c *types.Conversation) error {
		c.Status = types.StatusSynthesizing
		c.CurrentPhase = "preparing report"
		c.ActiveBot = ""
		return nil
	})
	if err != nil {
		return "", err
	}

	moderator := s.registry.Moderator()
	prompt := s.prompts.DebateSynthesis(snap.Title, s.contextLines(snap))
	start := time.Now()
	res, err := moderator.Reply(ctx, prompt, nil)
	if err != nil {
		s.metrics.AgentCall(moderator.ID(), "error", time.Since(start))
		note := types.NewSystemMessage(convID, "The debate summary could not be generated: "+err.Error())
		if appendErr := s.store.AppendMessage(ctx, convID, note); appendErr != nil {
			return "", appendErr
		}
		return "", err
	}
	s.metrics.AgentCall(moderator.ID(), "ok", time.Since(start))

	report := types.NewModeratorMessage(convID, types.TypeFinalReport, res.Text, moderator.Model())
	if err := s.store.AppendMessage(ctx, convID, report); err != nil {
		return "", err
	}
	err = s.store.Mutate(ctx, convID, func(c *types.Conversation) error {
		c.Status = types.StatusCompleted
		c.CurrentPhase = "complete"
		return nil
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Close cancels all outstanding timers.
func (s *DebateScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
