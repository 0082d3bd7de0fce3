package orchestrator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/quorumhq/quorum/agent"
	"github.com/quorumhq/quorum/internal/metrics"
	"github.com/quorumhq/quorum/types"
)

// Config tunes the orchestrator.
type Config struct {
	Debate DebateConfig `json:"debate" yaml:"debate"`
	// MaxTranscriptTokens caps how much history is rendered into
	// moderator prompts.
	MaxTranscriptTokens int `json:"max_transcript_tokens" yaml:"max_transcript_tokens"`
}

// DefaultConfig returns the stock orchestrator settings.
func DefaultConfig() Config {
	return Config{
		Debate:              DefaultDebateConfig(),
		MaxTranscriptTokens: 8000,
	}
}

// Orchestrator is the engine facade: it owns the store, the moderator's
// decision loop, and the debate scheduler, and exposes the operations the
// transport layer calls.
type Orchestrator struct {
	config     Config
	store      *Store
	registry   *agent.Registry
	factory    *agent.Factory
	engine     *DecisionEngine
	dispatcher *Dispatcher
	debate     *DebateScheduler
	logger     *zap.Logger

	// wg tracks background moderator turns so shutdown can drain them.
	wg sync.WaitGroup
}

// New wires an orchestrator from its collaborators.
func New(config Config, registry *agent.Registry, factory *agent.Factory, m *metrics.Collector, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := NewStore(m, logger)
	prompts := NewPromptBuilder(config.MaxTranscriptTokens, logger)
	engine := NewDecisionEngine(registry, prompts, m, logger)
	return &Orchestrator{
		config:     config,
		store:      store,
		registry:   registry,
		factory:    factory,
		engine:     engine,
		dispatcher: NewDispatcher(store, registry, engine, prompts, m, logger),
		debate:     NewDebateScheduler(store, registry, prompts, m, config.Debate, logger),
		logger:     logger.With(zap.String("component", "orchestrator")),
	}
}

// Store exposes the conversation store to the transport layer.
func (o *Orchestrator) Store() *Store { return o.store }

// OnConversationChanged registers the hook fired after every mutation.
func (o *Orchestrator) OnConversationChanged(hook ChangeHook) {
	o.store.OnChange(hook)
}

// CreateConversation starts a guided research conversation. The
// moderator's initial analysis runs in the background; the created
// conversation is returned immediately.
func (o *Orchestrator) CreateConversation(ctx context.Context, userID, question string) (*types.Conversation, error) {
	convID := NewConversationID()
	conv, _ := o.store.Create(ctx, convID, userID, question, false, nil)
	snapshot := conv.Clone()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runInitialAnalysis(context.WithoutCancel(ctx), convID)
	}()
	return snapshot, nil
}

// CreateDebate starts an autonomous debate between fresh specialist
// instances built from the requested model selections.
func (o *Orchestrator) CreateDebate(ctx context.Context, userID, topic string, selections []types.ModelSelection) (*types.Conversation, error) {
	convID := NewConversationID()

	team, err := o.factory.DebateTeam(debateScope(convID), selections)
	if err != nil {
		return nil, err
	}
	participants := make([]string, 0, len(team))
	for _, member := range team {
		if err := o.registry.AddBot(member); err != nil {
			return nil, err
		}
		participants = append(participants, member.ID())
	}

	conv, _ := o.store.Create(ctx, convID, userID, topic, true, participants)
	snapshot := conv.Clone()
	o.debate.Start(context.WithoutCancel(ctx), convID)
	return snapshot, nil
}

// debateScope derives the id prefix that keeps one debate's specialist
// instances distinct from every other conversation's.
func debateScope(convID string) string {
	if len(convID) > 8 {
		return convID[:8]
	}
	return convID
}

func (o *Orchestrator) runInitialAnalysis(ctx context.Context, convID string) {
	snap, ok := o.store.Snapshot(convID)
	if !ok {
		return
	}
	dec, err := o.engine.AnalyzeQuestion(ctx, snap)
	if err != nil {
		note := types.NewSystemMessage(convID, "The moderator could not analyze the question: "+err.Error())
		if appendErr := o.store.AppendMessage(ctx, convID, note); appendErr != nil {
			o.logger.Error("record analysis failure", zap.String("conversation_id", convID), zap.Error(appendErr))
		}
		return
	}
	if err := o.dispatcher.Execute(ctx, convID, dec); err != nil {
		o.logger.Error("execute initial decision", zap.String("conversation_id", convID), zap.Error(err))
	}
}

// ProcessUserMessage records a user reply or interjection and advances
// the conversation. In debate mode the message only joins the transcript;
// in guided mode it either answers a pending clarifying question or feeds
// the moderator's next turn.
func (o *Orchestrator) ProcessUserMessage(ctx context.Context, convID string, msgType types.MessageType, content string) error {
	if msgType != types.TypeUserResponse && msgType != types.TypeUserInterjection {
		return types.NewError(types.ErrInvalidMessage, "users may only send responses and interjections")
	}
	snap, ok := o.store.Snapshot(convID)
	if !ok {
		return types.NewError(types.ErrConversationNotFound, "no conversation with id "+convID)
	}
	if snap.Status == types.StatusCompleted || snap.Status == types.StatusPaused {
		return types.NewError(types.ErrInvalidStatus, "conversation no longer accepts input")
	}

	msg := types.NewMessage(convID, types.RoleUser, msgType, content)
	if err := o.store.AppendMessage(ctx, convID, msg); err != nil {
		return err
	}
	if snap.DebateMode {
		return nil
	}

	if snap.Status == types.StatusGatheringContext {
		if next, ok := o.store.PopPendingQuestion(ctx, convID); ok {
			question := types.NewModeratorMessage(convID, types.TypeClarifyingQuestion, next, o.registry.Moderator().Model())
			return o.store.AppendMessage(ctx, convID, question)
		}
		// All clarifications answered: analyze the enriched question.
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.runInitialAnalysis(context.WithoutCancel(ctx), convID)
		}()
		return nil
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.dispatcher.continueFrom(context.WithoutCancel(ctx), convID, content, 0); err != nil {
			o.logger.Error("process user message", zap.String("conversation_id", convID), zap.Error(err))
		}
	}()
	return nil
}

// PauseConversation parks a guided conversation that is waiting for the
// user. Paused conversations accept no further input.
func (o *Orchestrator) PauseConversation(ctx context.Context, convID string) error {
	return o.store.Mutate(ctx, convID, func(c *types.Conversation) error {
		if c.Status != types.StatusGatheringContext {
			return types.NewError(types.ErrInvalidStatus, "only conversations awaiting input can be paused")
		}
		c.Status = types.StatusPaused
		c.CurrentPhase = "paused"
		c.ActiveBot = ""
		return nil
	})
}

// StopDebate halts a running debate. Stopping twice is a no-op.
func (o *Orchestrator) StopDebate(ctx context.Context, convID string) error {
	return o.debate.Stop(ctx, convID)
}

// ResumeDebate restarts a stopped debate where the rotation left off.
func (o *Orchestrator) ResumeDebate(ctx context.Context, convID string) error {
	return o.debate.Resume(context.WithoutCancel(ctx), convID)
}

// ConcludeDebate stops the rotation and synthesizes the final report.
func (o *Orchestrator) ConcludeDebate(ctx context.Context, convID string) (string, error) {
	return o.debate.Conclude(ctx, convID)
}

// GetConversation returns a snapshot of the conversation.
func (o *Orchestrator) GetConversation(convID string) (*types.Conversation, error) {
	snap, ok := o.store.Snapshot(convID)
	if !ok {
		return nil, types.NewError(types.ErrConversationNotFound, "no conversation with id "+convID)
	}
	return snap, nil
}

// ListConversations returns snapshots of the user's conversations,
// newest first.
func (o *Orchestrator) ListConversations(userID string) []*types.Conversation {
	return o.store.ListByUser(userID)
}

// Wait blocks until in-flight background moderator turns finish.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Close cancels debate timers and waits for in-flight moderator turns.
func (o *Orchestrator) Close() {
	o.debate.Close()
	o.wg.Wait()
}
