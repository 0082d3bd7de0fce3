package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quorumhq/quorum/agent"
	"github.com/quorumhq/quorum/internal/metrics"
	"github.com/quorumhq/quorum/types"
)

// Dispatcher executes decisions against the conversation state. Every
// branch records the moderator's reasoning first, then applies the
// action's state transition and message sequence.
type Dispatcher struct {
	store    *Store
	registry *agent.Registry
	engine   *DecisionEngine
	prompts  *PromptBuilder
	metrics  *metrics.Collector
	logger   *zap.Logger

	// maxHops bounds a single dispatch chain (query-bot feeding the next
	// decision). The moderator terminates well before this in practice.
	maxHops int
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(store *Store, registry *agent.Registry, engine *DecisionEngine, prompts *PromptBuilder, m *metrics.Collector, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:    store,
		registry: registry,
		engine:   engine,
		prompts:  prompts,
		metrics:  m,
		logger:   logger.With(zap.String("component", "dispatcher")),
		maxHops:  20,
	}
}

// Execute applies one decision to the conversation. Specialist and
// moderator failures surface as system messages in the transcript rather
// than as returned errors; only store-level failures propagate.
func (d *Dispatcher) Execute(ctx context.Context, convID string, dec *types.Decision) error {
	return d.execute(ctx, convID, dec, 0)
}

func (d *Dispatcher) execute(ctx context.Context, convID string, dec *types.Decision, hop int) error {
	if err := dec.Validate(); err != nil {
		return err
	}
	if hop >= d.maxHops {
		d.logger.Warn("dispatch chain exceeded hop limit", zap.String("conversation_id", convID))
		return d.synthesize(ctx, convID)
	}

	moderator := d.registry.Moderator()
	if dec.Reasoning != "" {
		thinking := types.NewModeratorMessage(convID, types.TypeModeratorThinking, dec.Reasoning, moderator.Model())
		if err := d.store.AppendMessage(ctx, convID, thinking); err != nil {
			return err
		}
	}

	switch dec.Action {
	case types.ActionAskUser:
		return d.askUser(ctx, convID, dec)
	case types.ActionQueryBot:
		return d.queryBot(ctx, convID, dec, hop)
	case types.ActionSynthesizeReport:
		return d.synthesize(ctx, convID)
	case types.ActionContinueResearch:
		return d.continueResearch(ctx, convID, hop)
	default:
		return types.NewError(types.ErrInvalidDecision, "unhandled action "+string(dec.Action))
	}
}

func (d *Dispatcher) askUser(ctx context.Context, convID string, dec *types.Decision) error {
	err := d.store.Mutate(ctx, convID, func(conv *types.Conversation) error {
		conv.Status = types.StatusGatheringContext
		conv.CurrentPhase = "waiting for input"
		conv.ActiveBot = ""
		return nil
	})
	if err != nil {
		return err
	}
	question := types.NewModeratorMessage(convID, types.TypeClarifyingQuestion, dec.Content, d.registry.Moderator().Model())
	if err := d.store.AppendMessage(ctx, convID, question); err != nil {
		return err
	}
	return d.store.PushPendingQuestions(ctx, convID, dec.NextSteps...)
}

func (d *Dispatcher) queryBot(ctx context.Context, convID string, dec *types.Decision, hop int) error {
	bot, ok := d.registry.Bot(dec.Target)
	if !ok {
		// Unknown target from the moderator: log and abort the turn. The
		// conversation stays intact for the user's next input.
		d.logger.Warn("decision targets unknown agent",
			zap.String("conversation_id", convID),
			zap.String("target", dec.Target),
		)
		return nil
	}

	err := d.store.Mutate(ctx, convID, func(conv *types.Conversation) error {
		conv.Status = types.StatusResearching
		conv.CurrentPhase = "consulting " + bot.Name()
		conv.ActiveBot = bot.ID()
		return nil
	})
	if err != nil {
		return err
	}

	query := types.NewModeratorMessage(convID, types.TypeBotQuery, dec.Content, d.registry.Moderator().Model()).
		WithBot(bot.ID(), bot.Model())
	if err := d.store.AppendMessage(ctx, convID, query); err != nil {
		return err
	}

	snap, _ := d.store.Snapshot(convID)
	start := time.Now()
	res, err := bot.Reply(ctx, dec.Content, snap.Messages)
	if err != nil {
		d.metrics.AgentCall(bot.ID(), "error", time.Since(start))
		note := types.NewSystemMessage(convID, bot.Name()+" could not respond: "+err.Error())
		return d.store.AppendMessage(ctx, convID, note)
	}
	d.metrics.AgentCall(bot.ID(), "ok", time.Since(start))

	reply := types.NewBotResponse(convID, bot.ID(), bot.Model(), res.Text, res.ToolsUsed)
	if err := d.store.AppendMessage(ctx, convID, reply); err != nil {
		return err
	}
	return d.continueFrom(ctx, convID, res.Text, hop)
}

// continueFrom feeds a specialist reply back through the moderator and
// executes whatever it decides next.
func (d *Dispatcher) continueFrom(ctx context.Context, convID, lastReply string, hop int) error {
	snap, ok := d.store.Snapshot(convID)
	if !ok {
		return types.NewError(types.ErrConversationNotFound, "no conversation with id "+convID)
	}
	if snap.Status.Terminal() {
		return nil
	}

	next, err := d.engine.ProcessBotResponse(ctx, snap, lastReply)
	if err != nil {
		note := types.NewSystemMessage(convID, "The moderator could not evaluate the last response: "+err.Error())
		return d.store.AppendMessage(ctx, convID, note)
	}
	return d.execute(ctx, convID, next, hop+1)
}

func (d *Dispatcher) continueResearch(ctx context.Context, convID string, hop int) error {
	snap, ok := d.store.Snapshot(convID)
	if !ok {
		return types.NewError(types.ErrConversationNotFound, "no conversation with id "+convID)
	}
	lastReply := snap.Title
	if replies := snap.LastBotResponses(1); len(replies) == 1 {
		lastReply = replies[0].Content
	}
	return d.continueFrom(ctx, convID, lastReply, hop)
}

func (d *Dispatcher) synthesize(ctx context.Context, convID string) error {
	err := d.store.Mutate(ctx, convID, func(conv *types.Conversation) error {
		conv.Status = types.StatusSynthesizing
		conv.CurrentPhase = "preparing report"
		conv.ActiveBot = ""
		return nil
	})
	if err != nil {
		return err
	}

	snap, _ := d.store.Snapshot(convID)
	moderator := d.registry.Moderator()
	prompt := d.prompts.Synthesis(snap.Title, d.prompts.RenderTranscript(snap.Messages))

	start := time.Now()
	res, err := moderator.Reply(ctx, prompt, nil)
	if err != nil {
		d.metrics.AgentCall(moderator.ID(), "error", time.Since(start))
		note := types.NewSystemMessage(convID, "The final report could not be generated: "+err.Error())
		return d.store.AppendMessage(ctx, convID, note)
	}
	d.metrics.AgentCall(moderator.ID(), "ok", time.Since(start))

	report := types.NewModeratorMessage(convID, types.TypeFinalReport, res.Text, moderator.Model())
	if err := d.store.AppendMessage(ctx, convID, report); err != nil {
		return err
	}
	return d.store.Mutate(ctx, convID, func(conv *types.Conversation) error {
		conv.Status = types.StatusCompleted
		conv.CurrentPhase = "complete"
		conv.ActiveBot = ""
		return nil
	})
}
