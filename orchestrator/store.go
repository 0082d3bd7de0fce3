package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quorumhq/quorum/internal/metrics"
	"github.com/quorumhq/quorum/types"
)

// ChangeHook observes every externally visible conversation mutation. The
// conversation passed in is a snapshot; the hook may hold it indefinitely.
type ChangeHook func(ctx context.Context, conv *types.Conversation)

// Store is the in-memory conversation store: the sole owner of
// conversation state. All mutation passes through it, serialized per
// conversation id, and every mutation fires the registered change hook.
//
// Readers get the single stored instance, not a copy; during an in-flight
// turn they may observe partially updated state. That is deliberate.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*types.Conversation
	locks         map[string]*sync.Mutex

	hookMu  sync.RWMutex
	onChange ChangeHook

	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewStore creates an empty store.
func NewStore(m *metrics.Collector, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		conversations: make(map[string]*types.Conversation),
		locks:         make(map[string]*sync.Mutex),
		metrics:       m,
		logger:        logger.With(zap.String("component", "conversation_store")),
	}
}

// OnChange registers the change hook. Later registrations replace earlier
// ones; wrap with a fanout to multiplex.
func (s *Store) OnChange(hook ChangeHook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onChange = hook
}

// NewConversationID generates a fresh conversation id.
func NewConversationID() string {
	return uuid.New().String()
}

// Create registers a new conversation and appends its opening user
// question. An empty id gets generated. The conversation starts in
// gathering_context (guided) or debating (debate mode).
func (s *Store) Create(ctx context.Context, id, userID, question string, debateMode bool, participants []string) (*types.Conversation, types.Message) {
	if id == "" {
		id = NewConversationID()
	}

	status := types.StatusGatheringContext
	phase := "analyzing question"
	if debateMode {
		status = types.StatusDebating
		phase = "debate starting"
	}

	now := time.Now()
	conv := &types.Conversation{
		ID:                id,
		UserID:            userID,
		Title:             question,
		Status:            status,
		CurrentPhase:      phase,
		DebateMode:        debateMode,
		ParticipatingBots: append([]string(nil), participants...),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	initial := types.NewUserQuestion(id, question)
	conv.Messages = append(conv.Messages, initial)

	s.mu.Lock()
	s.conversations[id] = conv
	s.locks[id] = &sync.Mutex{}
	s.mu.Unlock()

	mode := "guided"
	if debateMode {
		mode = "debate"
	}
	s.metrics.ConversationCreated(mode)
	s.logger.Info("conversation created",
		zap.String("conversation_id", id),
		zap.String("user_id", userID),
		zap.Bool("debate_mode", debateMode),
	)
	s.notify(ctx, conv)
	return conv, initial
}

// Get returns the stored conversation instance.
func (s *Store) Get(id string) (*types.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	return conv, ok
}

// Snapshot returns a deep copy of the conversation taken under its lock.
// Readers use this; the live instance is only touched through Mutate.
func (s *Store) Snapshot(id string) (*types.Conversation, bool) {
	s.mu.RLock()
	conv, ok := s.conversations[id]
	lock := s.locks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	lock.Lock()
	defer lock.Unlock()
	return conv.Clone(), true
}

// ListByUser returns snapshots of the user's conversations, newest
// first.
func (s *Store) ListByUser(userID string) []*types.Conversation {
	s.mu.RLock()
	var ids []string
	for id, conv := range s.conversations {
		if conv.UserID == userID {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	var out []*types.Conversation
	for _, id := range ids {
		if snap, ok := s.Snapshot(id); ok {
			out = append(out, snap)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// Mutate runs fn against the conversation under its per-id lock, then
// fires the change hook. This is the required serialization point: no two
// mutations of the same conversation ever interleave.
func (s *Store) Mutate(ctx context.Context, id string, fn func(conv *types.Conversation) error) error {
	s.mu.RLock()
	conv, ok := s.conversations[id]
	lock := s.locks[id]
	s.mu.RUnlock()
	if !ok {
		return types.NewError(types.ErrConversationNotFound, "no conversation with id "+id)
	}

	lock.Lock()
	err := fn(conv)
	if err == nil {
		conv.UpdatedAt = time.Now()
	}
	lock.Unlock()

	if err != nil {
		return err
	}
	s.notify(ctx, conv)
	return nil
}

// AppendMessage appends one message to the conversation's log. The log is
// append-only; timestamps are clamped to keep the sequence non-decreasing.
func (s *Store) AppendMessage(ctx context.Context, id string, msg types.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return s.Mutate(ctx, id, func(conv *types.Conversation) error {
		if last, ok := conv.LastMessage(); ok && msg.Timestamp.Before(last.Timestamp) {
			msg.Timestamp = last.Timestamp
		}
		msg.ConversationID = id
		conv.Messages = append(conv.Messages, msg)
		return nil
	})
}

// SetStatus updates the lifecycle status.
func (s *Store) SetStatus(ctx context.Context, id string, status types.ConversationStatus) error {
	return s.Mutate(ctx, id, func(conv *types.Conversation) error {
		conv.Status = status
		return nil
	})
}

// SetPhase updates the advisory progress string.
func (s *Store) SetPhase(ctx context.Context, id, phase string) error {
	return s.Mutate(ctx, id, func(conv *types.Conversation) error {
		conv.CurrentPhase = phase
		return nil
	})
}

// SetActiveBot records which agent is currently producing a reply; empty
// clears it.
func (s *Store) SetActiveBot(ctx context.Context, id, botID string) error {
	return s.Mutate(ctx, id, func(conv *types.Conversation) error {
		conv.ActiveBot = botID
		return nil
	})
}

// SetDebateRound records the recomputed debate round.
func (s *Store) SetDebateRound(ctx context.Context, id string, round int) error {
	return s.Mutate(ctx, id, func(conv *types.Conversation) error {
		conv.DebateRound = round
		return nil
	})
}

// PushPendingQuestions queues clarifying questions not yet asked.
func (s *Store) PushPendingQuestions(ctx context.Context, id string, questions ...string) error {
	if len(questions) == 0 {
		return nil
	}
	return s.Mutate(ctx, id, func(conv *types.Conversation) error {
		conv.PendingQuestions = append(conv.PendingQuestions, questions...)
		return nil
	})
}

// PopPendingQuestion dequeues the next clarifying question, if any.
func (s *Store) PopPendingQuestion(ctx context.Context, id string) (string, bool) {
	var q string
	var ok bool
	err := s.Mutate(ctx, id, func(conv *types.Conversation) error {
		if len(conv.PendingQuestions) > 0 {
			q = conv.PendingQuestions[0]
			conv.PendingQuestions = conv.PendingQuestions[1:]
			ok = true
		}
		return nil
	})
	if err != nil {
		return "", false
	}
	return q, ok
}

func (s *Store) notify(ctx context.Context, conv *types.Conversation) {
	s.hookMu.RLock()
	hook := s.onChange
	s.hookMu.RUnlock()
	if hook == nil {
		return
	}

	s.mu.RLock()
	lock := s.locks[conv.ID]
	s.mu.RUnlock()

	lock.Lock()
	snapshot := conv.Clone()
	lock.Unlock()

	s.metrics.NotificationFired()
	hook(ctx, snapshot)
}
