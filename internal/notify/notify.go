// Package notify fans out "conversation updated" events to observers: the
// in-process hub feeds WebSocket subscribers, the Redis notifier publishes
// to a pub/sub channel keyed by conversation id for external consumers.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/quorumhq/quorum/types"
	"go.uber.org/zap"
)

// Event is one conversation change notification. The conversation is a
// snapshot safe to read concurrently.
type Event struct {
	ConversationID string              `json:"conversation_id"`
	Conversation   *types.Conversation `json:"conversation"`
	At             time.Time           `json:"at"`
}

// Notifier receives conversation change events.
type Notifier interface {
	ConversationChanged(ctx context.Context, conv *types.Conversation)
}

// Fanout delivers each event to every child notifier.
type Fanout []Notifier

// ConversationChanged implements Notifier.
func (f Fanout) ConversationChanged(ctx context.Context, conv *types.Conversation) {
	for _, n := range f {
		n.ConversationChanged(ctx, conv)
	}
}

// Hub is the in-process notifier: observers subscribe per conversation id
// and receive events on a buffered channel. Slow subscribers drop events
// rather than block the engine.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	nextID int
	logger *zap.Logger
}

// NewHub creates an in-process notification hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[string]map[int]chan Event),
		logger: logger.With(zap.String("component", "notify_hub")),
	}
}

// Subscribe registers an observer for one conversation id. The returned
// cancel function must be called to release the subscription.
func (h *Hub) Subscribe(conversationID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 16)
	id := h.nextID
	h.nextID++

	if h.subs[conversationID] == nil {
		h.subs[conversationID] = make(map[int]chan Event)
	}
	h.subs[conversationID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[conversationID]; ok {
			if c, ok := set[id]; ok {
				delete(set, id)
				close(c)
			}
			if len(set) == 0 {
				delete(h.subs, conversationID)
			}
		}
	}
	return ch, cancel
}

// ConversationChanged implements Notifier.
func (h *Hub) ConversationChanged(_ context.Context, conv *types.Conversation) {
	ev := Event{
		ConversationID: conv.ID,
		Conversation:   conv,
		At:             time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[conv.ID] {
		select {
		case ch <- ev:
		default:
			h.logger.Debug("subscriber channel full, event dropped",
				zap.String("conversation_id", conv.ID))
		}
	}
}
