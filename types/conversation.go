package types

import "time"

// ConversationStatus is the lifecycle state of a conversation.
//
// Guided flow: gathering_context -> researching <-> synthesizing -> completed.
// Debate flow: debating -> stopped -> completed.
// paused is a terminal-pending state reachable from gathering_context.
type ConversationStatus string

const (
	StatusGatheringContext ConversationStatus = "gathering_context"
	StatusResearching      ConversationStatus = "researching"
	StatusSynthesizing     ConversationStatus = "synthesizing"
	StatusCompleted        ConversationStatus = "completed"
	StatusDebating         ConversationStatus = "debating"
	StatusStopped          ConversationStatus = "stopped"
	StatusPaused           ConversationStatus = "paused"
)

// Terminal reports whether no further turns run in this status.
func (s ConversationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusPaused
}

// Conversation is the unit of work owned by the conversation store.
// The message log is append-only; entries are never reordered or deleted.
type Conversation struct {
	ID           string             `json:"id"`
	UserID       string             `json:"user_id"`
	Title        string             `json:"title"`
	Status       ConversationStatus `json:"status"`
	CurrentPhase string             `json:"current_phase,omitempty"`
	ActiveBot    string             `json:"active_bot,omitempty"`
	Messages     []Message          `json:"messages"`

	PendingQuestions []string `json:"pending_questions,omitempty"`
	ResearchTasks    []string `json:"research_tasks,omitempty"`

	DebateMode        bool     `json:"debate_mode"`
	DebateRound       int      `json:"debate_round,omitempty"`
	ParticipatingBots []string `json:"participating_bots,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BotResponseCount returns how many bot_response messages have been appended.
func (c *Conversation) BotResponseCount() int {
	n := 0
	for i := range c.Messages {
		if c.Messages[i].Type == TypeBotResponse {
			n++
		}
	}
	return n
}

// LastBotResponses returns up to n most recent bot_response messages in order.
func (c *Conversation) LastBotResponses(n int) []Message {
	if n <= 0 {
		return nil
	}
	picked := make([]Message, 0, n)
	for i := len(c.Messages) - 1; i >= 0 && len(picked) < n; i-- {
		if c.Messages[i].Type == TypeBotResponse {
			picked = append(picked, c.Messages[i])
		}
	}
	// Reverse back into chronological order.
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}

// LastMessage returns the most recent message, if any.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Clone returns a deep copy safe to hand to observers outside the store.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = append([]Message(nil), c.Messages...)
	cp.PendingQuestions = append([]string(nil), c.PendingQuestions...)
	cp.ResearchTasks = append([]string(nil), c.ResearchTasks...)
	cp.ParticipatingBots = append([]string(nil), c.ParticipatingBots...)
	return &cp
}
