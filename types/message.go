package types

import (
	"time"

	"github.com/google/uuid"
)

// Role represents who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleBot       Role = "bot"
	RoleSystem    Role = "system"
)

// MessageType tags a message with its function in the conversation.
type MessageType string

const (
	TypeUserQuestion       MessageType = "user_question"
	TypeClarifyingQuestion MessageType = "clarifying_question"
	TypeUserResponse       MessageType = "user_response"
	TypeUserInterjection   MessageType = "user_interjection"
	TypeBotQuery           MessageType = "bot_query"
	TypeBotResponse        MessageType = "bot_response"
	TypeModeratorThinking  MessageType = "moderator_thinking"
	TypeProgressUpdate     MessageType = "progress_update"
	TypeFinalReport        MessageType = "final_report"
	TypeSystemMessage      MessageType = "system_message"
)

// messageRoles maps each message type to the only role allowed to emit it.
var messageRoles = map[MessageType]Role{
	TypeUserQuestion:       RoleUser,
	TypeClarifyingQuestion: RoleModerator,
	TypeUserResponse:       RoleUser,
	TypeUserInterjection:   RoleUser,
	TypeBotQuery:           RoleModerator,
	TypeBotResponse:        RoleBot,
	TypeModeratorThinking:  RoleModerator,
	TypeProgressUpdate:     RoleModerator,
	TypeFinalReport:        RoleModerator,
	TypeSystemMessage:      RoleSystem,
}

// RoleFor returns the role that is allowed to emit the given message type.
func RoleFor(t MessageType) (Role, bool) {
	r, ok := messageRoles[t]
	return r, ok
}

// ToolUse records one external tool invocation made while producing a message.
type ToolUse struct {
	Tool    string `json:"tool"`
	Input   string `json:"input,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Message is one immutable entry in a conversation's append-only log.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           Role        `json:"role"`
	Type           MessageType `json:"type"`
	Content        string      `json:"content"`
	Timestamp      time.Time   `json:"timestamp"`
	BotID          string      `json:"bot_id,omitempty"`
	ModelName      string      `json:"model_name,omitempty"`
	ToolsUsed      []ToolUse   `json:"tools_used,omitempty"`
}

// NewMessage creates a message with a fresh id and timestamp.
func NewMessage(conversationID string, role Role, t MessageType, content string) Message {
	return Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Type:           t,
		Content:        content,
		Timestamp:      time.Now(),
	}
}

// NewUserQuestion creates the opening user question of a conversation.
func NewUserQuestion(conversationID, content string) Message {
	return NewMessage(conversationID, RoleUser, TypeUserQuestion, content)
}

// NewSystemMessage creates a system notice visible in the transcript.
func NewSystemMessage(conversationID, content string) Message {
	return NewMessage(conversationID, RoleSystem, TypeSystemMessage, content)
}

// NewModeratorMessage creates a moderator message tagged with its model.
func NewModeratorMessage(conversationID string, t MessageType, content, model string) Message {
	m := NewMessage(conversationID, RoleModerator, t, content)
	m.ModelName = model
	return m
}

// NewBotResponse creates a specialist reply tagged with the bot and its model.
func NewBotResponse(conversationID, botID, model, content string, tools []ToolUse) Message {
	m := NewMessage(conversationID, RoleBot, TypeBotResponse, content)
	m.BotID = botID
	m.ModelName = model
	m.ToolsUsed = tools
	return m
}

// WithBot tags the message with the agent it was produced by or sent to.
func (m Message) WithBot(botID, model string) Message {
	m.BotID = botID
	m.ModelName = model
	return m
}

// Validate checks that the message type is consistent with its role.
func (m Message) Validate() error {
	want, ok := messageRoles[m.Type]
	if !ok {
		return NewError(ErrInvalidMessage, "unknown message type: "+string(m.Type))
	}
	if m.Role != want {
		return NewError(ErrInvalidMessage,
			"message type "+string(m.Type)+" requires role "+string(want)+", got "+string(m.Role))
	}
	return nil
}
