package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func debateConv() *Conversation {
	c := &Conversation{
		ID:                "conv-1",
		UserID:            "user-1",
		Title:             "tabs vs spaces?",
		Status:            StatusDebating,
		DebateMode:        true,
		ParticipatingBots: []string{"a", "b"},
	}
	for i, bot := range []string{"a", "b", "a"} {
		m := NewBotResponse(c.ID, bot, "model-"+bot, "point "+string(rune('0'+i)), nil)
		c.Messages = append(c.Messages, m)
		c.Messages = append(c.Messages, NewSystemMessage(c.ID, "noise"))
	}
	return c
}

func TestBotResponseCount(t *testing.T) {
	c := debateConv()
	assert.Equal(t, 3, c.BotResponseCount())
	assert.Equal(t, 0, (&Conversation{}).BotResponseCount())
}

func TestLastBotResponses(t *testing.T) {
	c := debateConv()

	last2 := c.LastBotResponses(2)
	require.Len(t, last2, 2)
	assert.Equal(t, "b", last2[0].BotID)
	assert.Equal(t, "a", last2[1].BotID)

	// Asking for more than exist returns all, still chronological.
	all := c.LastBotResponses(10)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].BotID)
	assert.True(t, !all[2].Timestamp.Before(all[0].Timestamp))

	assert.Nil(t, c.LastBotResponses(0))
}

func TestConversationClone(t *testing.T) {
	c := debateConv()
	cp := c.Clone()

	require.Equal(t, c.ID, cp.ID)
	require.Len(t, cp.Messages, len(c.Messages))

	cp.Messages[0].Content = "mutated"
	cp.ParticipatingBots[0] = "z"
	assert.NotEqual(t, c.Messages[0].Content, cp.Messages[0].Content)
	assert.Equal(t, "a", c.ParticipatingBots[0])
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusStopped.Terminal())
	assert.True(t, StatusPaused.Terminal())
	assert.False(t, StatusDebating.Terminal())
	assert.False(t, StatusResearching.Terminal())
	assert.False(t, StatusGatheringContext.Terminal())
}
