package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumhq/quorum/types"
)

func transcriptFixture() []types.Message {
	msgs := []types.Message{
		types.NewUserQuestion("c1", "why is the sky blue"),
		types.NewSystemMessage("c1", "internal note"),
		types.NewModeratorMessage("c1", types.TypeBotQuery, "look into scattering", "mod-model").WithBot("alpha", "alpha-model"),
		types.NewBotResponse("c1", "alpha", "alpha-model", "rayleigh scattering", nil),
	}
	return msgs
}

func TestRenderTranscriptAnnotations(t *testing.T) {
	p := NewPromptBuilder(0, nil)
	out := p.RenderTranscript(transcriptFixture())

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[user_question] user: why is the sky blue", lines[0])
	assert.Equal(t, "[bot_query] alpha (alpha-model): look into scattering", lines[1])
	assert.Equal(t, "[bot_response] alpha (alpha-model): rayleigh scattering", lines[2])
}

func TestRenderTranscriptSkipsSystemMessages(t *testing.T) {
	p := NewPromptBuilder(0, nil)
	out := p.RenderTranscript(transcriptFixture())
	assert.NotContains(t, out, "internal note")
}

func TestRenderTranscriptTrimsOldestFirst(t *testing.T) {
	msgs := []types.Message{
		types.NewUserQuestion("c1", strings.Repeat("old ", 200)),
		types.NewBotResponse("c1", "alpha", "alpha-model", "recent finding", nil),
	}
	p := NewPromptBuilder(40, nil)
	out := p.RenderTranscript(msgs)

	assert.Contains(t, out, "recent finding")
	assert.NotContains(t, out, "old old")
}

func TestRenderTranscriptEmpty(t *testing.T) {
	p := NewPromptBuilder(0, nil)
	assert.Empty(t, p.RenderTranscript(nil))
}

func TestInitialAnalysisPrompt(t *testing.T) {
	p := NewPromptBuilder(0, nil)
	out := p.InitialAnalysis("why is the sky blue", nil, "- Alpha (id: alpha)")

	assert.Contains(t, out, "why is the sky blue")
	assert.Contains(t, out, "- Alpha (id: alpha)")
	assert.Contains(t, out, `"needsClarification"`)
	assert.Contains(t, out, `"botsToConsult"`)
	assert.NotContains(t, out, "already clarified")
}

func TestInitialAnalysisPromptRendersClarifications(t *testing.T) {
	p := NewPromptBuilder(0, nil)
	out := p.InitialAnalysis("plan a trip", []string{"budget is 2000", "two weeks in May"}, "- Alpha (id: alpha)")

	assert.Contains(t, out, "already clarified")
	assert.Contains(t, out, "- budget is 2000")
	assert.Contains(t, out, "- two weeks in May")
}

func TestFollowUpPromptNamesActions(t *testing.T) {
	p := NewPromptBuilder(0, nil)
	out := p.FollowUp("some findings", "the transcript")

	assert.Contains(t, out, "continue-research")
	assert.Contains(t, out, "ask-user")
	assert.Contains(t, out, "synthesize-report")
	assert.Contains(t, out, "confidence")
	assert.Contains(t, out, "some findings")
}

func TestDebateTurnPromptShape(t *testing.T) {
	p := NewPromptBuilder(0, nil)

	opening := p.DebateTurn("tabs vs spaces", nil, "Alpha")
	assert.Contains(t, opening, "opening the debate")
	assert.Contains(t, opening, "tabs vs spaces")

	followup := p.DebateTurn("tabs vs spaces", []string{"Beta: spaces scale better"}, "Alpha")
	assert.Contains(t, followup, "Beta: spaces scale better")
	assert.NotContains(t, followup, "opening the debate")
}
