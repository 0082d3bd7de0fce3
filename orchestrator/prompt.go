package orchestrator

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/quorumhq/quorum/types"
)

// PromptBuilder renders the moderator and debate prompts. Transcripts are
// bounded by a token budget so long conversations never blow the
// moderator's context window; trimming drops the oldest messages first.
type PromptBuilder struct {
	enc       *tiktoken.Tiktoken
	maxTokens int
	logger    *zap.Logger
}

// NewPromptBuilder creates a builder with the given transcript token
// budget. If the tiktoken encoding cannot be loaded the builder falls back
// to a bytes/4 approximation.
func NewPromptBuilder(maxTranscriptTokens int, logger *zap.Logger) *PromptBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "prompt_builder"))

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, using byte approximation", zap.Error(err))
		enc = nil
	}
	if maxTranscriptTokens <= 0 {
		maxTranscriptTokens = 8000
	}
	return &PromptBuilder{
		enc:       enc,
		maxTokens: maxTranscriptTokens,
		logger:    logger,
	}
}

func (p *PromptBuilder) countTokens(s string) int {
	if p.enc == nil {
		return len(s) / 4
	}
	return len(p.enc.Encode(s, nil, nil))
}

// RenderTranscript renders the non-system messages as annotated lines,
// trimmed oldest-first to the token budget.
func (p *PromptBuilder) RenderTranscript(msgs []types.Message) string {
	lines := make([]string, 0, len(msgs))
	budget := p.maxTokens

	// Walk newest to oldest so trimming naturally drops the oldest.
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == types.RoleSystem {
			continue
		}
		line := renderLine(m)
		cost := p.countTokens(line)
		if cost > budget {
			break
		}
		budget -= cost
		lines = append(lines, line)
	}

	// Back into chronological order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}

func renderLine(m types.Message) string {
	who := string(m.Role)
	if m.BotID != "" {
		who = m.BotID
		if m.ModelName != "" {
			who = fmt.Sprintf("%s (%s)", m.BotID, m.ModelName)
		}
	}
	return fmt.Sprintf("[%s] %s: %s", m.Type, who, m.Content)
}

// InitialAnalysis is the moderator prompt for a fresh user question.
// Clarifications are the user's answers to earlier clarifying questions,
// if any were asked before this analysis.
func (p *PromptBuilder) InitialAnalysis(question string, clarifications []string, roster string) string {
	var b strings.Builder
	b.WriteString("You are the moderator of a panel of research specialists. ")
	b.WriteString("A user has asked a new question. Decide whether the question needs clarification ")
	b.WriteString("before research starts, and if not, plan the research and pick the first specialist to consult.\n\n")
	fmt.Fprintf(&b, "User question: %s\n\n", question)
	if len(clarifications) > 0 {
		b.WriteString("The user has already clarified:\n")
		for _, c := range clarifications {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\n")
	}
	b.WriteString("Available specialists:\n")
	b.WriteString(roster)
	b.WriteString("\nRespond with a single JSON object and nothing else:\n")
	b.WriteString(`{"needsClarification": true|false, "clarifyingQuestions": ["..."], "researchPlan": ["..."], "botsToConsult": ["<specialist id>"], "reasoning": "..."}`)
	return b.String()
}

// FollowUp is the moderator prompt after a specialist reply.
func (p *PromptBuilder) FollowUp(lastReply, transcript string) string {
	var b strings.Builder
	b.WriteString("You are the moderator of a panel of research specialists. ")
	b.WriteString("Review the latest specialist reply and decide what happens next.\n\n")
	fmt.Fprintf(&b, "Latest specialist reply:\n%s\n\n", lastReply)
	fmt.Fprintf(&b, "Conversation so far:\n%s\n\n", transcript)
	b.WriteString("Respond with a single JSON object and nothing else:\n")
	b.WriteString(`{"action": "continue-research" | "ask-user" | "synthesize-report", "nextBot": "<specialist id>", "question": "...", "confidence": 0-100, "reasoning": "..."}`)
	b.WriteString("\nconfidence is how confident you are (0-100) that enough has been gathered to answer the user.")
	return b.String()
}

// Synthesis is the moderator prompt producing the final report of a guided
// conversation.
func (p *PromptBuilder) Synthesis(title, transcript string) string {
	var b strings.Builder
	b.WriteString("You are the moderator. Research is complete; write the final report.\n\n")
	fmt.Fprintf(&b, "Original question: %s\n\n", title)
	fmt.Fprintf(&b, "Full research transcript:\n%s\n\n", transcript)
	b.WriteString("Write a clear, well-organized answer to the original question, citing which specialist ")
	b.WriteString("contributed what where it matters. Answer directly; do not describe the research process.")
	return b.String()
}

// DebateTurn is the prompt for the next debate speaker. Context lines are
// the annotated recent bot responses.
func (p *PromptBuilder) DebateTurn(topic string, contextLines []string, speaker string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, one voice in a running debate.\n\n", speaker)
	fmt.Fprintf(&b, "Debate topic: %s\n\n", topic)
	if len(contextLines) == 0 {
		b.WriteString("You are opening the debate. State your position clearly with your strongest arguments.")
		return b.String()
	}
	b.WriteString("Most recent contributions:\n")
	for _, line := range contextLines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\nBuild on or challenge these contributions. Bring a new argument or a rebuttal; do not repeat points already made.")
	return b.String()
}

// DebateSynthesis is the moderator prompt concluding a debate.
func (p *PromptBuilder) DebateSynthesis(topic string, contextLines []string) string {
	var b strings.Builder
	b.WriteString("You are the moderator of a debate that has now ended.\n\n")
	fmt.Fprintf(&b, "Debate topic: %s\n\n", topic)
	b.WriteString("Recent contributions:\n")
	for _, line := range contextLines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\nWrite a balanced synthesis: where the participants agreed, where they disagreed and why, ")
	b.WriteString("and the key insights a reader should take away. Do not pick a winner unless the arguments clearly warrant it.")
	return b.String()
}
