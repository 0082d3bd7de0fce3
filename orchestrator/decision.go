package orchestrator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"

	"github.com/quorumhq/quorum/agent"
	"github.com/quorumhq/quorum/internal/metrics"
	"github.com/quorumhq/quorum/types"
)

// confidenceThreshold: above this, a follow-up decision synthesizes the
// report regardless of the action the moderator declared.
const confidenceThreshold = 80

// initialAnalysis is the JSON shape the moderator is prompted to emit for
// a fresh question. Field names match the prompt contract.
type initialAnalysis struct {
	NeedsClarification  bool     `json:"needsClarification"`
	ClarifyingQuestions []string `json:"clarifyingQuestions"`
	ResearchPlan        []string `json:"researchPlan"`
	BotsToConsult       []string `json:"botsToConsult"`
	Reasoning           string   `json:"reasoning"`
}

// followUpAnalysis is the JSON shape expected after a specialist reply.
type followUpAnalysis struct {
	Action     string  `json:"action"`
	NextBot    string  `json:"nextBot"`
	Question   string  `json:"question"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// DecisionEngine turns the moderator's free-text replies into structured
// decisions. Parsing is total: malformed output maps deterministically to
// a fallback decision and never surfaces to the user.
type DecisionEngine struct {
	registry *agent.Registry
	prompts  *PromptBuilder
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewDecisionEngine creates a decision engine.
func NewDecisionEngine(registry *agent.Registry, prompts *PromptBuilder, m *metrics.Collector, logger *zap.Logger) *DecisionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionEngine{
		registry: registry,
		prompts:  prompts,
		metrics:  m,
		logger:   logger.With(zap.String("component", "decision_engine")),
	}
}

// AnalyzeQuestion asks the moderator to analyze a fresh user question and
// returns the resulting decision. Only the moderator call itself can fail;
// interpretation of the reply cannot.
func (e *DecisionEngine) AnalyzeQuestion(ctx context.Context, conv *types.Conversation) (*types.Decision, error) {
	var clarifications []string
	for _, m := range conv.Messages {
		if m.Type == types.TypeUserResponse {
			clarifications = append(clarifications, m.Content)
		}
	}
	prompt := e.prompts.InitialAnalysis(conv.Title, clarifications, e.registry.Roster())
	res, err := e.registry.Moderator().Reply(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}
	return e.InterpretInitial(conv, res.Text), nil
}

// InterpretInitial converts the moderator's initial-analysis reply into a
// decision. It never fails: unparseable text falls back to querying the
// default search specialist with the original question.
func (e *DecisionEngine) InterpretInitial(conv *types.Conversation, text string) *types.Decision {
	var analysis initialAnalysis
	if !e.decode(text, &analysis) {
		return e.initialFallback(conv, "moderator reply was not parseable")
	}

	if analysis.NeedsClarification && len(analysis.ClarifyingQuestions) > 0 && analysis.ClarifyingQuestions[0] != "" {
		d := &types.Decision{
			Action:    types.ActionAskUser,
			Reasoning: analysis.Reasoning,
			Content:   analysis.ClarifyingQuestions[0],
			NextSteps: analysis.ClarifyingQuestions[1:],
		}
		e.metrics.DecisionProduced(string(d.Action), "initial")
		return d
	}

	if len(analysis.BotsToConsult) == 0 || analysis.BotsToConsult[0] == "" {
		return e.initialFallback(conv, "moderator named no specialist to consult")
	}

	d := &types.Decision{
		Action:    types.ActionQueryBot,
		Reasoning: analysis.Reasoning,
		Target:    analysis.BotsToConsult[0],
		Content:   conv.Title,
		NextSteps: analysis.ResearchPlan,
	}
	e.metrics.DecisionProduced(string(d.Action), "initial")
	return d
}

func (e *DecisionEngine) initialFallback(conv *types.Conversation, why string) *types.Decision {
	e.logger.Warn("initial analysis fallback", zap.String("conversation_id", conv.ID), zap.String("why", why))

	def, ok := e.registry.DefaultSearchBot()
	if !ok {
		// No specialists at all: terminate rather than loop.
		d := &types.Decision{
			Action:    types.ActionSynthesizeReport,
			Reasoning: "No specialists are available, so I will answer from what is already known.",
		}
		e.metrics.DecisionProduced(string(d.Action), "fallback")
		return d
	}

	d := &types.Decision{
		Action:    types.ActionQueryBot,
		Reasoning: "I could not form a research plan from the analysis, so I will start with general research.",
		Target:    def.ID(),
		Content:   conv.Title,
	}
	e.metrics.DecisionProduced(string(d.Action), "fallback")
	return d
}

// ProcessBotResponse asks the moderator what to do after a specialist
// reply and returns the resulting decision.
func (e *DecisionEngine) ProcessBotResponse(ctx context.Context, conv *types.Conversation, lastReply string) (*types.Decision, error) {
	prompt := e.prompts.FollowUp(lastReply, e.prompts.RenderTranscript(conv.Messages))
	res, err := e.registry.Moderator().Reply(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}
	return e.InterpretFollowUp(conv, res.Text), nil
}

// InterpretFollowUp converts the moderator's follow-up reply into a
// decision. It never fails: malformed or incomplete output falls back to
// synthesizing the report, preferring termination over looping forever.
func (e *DecisionEngine) InterpretFollowUp(conv *types.Conversation, text string) *types.Decision {
	var analysis followUpAnalysis
	if !e.decode(text, &analysis) {
		return e.followUpFallback(conv, "moderator reply was not parseable")
	}

	action := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(analysis.Action)), "_", "-")

	// Confidence overrides an explicit continuation: past the threshold the
	// moderator has enough to answer, whatever it declared.
	if action == "synthesize-report" || analysis.Confidence > confidenceThreshold {
		d := &types.Decision{
			Action:    types.ActionSynthesizeReport,
			Reasoning: analysis.Reasoning,
		}
		e.metrics.DecisionProduced(string(d.Action), "follow_up")
		return d
	}

	switch action {
	case "ask-user":
		if analysis.Question == "" {
			return e.followUpFallback(conv, "ask-user decision without a question")
		}
		d := &types.Decision{
			Action:    types.ActionAskUser,
			Reasoning: analysis.Reasoning,
			Content:   analysis.Question,
		}
		e.metrics.DecisionProduced(string(d.Action), "follow_up")
		return d

	default:
		if analysis.NextBot == "" {
			return e.followUpFallback(conv, "continuation without a next specialist")
		}
		content := analysis.Question
		if content == "" {
			content = "Continue your analysis of: " + conv.Title
		}
		d := &types.Decision{
			Action:    types.ActionQueryBot,
			Reasoning: analysis.Reasoning,
			Target:    analysis.NextBot,
			Content:   content,
		}
		e.metrics.DecisionProduced(string(d.Action), "follow_up")
		return d
	}
}

func (e *DecisionEngine) followUpFallback(conv *types.Conversation, why string) *types.Decision {
	e.logger.Warn("follow-up analysis fallback", zap.String("conversation_id", conv.ID), zap.String("why", why))
	d := &types.Decision{
		Action:    types.ActionSynthesizeReport,
		Reasoning: "I could not interpret the follow-up analysis, so I will synthesize what has been gathered.",
	}
	e.metrics.DecisionProduced(string(d.Action), "fallback")
	return d
}

// decode extracts and parses the JSON object embedded in free text.
// Strategy: greedy outer-brace match, strict parse, then jsonrepair for
// the usual LLM damage (trailing commas, single quotes, truncation).
func (e *DecisionEngine) decode(text string, v any) bool {
	payload := extractJSON(text)
	if payload == "" {
		return false
	}
	if json.Unmarshal([]byte(payload), v) == nil {
		return true
	}
	repaired, err := jsonrepair.JSONRepair(payload)
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(repaired), v) == nil
}

// extractJSON locates the first '{' through the last '}' in text; when no
// braces are present the whole text is returned for a direct parse
// attempt.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}
