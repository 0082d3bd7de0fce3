package types

// DecisionAction is the fixed set of actions a moderator decision can take.
type DecisionAction string

const (
	ActionAskUser          DecisionAction = "ask_user"
	ActionQueryBot         DecisionAction = "query_bot"
	ActionSynthesizeReport DecisionAction = "synthesize_report"
	ActionContinueResearch DecisionAction = "continue_research"
)

// Decision is the structured outcome of interpreting a moderator's free-text
// analysis. It is transient: produced by the decision engine, consumed
// immediately by the dispatcher, never persisted.
type Decision struct {
	Action    DecisionAction `json:"action"`
	Reasoning string         `json:"reasoning,omitempty"`
	Target    string         `json:"target,omitempty"`
	Content   string         `json:"content,omitempty"`
	NextSteps []string       `json:"next_steps,omitempty"`
}

// Validate checks the per-action mandatory fields.
func (d *Decision) Validate() error {
	switch d.Action {
	case ActionAskUser:
		if d.Content == "" {
			return NewError(ErrInvalidDecision, "ask_user decision requires content")
		}
	case ActionQueryBot:
		if d.Target == "" {
			return NewError(ErrInvalidDecision, "query_bot decision requires a target agent")
		}
	case ActionSynthesizeReport, ActionContinueResearch:
		// No mandatory fields.
	default:
		return NewError(ErrInvalidDecision, "unknown action: "+string(d.Action))
	}
	return nil
}
