// Package orchestrator is the conversation orchestration engine: the state
// machine and scheduler that owns conversation lifecycle, interprets
// moderator decisions, dispatches actions to specialist agents, and runs
// the round-robin debate loop with stop/resume semantics.
//
// The engine treats the model-call primitive as opaque. Transport, UI, and
// search adapters are external collaborators reached through the llm and
// notify boundaries.
package orchestrator
