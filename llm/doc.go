// Package llm defines the model-call primitive the orchestration engine
// consumes: an opaque asynchronous "generate text from a prompt" boundary.
// The engine never inspects provider-specific details; concrete providers
// live behind the Client interface.
package llm
