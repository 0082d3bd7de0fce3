// Package agent holds the agents the engine coordinates: a moderator
// singleton plus dynamically registered specialists, each a thin persona
// over the llm call primitive.
package agent
