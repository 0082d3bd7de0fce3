package types

// Capability is a declared agent capability.
type Capability string

const (
	// CapabilitySearch marks agents whose underlying client may call a
	// web-search tool while generating.
	CapabilitySearch Capability = "search"
)

// AgentSpec describes one registered agent: identity, persona, and the
// model it runs on. Specs are immutable once created.
type AgentSpec struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Model        string       `json:"model"`
	SystemPrompt string       `json:"system_prompt,omitempty"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// HasCapability reports whether the spec declares the given capability.
func (s AgentSpec) HasCapability(c Capability) bool {
	for _, have := range s.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// ModelSelection requests n debate participants backed by a catalog model.
type ModelSelection struct {
	ModelID string `json:"model_id"`
	Count   int    `json:"count"`
}
