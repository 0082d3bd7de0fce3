// Package search defines the web-search primitive that search-capable
// agents may call while generating. The orchestration engine never calls
// it directly; it only records the audit trail providers report back.
package search

import "context"

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Provider performs a web search.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, query string, maxResults int) ([]Result, error)

// Search implements Provider.
func (f ProviderFunc) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	return f(ctx, query, maxResults)
}
