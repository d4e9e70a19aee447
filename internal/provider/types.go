package provider

import (
	"context"
	"time"
)

// Provider is a reasoning service that answers chat requests.
type Provider interface {
	ID() string
	Name() string
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ResponseFormatJSON asks the provider for a bare JSON document.
const ResponseFormatJSON = "json"

// ChatRequest represents a request to an LLM provider.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// ResponseFormat is "" for free text or ResponseFormatJSON.
	ResponseFormat string `json:"-"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse represents a response from an LLM provider. Providers that
// return several candidates fill Candidates; Content holds the primary
// text when the provider exposes one directly.
type ChatResponse struct {
	ID           string      `json:"id"`
	Model        string      `json:"model"`
	Content      string      `json:"content"`
	Candidates   []Candidate `json:"candidates,omitempty"`
	FinishReason string      `json:"finish_reason"`
	Usage        Usage       `json:"usage"`
}

// Candidate is one alternative answer split into text parts.
type Candidate struct {
	Parts []string `json:"parts"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderConfig holds configuration for a provider instance.
type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"` // openai|anthropic|gemini|vertex
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Model    string            `json:"model,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	Timeout  time.Duration     `json:"timeout,omitempty"`
}
