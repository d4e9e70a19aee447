package provider

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	anthropicVersion    = "2023-06-01"
	anthropicMaxTokens  = 4096
	jsonOnlyInstruction = "Respond with a single JSON document and nothing else."
)

// AnthropicProvider calls the Claude Messages API. Claude has no JSON
// response mode, so JSON requests get an extra system instruction.
type AnthropicProvider struct {
	config ProviderConfig
	client *http.Client
	logger *zap.Logger
}

func NewAnthropicProvider(cfg ProviderConfig, logger *zap.Logger) *AnthropicProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.anthropic.com/v1"
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &AnthropicProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (p *AnthropicProvider) ID() string   { return p.config.ID }
func (p *AnthropicProvider) Name() string { return p.config.Name }

type messagesRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []turnMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
}

type turnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *AnthropicProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	header := http.Header{}
	header.Set("x-api-key", p.config.APIKey)
	header.Set("anthropic-version", anthropicVersion)

	var out messagesResponse
	if err := postJSON(ctx, p.client, p.config.ID, p.config.Endpoint+"/messages", header, p.convertRequest(req), &out); err != nil {
		return nil, err
	}
	return out.toChat(), nil
}

// convertRequest lifts system messages into the top-level system field.
func (p *AnthropicProvider) convertRequest(req *ChatRequest) *messagesRequest {
	mr := &messagesRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if mr.Model == "" {
		mr.Model = p.config.Model
	}
	if mr.MaxTokens == 0 {
		mr.MaxTokens = anthropicMaxTokens
	}

	var system []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
		} else {
			mr.Messages = append(mr.Messages, turnMessage{Role: m.Role, Content: m.Content})
		}
	}
	if req.ResponseFormat == ResponseFormatJSON {
		system = append(system, jsonOnlyInstruction)
	}
	mr.System = strings.Join(system, "\n\n")
	return mr
}

func (r *messagesResponse) toChat() *ChatResponse {
	var parts []string
	for _, block := range r.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	in, out := r.Usage.InputTokens, r.Usage.OutputTokens
	return &ChatResponse{
		ID:           r.ID,
		Model:        r.Model,
		Content:      strings.Join(parts, ""),
		Candidates:   []Candidate{{Parts: parts}},
		FinishReason: r.StopReason,
		Usage:        Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}
}
