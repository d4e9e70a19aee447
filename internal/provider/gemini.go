package provider

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface on the Google GenAI SDK.
// Type "vertex" selects the Vertex AI backend, anything else the Gemini API.
type GeminiProvider struct {
	config ProviderConfig
	client *genai.Client
	logger *zap.Logger
}

// NewGeminiProvider creates a Gemini or Vertex AI provider.
func NewGeminiProvider(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (*GeminiProvider, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.Type == "vertex" {
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Extra["project"]
		cc.Location = cfg.Extra["location"]
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiProvider{config: cfg, client: client, logger: logger}, nil
}

func (p *GeminiProvider) ID() string   { return p.config.ID }
func (p *GeminiProvider) Name() string { return p.config.Name }

// Chat sends one GenerateContent call.
func (p *GeminiProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	contents, gc := convertGeminiRequest(req)

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, gc)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return convertGeminiResponse(model, resp), nil
}

func convertGeminiRequest(req *ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	gc := &genai.GenerateContentConfig{}
	if req.ResponseFormat == ResponseFormatJSON {
		gc.ResponseMIMEType = "application/json"
	}
	if req.Temperature > 0 {
		gc.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}

	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			gc.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, gc
}

func convertGeminiResponse(model string, resp *genai.GenerateContentResponse) *ChatResponse {
	out := &ChatResponse{Model: model, Content: resp.Text()}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	for _, c := range resp.Candidates {
		if c == nil {
			continue
		}
		var cand Candidate
		if c.Content != nil {
			for _, part := range c.Content.Parts {
				if part != nil && part.Text != "" {
					cand.Parts = append(cand.Parts, part.Text)
				}
			}
		}
		if out.FinishReason == "" {
			out.FinishReason = string(c.FinishReason)
		}
		out.Candidates = append(out.Candidates, cand)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out
}
