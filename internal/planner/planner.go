// Package planner asks the reasoning service whether a journal entry
// warrants running one of the registered skills.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/provider"
	"github.com/nidhogg/tappy/internal/skill"
)

// ErrPlanner wraps every planning failure. Callers treat it as "no action".
var ErrPlanner = errors.New("planner failure")

const defaultReason = "No reason provided"

// Completer is a reasoning service that answers one chat request.
type Completer interface {
	Complete(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error)
}

// Decision is the planner's verdict for one entry.
type Decision struct {
	ShouldAct  bool           `json:"should_act"`
	SkillID    string         `json:"skill_id,omitempty"`
	SkillName  string         `json:"skill_name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Reason     string         `json:"reason"`
}

// Actionable reports whether the decision names a skill and parameters to
// run it with. should_act alone is not enough.
func (d *Decision) Actionable() bool {
	return d != nil && d.ShouldAct && d.SkillID != "" && d.Parameters != nil
}

// Planner builds prompts from the registry and parses the verdict.
type Planner struct {
	registry  *skill.Registry
	completer Completer
	model     string
	logger    *zap.Logger
}

func New(registry *skill.Registry, completer Completer, model string, logger *zap.Logger) *Planner {
	return &Planner{registry: registry, completer: completer, model: model, logger: logger}
}

// Plan makes one reasoning call for the entry text. The call is bounded
// only by the provider client's own timeout.
func (p *Planner) Plan(ctx context.Context, text string) (*Decision, error) {
	resp, err := p.completer.Complete(ctx, &provider.ChatRequest{
		Model:          p.model,
		Messages:       []provider.Message{{Role: "user", Content: p.Prompt(text)}},
		ResponseFormat: provider.ResponseFormatJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanner, err)
	}

	raw, ok := responseText(resp)
	if !ok {
		return nil, fmt.Errorf("%w: response has no text", ErrPlanner)
	}
	d, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("plan decided",
		zap.Bool("should_act", d.ShouldAct),
		zap.String("skill", d.SkillID),
		zap.String("reason", d.Reason))
	return d, nil
}

// Prompt renders the full planner prompt for an entry.
func (p *Planner) Prompt(text string) string {
	var b strings.Builder
	b.WriteString("You are Tappy, a helpful journal assistant that can take actions for users.\n\n")
	b.WriteString(p.registry.DescribeForPlanner())
	b.WriteString(`

Your task: Analyze the journal entry and decide if any skill should be executed.

IMPORTANT RULES:
- Only trigger a skill if the user clearly expresses intent related to that skill
- Regular mentions or complaints don't warrant action
- Extract specific parameters from the journal text when possible
- Be conservative - when in doubt, don't act

Respond with JSON only:
{
  "should_act": true or false,
  "skill_id": "skill-uuid" or null,
  "skill_name": "skill_name" or null,
  "parameters": {parameter_object} or null,
  "reason": "Brief explanation of your decision"
}

Available skill IDs:
`)
	b.WriteString(p.registry.Catalog())
	b.WriteString("\n\nJournal entry:\n")
	b.WriteString(text)
	return b.String()
}

// responseText prefers the direct text and falls back to the first
// non-empty candidate part.
func responseText(resp *provider.ChatResponse) (string, bool) {
	if resp == nil {
		return "", false
	}
	if strings.TrimSpace(resp.Content) != "" {
		return resp.Content, true
	}
	for _, c := range resp.Candidates {
		for _, part := range c.Parts {
			if strings.TrimSpace(part) != "" {
				return part, true
			}
		}
	}
	return "", false
}

// Parse turns the reasoning service's text into a Decision. A root list
// is reduced to its first element.
func Parse(raw string) (*Decision, error) {
	var payload any
	if err := json.Unmarshal([]byte(stripFence(raw)), &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrPlanner, err)
	}
	if list, ok := payload.([]any); ok {
		if len(list) == 0 {
			payload = map[string]any{}
		} else {
			payload = list[0]
		}
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %T", ErrPlanner, payload)
	}

	d := &Decision{Reason: defaultReason}
	d.ShouldAct, _ = obj["should_act"].(bool)
	d.SkillID, _ = obj["skill_id"].(string)
	d.SkillName, _ = obj["skill_name"].(string)
	if params, ok := obj["parameters"].(map[string]any); ok && len(params) > 0 {
		d.Parameters = params
	}
	if reason, ok := obj["reason"].(string); ok && strings.TrimSpace(reason) != "" {
		d.Reason = reason
	}
	return d, nil
}

// stripFence removes a surrounding ```json fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
