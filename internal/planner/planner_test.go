package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/provider"
	"github.com/nidhogg/tappy/internal/skill"
)

type fakeCompleter struct {
	resp *provider.ChatResponse
	err  error
	req  *provider.ChatRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	f.req = req
	return f.resp, f.err
}

func newPlanner(t *testing.T, c Completer) *Planner {
	t.Helper()
	reg := skill.NewRegistry()
	if err := skill.RegisterBuiltins(reg, nil); err != nil {
		t.Fatal(err)
	}
	return New(reg, c, "gemini-2.0-flash", zap.NewNop())
}

func TestPlanActionable(t *testing.T) {
	fc := &fakeCompleter{resp: &provider.ChatResponse{Content: `{
		"should_act": true,
		"skill_id": "20f63d34-afa9-4e18-b361-47edd270c3ca",
		"skill_name": "Google Calendar",
		"parameters": {"title": "Dentist", "date": "2025-02-03", "time": "09:30"},
		"reason": "explicit scheduling intent"
	}`}}
	p := newPlanner(t, fc)

	d, err := p.Plan(context.Background(), "Need to schedule dentist Feb 3 at 9:30am")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !d.Actionable() || d.SkillID != skill.GoogleCalendarID || d.Parameters["title"] != "Dentist" {
		t.Errorf("decision = %+v", d)
	}
	if fc.req.ResponseFormat != provider.ResponseFormatJSON || fc.req.Model != "gemini-2.0-flash" {
		t.Errorf("request = %+v", fc.req)
	}
	prompt := fc.req.Messages[0].Content
	for _, want := range []string{
		"You are Tappy",
		"Be conservative - when in doubt, don't act",
		`skill_id: "20f63d34-afa9-4e18-b361-47edd270c3ca", skill_name: "Google Calendar"`,
		"Journal entry:\nNeed to schedule dentist Feb 3 at 9:30am",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestPlanCandidateFallback(t *testing.T) {
	fc := &fakeCompleter{resp: &provider.ChatResponse{Candidates: []provider.Candidate{
		{Parts: []string{"  "}},
		{Parts: []string{`{"should_act": false, "reason": "weather small talk"}`}},
	}}}
	d, err := newPlanner(t, fc).Plan(context.Background(), "weather was nice today")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if d.Actionable() || d.Reason != "weather small talk" {
		t.Errorf("decision = %+v", d)
	}
}

func TestPlanFailures(t *testing.T) {
	tests := []struct {
		name string
		fc   *fakeCompleter
	}{
		{"transport", &fakeCompleter{err: errors.New("connection refused")}},
		{"no text", &fakeCompleter{resp: &provider.ChatResponse{}}},
		{"malformed", &fakeCompleter{resp: &provider.ChatResponse{Content: "not json"}}},
		{"scalar", &fakeCompleter{resp: &provider.ChatResponse{Content: "42"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := newPlanner(t, tt.fc).Plan(context.Background(), "x")
			if !errors.Is(err, ErrPlanner) {
				t.Fatalf("err = %v, want ErrPlanner", err)
			}
			if d.Actionable() {
				t.Error("failed plan must not be actionable")
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		actionable bool
		reason     string
	}{
		{"defaults", `{}`, false, "No reason provided"},
		{"root list", `[{"should_act":true,"skill_id":"a","parameters":{"q":1},"reason":"r"}]`, true, "r"},
		{"empty list", `[]`, false, "No reason provided"},
		{"fenced", "```json\n{\"should_act\":true,\"skill_id\":\"a\",\"parameters\":{\"q\":1}}\n```", true, "No reason provided"},
		{"no skill id", `{"should_act":true,"parameters":{"q":1}}`, false, "No reason provided"},
		{"no parameters", `{"should_act":true,"skill_id":"a"}`, false, "No reason provided"},
		{"null parameters", `{"should_act":true,"skill_id":"a","parameters":null}`, false, "No reason provided"},
		{"list parameters", `{"should_act":true,"skill_id":"a","parameters":[1]}`, false, "No reason provided"},
		{"empty reason", `{"should_act":false,"reason":""}`, false, "No reason provided"},
		{"blank reason", `{"should_act":false,"reason":"  \n"}`, false, "No reason provided"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if d.Actionable() != tt.actionable || d.Reason != tt.reason {
				t.Errorf("decision = %+v", d)
			}
		})
	}
}
