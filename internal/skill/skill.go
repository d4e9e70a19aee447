package skill

import (
	"context"
	"encoding/json"
	"fmt"
)

// Category describes how a skill behaves and which execution mode it uses.
type Category string

const (
	CategoryDataRetrieval Category = "data_retrieval"
	CategoryAction        Category = "action"
	CategoryAnalysis      Category = "analysis"
	CategoryInteractive   Category = "interactive"
)

// Mode selects the execution strategy for a skill.
type Mode int

const (
	// ModeDirect is a stateless one-shot call to the skill's endpoint.
	ModeDirect Mode = iota
	// ModeSession runs the skill as a task inside an authenticated
	// provider session built from a stored credential profile.
	ModeSession
)

func (m Mode) String() string {
	if m == ModeSession {
		return "session"
	}
	return "direct"
}

// Mode returns the execution mode for the category. Only action skills
// need the authenticated session flow.
func (c Category) Mode() Mode {
	if c == CategoryAction {
		return ModeSession
	}
	return ModeDirect
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryDataRetrieval, CategoryAction, CategoryAnalysis, CategoryInteractive:
		return true
	}
	return false
}

// Status is the lifecycle state of a skill execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Config is the immutable description of a registered skill.
type Config struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Category      Category       `json:"category"`
	Description   string         `json:"description"`
	Schema        *Schema        `json:"parameters"`
	ExampleParams map[string]any `json:"example_params"`
	PlannerHints  string         `json:"planner_hints"`
}

// Credentials identify the caller's stored automation profile.
type Credentials struct {
	ProfileID string
}

// Result is the outcome of one skill execution. Only completed and failed
// are ever returned to callers; pending and running exist while polling.
type Result struct {
	Status    Status          `json:"status"`
	SkillID   string          `json:"skill_id"`
	SkillName string          `json:"skill_name,omitempty"`
	Category  Category        `json:"category,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// Completed reports whether the provider explicitly reported success.
func (r Result) Completed() bool { return r.Status == StatusCompleted }

// Failed builds a failed result echoing the skill's identity. cfg may be
// nil when the skill could not be resolved.
func Failed(cfg *Config, skillID string, format string, args ...any) Result {
	r := Result{
		Status:   StatusFailed,
		SkillID:  skillID,
		Error:    fmt.Sprintf(format, args...),
		Metadata: map[string]any{},
	}
	if cfg != nil {
		r.SkillID = cfg.ID
		r.SkillName = cfg.Name
		r.Category = cfg.Category
	}
	return r
}

// Succeeded builds a completed result carrying the raw provider output.
func Succeeded(cfg *Config, output json.RawMessage, metadata map[string]any) Result {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Result{
		Status:    StatusCompleted,
		SkillID:   cfg.ID,
		SkillName: cfg.Name,
		Category:  cfg.Category,
		Output:    output,
		Metadata:  metadata,
	}
}

// InboxStatus is the initial state of the inbox item created from a result.
type InboxStatus string

const (
	InboxPending           InboxStatus = "pending"
	InboxNeedsConfirmation InboxStatus = "needs_confirmation"
	InboxCompleted         InboxStatus = "completed"
)

// Link is a structured link attached to a notification.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Formatted is the human-readable rendering of a result.
type Formatted struct {
	Title       string      `json:"title"`
	Message     string      `json:"message"`
	Action      string      `json:"action,omitempty"`
	InboxStatus InboxStatus `json:"status"`
	Links       []Link      `json:"links,omitempty"`
}

// Handler executes and formats one skill. A handler is shared by every
// invocation of its skill and keeps no per-call state.
type Handler interface {
	Config() *Config
	Execute(ctx context.Context, params Params, creds Credentials) Result
	Format(result Result) Formatted
}

// Runner carries validated calls to the automation provider.
type Runner interface {
	RunDirect(ctx context.Context, cfg *Config, params Params) Result
	RunSession(ctx context.Context, cfg *Config, instruction string, params Params, creds Credentials) Result
}
