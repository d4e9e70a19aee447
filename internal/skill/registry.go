package skill

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrDuplicateSkill is returned when a skill id is registered twice.
var ErrDuplicateSkill = errors.New("skill already registered")

type registration struct {
	config  *Config
	handler Handler
}

// Registry maps skill ids to their configuration and handler. It is
// built once at startup and is append-only for the process lifetime.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]*registration
	order  []string
}

// NewRegistry creates an empty Registry ready for use.
func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]*registration)}
}

// Register adds a skill. The first registration of an id wins; later
// attempts return ErrDuplicateSkill.
func (r *Registry) Register(cfg *Config, h Handler) error {
	if cfg == nil || cfg.ID == "" {
		return fmt.Errorf("register skill: empty id")
	}
	if h == nil {
		return fmt.Errorf("register skill %s: nil handler", cfg.ID)
	}
	if hc := h.Config(); hc == nil || hc.ID != cfg.ID {
		return fmt.Errorf("register skill %s: handler bound to a different skill", cfg.ID)
	}
	if !cfg.Category.Valid() {
		return fmt.Errorf("register skill %s: unknown category %q", cfg.ID, cfg.Category)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.skills[cfg.ID]; ok {
		return fmt.Errorf("register skill %s: %w", cfg.ID, ErrDuplicateSkill)
	}
	r.skills[cfg.ID] = &registration{config: cfg, handler: h}
	r.order = append(r.order, cfg.ID)
	return nil
}

// Resolve returns the handler and config registered under id.
func (r *Registry) Resolve(id string) (Handler, *Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.skills[id]
	if !ok {
		return nil, nil, false
	}
	return reg.handler, reg.config, true
}

// List returns every registered config in registration order.
func (r *Registry) List() []*Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Config, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.skills[id].config)
	}
	return out
}

// Len returns the number of registered skills.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// DescribeForPlanner renders every registered skill into the text block
// injected verbatim into the planner prompt.
func (r *Registry) DescribeForPlanner() string {
	configs := r.List()
	if len(configs) == 0 {
		return "No skills available."
	}
	var b strings.Builder
	b.WriteString("Available skills:\n")
	for _, c := range configs {
		fmt.Fprintf(&b, "\n- %s (%s):\n", c.Name, c.ID)
		fmt.Fprintf(&b, "  Type: %s\n", c.Category)
		fmt.Fprintf(&b, "  Description: %s\n", c.Description)
		fmt.Fprintf(&b, "  When to use: %s\n", c.PlannerHints)
		fmt.Fprintf(&b, "  Example parameters: %s\n", exampleJSON(c.ExampleParams))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Catalog returns the compact id/name listing used alongside the full
// description.
func (r *Registry) Catalog() string {
	configs := r.List()
	lines := make([]string, 0, len(configs))
	for _, c := range configs {
		lines = append(lines, fmt.Sprintf("  - skill_id: %q, skill_name: %q", c.ID, c.Name))
	}
	return strings.Join(lines, "\n")
}

// exampleJSON renders example parameters deterministically; encoding/json
// sorts map keys.
func exampleJSON(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	return string(data)
}
