package skill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Plugin is a skill declared on disk rather than compiled in.
type Plugin struct {
	Config
	TaskTemplate string
	Dir          string
}

// LoadFromDir scans a directory for skill plugin subdirectories.
// Each subdirectory should contain a skill.json file and optionally a
// prompt.md that overrides the planner_hints field. If dir doesn't exist,
// returns an empty slice without error.
func LoadFromDir(dir string) ([]*Plugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading skill directory %s: %w", dir, err)
	}

	var plugins []*Plugin
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		p, err := loadPlugin(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("loading skill %s: %w", entry.Name(), err)
		}
		if p != nil {
			plugins = append(plugins, p)
		}
	}

	return plugins, nil
}

func loadPlugin(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, "skill.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading skill.json: %w", err)
	}

	// skill.json declares parameters as a flat field list.
	var raw struct {
		ID            string         `json:"id"`
		Name          string         `json:"name"`
		Category      Category       `json:"category"`
		Description   string         `json:"description"`
		PlannerHints  string         `json:"planner_hints"`
		ExampleParams map[string]any `json:"example_params"`
		Fields        []Field        `json:"parameters"`
		TaskTemplate  string         `json:"task_template"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing skill.json in %s: %w", dir, err)
	}
	if raw.ID == "" || raw.Name == "" {
		return nil, fmt.Errorf("skill.json in %s: id and name are required", dir)
	}
	if raw.Category == "" {
		raw.Category = CategoryDataRetrieval
	}

	p := &Plugin{
		Config: Config{
			ID:            raw.ID,
			Name:          raw.Name,
			Category:      raw.Category,
			Description:   raw.Description,
			PlannerHints:  raw.PlannerHints,
			ExampleParams: raw.ExampleParams,
			Schema:        NewSchema(raw.Fields...),
		},
		TaskTemplate: raw.TaskTemplate,
		Dir:          dir,
	}

	if prompt, err := os.ReadFile(filepath.Join(dir, "prompt.md")); err == nil {
		p.PlannerHints = strings.TrimSpace(string(prompt))
	}

	return p, nil
}

// RegisterPlugins registers loaded plugins after the built-ins. Plugins use
// the default formatter and, for session skills, their task template.
func RegisterPlugins(reg *Registry, runner Runner, plugins []*Plugin) error {
	for _, p := range plugins {
		cfg := p.Config
		opts := HandlerOptions{}
		if p.TaskTemplate != "" {
			opts.Instruct = templateInstruction(p.TaskTemplate)
		}
		if err := reg.Register(&cfg, NewAutomationHandler(&cfg, runner, opts)); err != nil {
			return fmt.Errorf("plugin %s: %w", p.Dir, err)
		}
	}
	return nil
}

var placeholder = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// templateInstruction fills {name} placeholders from the parameters.
// Unknown placeholders render empty.
func templateInstruction(tmpl string) InstructFunc {
	return func(_ *Config, p Params) string {
		return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
			v, ok := p[m[1:len(m)-1]]
			if !ok {
				return ""
			}
			return fmt.Sprint(v)
		})
	}
}
