// Package execution resolves planned skills, validates their parameters
// and runs them against the automation provider.
package execution

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/skill"
)

// UnregisteredLabel is the metric label for ids the registry does not know.
// Planner output is free text, so unknown ids are never used as labels.
const UnregisteredLabel = "unregistered"

// Recorder receives execution measurements. A nil Recorder is allowed.
type Recorder interface {
	ObserveExecution(skillID, status string, elapsed time.Duration)
}

// Executor turns a (skill id, raw parameters) pair into a Result. It never
// returns an error and never panics.
type Executor struct {
	registry *skill.Registry
	creds    skill.Credentials
	recorder Recorder
	logger   *zap.Logger
}

// NewExecutor creates an executor over a populated registry.
func NewExecutor(registry *skill.Registry, creds skill.Credentials, recorder Recorder, logger *zap.Logger) *Executor {
	return &Executor{registry: registry, creds: creds, recorder: recorder, logger: logger}
}

// Execute resolves, validates and runs one skill.
func (e *Executor) Execute(ctx context.Context, skillID string, raw map[string]any) (res skill.Result) {
	start := time.Now()
	var cfg *skill.Config
	defer func() {
		if p := recover(); p != nil {
			res = skill.Failed(cfg, skillID, "%s", panicText(p))
			e.logger.Error("skill execution panicked", zap.String("skill", skillID), zap.Any("panic", p))
		}
		if e.recorder != nil {
			label := UnregisteredLabel
			if cfg != nil {
				label = cfg.ID
			}
			e.recorder.ObserveExecution(label, string(res.Status), time.Since(start))
		}
		e.logger.Info("skill executed",
			zap.String("skill", skillID),
			zap.String("status", string(res.Status)),
			zap.Duration("elapsed", time.Since(start)))
	}()

	h, cfg, ok := e.registry.Resolve(skillID)
	if !ok {
		return skill.Failed(nil, skillID, "Skill %s is not registered", skillID)
	}
	params, err := cfg.Schema.Validate(raw)
	if err != nil {
		return skill.Failed(cfg, skillID, "%s", err.Error())
	}
	return h.Execute(ctx, params, e.creds)
}

// Format renders a result with its skill's formatter. Unknown skills and
// formatter panics fall back to the default formatter.
func (e *Executor) Format(skillID string, r skill.Result) (out skill.Formatted) {
	fallback := &skill.Config{ID: skillID, Name: r.SkillName}
	if fallback.Name == "" {
		fallback.Name = skillID
	}
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("formatter panicked", zap.String("skill", skillID), zap.Any("panic", p))
			out = skill.DefaultFormat(fallback, r)
		}
	}()

	h, _, ok := e.registry.Resolve(skillID)
	if !ok {
		return skill.DefaultFormat(fallback, r)
	}
	return h.Format(r)
}

func panicText(p any) string {
	if err, ok := p.(error); ok {
		return fmt.Sprintf("%T: %v", err, err)
	}
	return fmt.Sprintf("%T: %v", p, p)
}
