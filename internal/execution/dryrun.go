package execution

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/skill"
)

// DryRun is a skill.Runner that never touches the network. Every call
// completes with a canned envelope echoing the parameters, which lets the
// whole pipeline run without provider credentials.
type DryRun struct {
	logger *zap.Logger
}

func NewDryRun(logger *zap.Logger) *DryRun {
	return &DryRun{logger: logger}
}

func (d *DryRun) RunDirect(_ context.Context, cfg *skill.Config, params skill.Params) skill.Result {
	d.logger.Info("dry run: would execute skill", zap.String("skill", cfg.Name), zap.Any("params", params))
	return skill.Succeeded(cfg, cannedOutput(params, ""), map[string]any{"dry_run": true})
}

func (d *DryRun) RunSession(_ context.Context, cfg *skill.Config, instruction string, params skill.Params, _ skill.Credentials) skill.Result {
	d.logger.Info("dry run: would run session task", zap.String("skill", cfg.Name), zap.String("instruction", instruction))
	return skill.Succeeded(cfg, cannedOutput(params, "Dry run: "+instruction), map[string]any{"dry_run": true})
}

func cannedOutput(params skill.Params, output string) json.RawMessage {
	data := make(map[string]any, len(params)+1)
	for k, v := range params {
		data[k] = v
	}
	if output != "" {
		data["output"] = output
	}
	out, _ := json.Marshal(map[string]any{
		"result": map[string]any{"success": true, "data": data},
	})
	return out
}
