package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/automation"
	"github.com/nidhogg/tappy/internal/skill"
)

const cancelledMessage = "Request cancelled (timeout or connection error). Browser Use API may be slow or unavailable."

// Automation is the subset of the provider client the protocol needs.
type Automation interface {
	ExecuteSkill(ctx context.Context, skillID string, params map[string]any) (json.RawMessage, error)
	CreateSession(ctx context.Context, profileID string) (*automation.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	CreateTask(ctx context.Context, req automation.TaskRequest) (*automation.Task, error)
	GetTask(ctx context.Context, taskID string) (*automation.Task, error)
	DirectTimeout() time.Duration
}

// ProtocolConfig tunes session polling.
type ProtocolConfig struct {
	PollInterval   time.Duration
	PollAttempts   int
	CleanupTimeout time.Duration
}

// Protocol implements skill.Runner against the automation provider.
type Protocol struct {
	client Automation
	cfg    ProtocolConfig
	logger *zap.Logger
}

// NewProtocol creates the runner. Zero config values take the provider's
// usual cadence: a poll every 3s for at most 100 attempts.
func NewProtocol(client Automation, cfg ProtocolConfig, logger *zap.Logger) *Protocol {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 100
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = 30 * time.Second
	}
	return &Protocol{client: client, cfg: cfg, logger: logger}
}

// RunDirect performs one stateless call to the skill's execute endpoint.
func (p *Protocol) RunDirect(ctx context.Context, cfg *skill.Config, params skill.Params) skill.Result {
	out, err := p.client.ExecuteSkill(ctx, cfg.ID, params)
	if err != nil {
		return skill.Failed(cfg, cfg.ID, "%s", p.describe(ctx, err))
	}
	if !json.Valid(out) {
		out, _ = json.Marshal(string(out))
	}
	return skill.Succeeded(cfg, out, map[string]any{"api_version": "v2"})
}

// RunSession runs the skill as an agent task inside a session built from
// the caller's credential profile. The session is deleted exactly once on
// every path after it was created.
func (p *Protocol) RunSession(ctx context.Context, cfg *skill.Config, instruction string, params skill.Params, creds skill.Credentials) skill.Result {
	if creds.ProfileID == "" {
		return skill.Failed(cfg, cfg.ID, "Profile ID required for authenticated action skills")
	}

	sess, err := p.client.CreateSession(ctx, creds.ProfileID)
	if err != nil {
		return skill.Failed(cfg, cfg.ID, "Failed to create session: %s", errorBody(err))
	}
	log := p.logger.With(zap.String("skill", cfg.ID), zap.String("session", sess.ID))
	defer p.release(ctx, log, sess.ID)

	task, err := p.client.CreateTask(ctx, automation.TaskRequest{
		SessionID: sess.ID,
		Skills:    []string{cfg.ID},
		Task:      instruction,
	})
	if err != nil {
		return skill.Failed(cfg, cfg.ID, "Failed to create task: %s", errorBody(err))
	}
	log = log.With(zap.String("task", task.ID))
	log.Info("session task created", zap.String("instruction", instruction))

	timer := time.NewTimer(p.cfg.PollInterval)
	defer timer.Stop()
	for attempt := 1; attempt <= p.cfg.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return skill.Failed(cfg, cfg.ID, cancelledMessage)
		case <-timer.C:
		}
		timer.Reset(p.cfg.PollInterval)

		status, err := p.client.GetTask(ctx, task.ID)
		if err != nil {
			log.Warn("poll task failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if !status.Terminal() {
			continue
		}
		log.Info("session task finished", zap.String("status", status.Status), zap.Int("attempts", attempt))

		if status.Succeeded() {
			return skill.Succeeded(cfg, sessionOutput(params, status), map[string]any{
				"task_id": task.ID,
				"steps":   len(status.Steps),
			})
		}
		msg := status.OutputText()
		if msg == "" {
			msg = "Task " + status.Status
		}
		return skill.Failed(cfg, cfg.ID, "%s", msg)
	}

	return skill.Failed(cfg, cfg.ID, "Task execution timed out after %s",
		p.cfg.PollInterval*time.Duration(p.cfg.PollAttempts))
}

// release deletes the session on a context that survives caller
// cancellation.
func (p *Protocol) release(ctx context.Context, log *zap.Logger, sessionID string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.CleanupTimeout)
	defer cancel()
	if err := p.client.DeleteSession(dctx, sessionID); err != nil {
		log.Warn("delete session failed", zap.Error(err))
	}
}

// describe maps a direct-call error onto the user-facing failure text.
func (p *Protocol) describe(ctx context.Context, err error) string {
	var apiErr *automation.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	if ctx.Err() != nil {
		return cancelledMessage
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Sprintf("Browser Use API request timed out after %s", p.client.DirectTimeout())
	}
	return err.Error()
}

func errorBody(err error) string {
	var apiErr *automation.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return err.Error()
}

// sessionOutput wraps a finished task in the provider's result envelope so
// session and direct results format the same way.
func sessionOutput(params skill.Params, task *automation.Task) json.RawMessage {
	data := make(map[string]any, len(params)+2)
	for k, v := range params {
		data[k] = v
	}
	content := params.String("content")
	if content == "" {
		content = params.String("message")
	}
	if content != "" {
		data["content"] = content
	}
	if len(task.Output) > 0 && json.Valid(task.Output) {
		data["output"] = task.Output
	}
	out, err := json.Marshal(map[string]any{
		"result": map[string]any{"success": true, "data": data},
	})
	if err != nil {
		return json.RawMessage(`{"result":{"success":true}}`)
	}
	return out
}
