package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/notify"
	"github.com/nidhogg/tappy/internal/planner"
	"github.com/nidhogg/tappy/internal/skill"
	"github.com/nidhogg/tappy/internal/store"
)

// Outcome summarises what processing a job produced.
type Outcome string

const (
	OutcomeNoAction       Outcome = "no_action"
	OutcomeNotified       Outcome = "notified"
	OutcomeFailedNotified Outcome = "failed_notified"
	OutcomeError          Outcome = "error"
)

// Planner decides whether an entry should trigger a skill.
type Planner interface {
	Plan(ctx context.Context, text string) (*planner.Decision, error)
}

// Executor runs and formats skills.
type Executor interface {
	Execute(ctx context.Context, skillID string, raw map[string]any) skill.Result
	Format(skillID string, r skill.Result) skill.Formatted
}

// Broadcaster pushes a stored notification to live clients.
type Broadcaster interface {
	Broadcast(n *store.Notification) (int, error)
}

// Dispatcher relays a stored notification to external channels.
type Dispatcher interface {
	Dispatch(n *store.Notification)
}

// Pipeline is the per-job flow: plan, execute, format, persist, fan out.
type Pipeline struct {
	planner  Planner
	executor Executor
	repo     store.Repository
	hub      Broadcaster
	relays   Dispatcher
	limits   notify.Limits
	logger   *zap.Logger
}

// NewPipeline wires the collaborators. hub and relays may be nil.
func NewPipeline(p Planner, e Executor, repo store.Repository, hub Broadcaster, relays Dispatcher, limits notify.Limits, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		planner:  p,
		executor: e,
		repo:     repo,
		hub:      hub,
		relays:   relays,
		limits:   limits,
		logger:   logger,
	}
}

func (p *Pipeline) Process(ctx context.Context, job Job) (Outcome, error) {
	log := p.logger.With(zap.String("job", job.ID), zap.Int64("entry", job.EntryID))
	p.setStatus(ctx, log, job.EntryID, store.EntryProcessing)

	decision, err := p.planner.Plan(ctx, job.Text)
	if err != nil {
		log.Warn("planner failed, no action taken", zap.Error(err))
	}
	if !decision.Actionable() {
		if decision != nil {
			log.Info("no action", zap.String("reason", decision.Reason))
		}
		p.setStatus(ctx, log, job.EntryID, store.EntryCompleted)
		return OutcomeNoAction, nil
	}

	log = log.With(zap.String("skill", decision.SkillID))
	log.Info("executing skill", zap.String("reason", decision.Reason))

	result := p.executor.Execute(ctx, decision.SkillID, decision.Parameters)
	formatted := p.executor.Format(decision.SkillID, result)
	n := notify.Build(job.EntryID, job.Text, decision.SkillID, formatted, p.limits)

	if err := p.repo.CreateNotification(ctx, n); err != nil {
		p.setStatus(ctx, log, job.EntryID, store.EntryFailed)
		return OutcomeError, fmt.Errorf("persist notification: %w", err)
	}
	log.Info("notification created",
		zap.Int64("notification", n.ID),
		zap.String("status", string(result.Status)),
		zap.String("title", n.Title))

	if p.hub != nil {
		if _, err := p.hub.Broadcast(n); err != nil {
			log.Warn("broadcast failed", zap.Error(err))
		}
	}
	if p.relays != nil {
		p.relays.Dispatch(n)
	}

	p.setStatus(ctx, log, job.EntryID, store.EntryCompleted)
	if result.Completed() {
		return OutcomeNotified, nil
	}
	return OutcomeFailedNotified, nil
}

func (p *Pipeline) setStatus(ctx context.Context, log *zap.Logger, entryID int64, status store.EntryStatus) {
	if err := p.repo.SetEntryStatus(ctx, entryID, status); err != nil {
		log.Warn("set entry status failed", zap.String("status", string(status)), zap.Error(err))
	}
}
