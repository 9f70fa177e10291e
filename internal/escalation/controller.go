// Package escalation decides the next action on task failure: retry at the
// current tier, escalate to the next tier, or fail terminally. It owns no
// scheduling; the executor pool drives the actual retry loop and passes the
// attempt counters back in on every failure.
package escalation

import (
	"time"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
	"github.com/hugo-lorenzo-mato/merlin/internal/streaming"
)

// Action names the decision the controller reached.
type Action string

const (
	ActionRetry    Action = "retry"
	ActionEscalate Action = "escalate"
	ActionFail     Action = "fail"
)

// Decision is the controller's verdict for one failed attempt.
type Decision struct {
	Action  Action
	Delay   time.Duration   // meaningful only for ActionRetry
	NewTier core.ModelTier  // meaningful only for ActionEscalate
	Err     error           // the terminal error, meaningful only for ActionFail
}

// Attempts tracks the counters the executor must maintain per task across
// its retry/escalation lifetime and feed back into every Decide call.
type Attempts struct {
	SameTier int // attempts at the current tier since the last escalation
	Total    int // attempts across all tiers
	Conflict int // ApplyChanges conflicts seen, independent of Total
}

// Config holds the fixed thresholds from the config layer's
// tiers.max_retries and workspace.max_conflict_retries.
type Config struct {
	MaxRetries         int // default 3
	MaxConflictRetries int // default 3
	MaxTotalAttempts   int // default 6, bounds runaway cross-tier escalation

	DefaultMidModel            string
	DefaultPremiumProvider     string
	DefaultPremiumModel        string
}

// Controller applies the fixed rule table from spec.md §4.7.
type Controller struct {
	cfg     Config
	backoff Backoff
	bus     *streaming.Bus
}

// New builds a Controller. bus may be nil, in which case TaskRetrying events
// are not emitted (useful for tests that only want the Decision).
func New(cfg Config, backoff Backoff, bus *streaming.Bus) *Controller {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxConflictRetries <= 0 {
		cfg.MaxConflictRetries = 3
	}
	if cfg.MaxTotalAttempts <= 0 {
		cfg.MaxTotalAttempts = 6
	}
	return &Controller{cfg: cfg, backoff: backoff, bus: bus}
}

// Decide inspects err against tier and the accumulated attempts, returning
// the next action. taskID is used only to stamp the emitted TaskRetrying
// event; it's ignored when Decision.Action is ActionFail (no event fires on
// terminal failure — that's TaskFailed's job, emitted by the caller).
func (c *Controller) Decide(taskID string, tier core.ModelTier, err error, att Attempts) Decision {
	kind := core.KindOf(err)

	switch kind {
	case core.KindConflictDetected:
		return c.decideConflict(taskID, err, att)
	case core.KindValidationFailed:
		return c.decideBounded(taskID, tier, err, att, c.cfg.MaxRetries/2)
	case core.KindProviderUnavailable, core.KindRateLimitExceeded, core.KindTimeout:
		return c.decideBounded(taskID, tier, err, att, c.cfg.MaxRetries)
	default:
		// Terminal errors (InvalidTask, CyclicDependency, ExecutionFailed,
		// NoAvailableTier, lock contention, Cancelled, and any already-terminal
		// escalation/conflict-exhaustion error) propagate immediately.
		return Decision{Action: ActionFail, Err: err}
	}
}

func (c *Controller) decideConflict(taskID string, err error, att Attempts) Decision {
	if att.Conflict >= c.cfg.MaxConflictRetries {
		return Decision{Action: ActionFail, Err: core.NewError(core.KindMaxConflictRetries, "conflict retries exhausted").WithCause(err)}
	}
	c.emitRetrying(taskID, att.Total+1, err, "", false)
	return Decision{Action: ActionRetry, Delay: 0}
}

func (c *Controller) decideBounded(taskID string, tier core.ModelTier, err error, att Attempts, sameTierLimit int) Decision {
	if att.Total >= c.cfg.MaxTotalAttempts {
		return Decision{Action: ActionFail, Err: core.NewError(core.KindMaxRetriesExceeded, "retry/escalation attempt budget exhausted").WithCause(err)}
	}

	if sameTierLimit > 0 && att.SameTier < sameTierLimit {
		c.emitRetrying(taskID, att.Total+1, err, "", false)
		return Decision{Action: ActionRetry, Delay: c.backoff.Delay(att.SameTier + 1)}
	}

	next, ok := tier.Escalate(c.cfg.DefaultMidModel, c.cfg.DefaultPremiumProvider, c.cfg.DefaultPremiumModel)
	if !ok {
		return Decision{Action: ActionFail, Err: core.NewError(core.KindNoHigherTierAvailable, "already at the top tier").WithCause(err)}
	}
	c.emitRetrying(taskID, att.Total+1, err, next.String(), true)
	return Decision{Action: ActionEscalate, NewTier: next}
}

func (c *Controller) emitRetrying(taskID string, attempt int, err error, newTier string, escalated bool) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(streaming.NewTaskRetrying(taskID, attempt, err, newTier, escalated))
}
