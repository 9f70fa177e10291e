// Package executor drives a TaskGraph to completion: a single cooperative
// scheduler spawns parallel task bodies onto a bounded worker pool,
// integrating file locking, workspace snapshots, routing, validation, and
// the escalation controller's retry/escalate decisions.
package executor

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hugo-lorenzo-mato/merlin/internal/control"
	"github.com/hugo-lorenzo-mato/merlin/internal/core"
	"github.com/hugo-lorenzo-mato/merlin/internal/escalation"
	"github.com/hugo-lorenzo-mato/merlin/internal/graph"
	"github.com/hugo-lorenzo-mato/merlin/internal/lock"
	"github.com/hugo-lorenzo-mato/merlin/internal/provider"
	"github.com/hugo-lorenzo-mato/merlin/internal/router"
	"github.com/hugo-lorenzo-mato/merlin/internal/streaming"
	"github.com/hugo-lorenzo-mato/merlin/internal/toolsrt"
	"github.com/hugo-lorenzo-mato/merlin/internal/validator"
	"github.com/hugo-lorenzo-mato/merlin/internal/workspace"
)

// ProviderResolver returns the ModelProvider for a tier kind, or false if
// none is configured — the executor fails the dispatch with ProviderUnavailable.
type ProviderResolver func(core.TierKind) (provider.ModelProvider, bool)

// Config bundles the Pool's collaborators and tunables.
type Config struct {
	Graph        *graph.ConflictAwareTaskGraph
	Router       *router.Router
	Providers    ProviderResolver
	Workspace    *workspace.State
	Locks        *lock.Manager
	Validator    *validator.Pipeline
	Escalation   *escalation.Controller
	Bus          *streaming.Bus
	Cancel       *control.CancelToken
	// ToolRuntime, when set, executes a fenced TypeScript block a provider
	// response embeds. Left nil, responses carrying one are validated as
	// plain text with no tool-call side effect — the runtime is an
	// external collaborator, not a required dependency.
	ToolRuntime  toolsrt.TypeScriptRuntime
	MaxConcurrent int64 // default 4
	ProviderTimeout time.Duration // default 120s
}

// Pool drives graph to completion per spec.md §4.4's scheduling loop.
type Pool struct {
	cfg Config
	sem *semaphore.Weighted
}

// New builds a Pool. MaxConcurrent/ProviderTimeout default when zero.
func New(cfg Config) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 120 * time.Second
	}
	if cfg.Cancel == nil {
		cfg.Cancel = control.NewCancelToken()
	}
	return &Pool{cfg: cfg, sem: semaphore.NewWeighted(cfg.MaxConcurrent)}
}

// taskState is the executor's mutable per-task bookkeeping, kept outside
// core.Task to preserve its immutability invariant.
type taskState struct {
	task         *core.Task
	tier         core.ModelTier
	tierSet      bool
	attempts     escalation.Attempts
	pendingUntil time.Time
}

type outcome struct {
	taskID core.TaskID
	result core.TaskResult
	err    error
}

// Run drives the graph to completion, returning one core.TaskOutcome per
// task — completed, terminally failed, or skipped because an upstream
// dependency failed — so len(outcomes) == len(tasks) per spec.md §7's
// "|results| = |tasks|, including Skipped" invariant. A task that fails
// terminally does not abort the run: its dependents are never scheduled
// (they can never become ready, since the failed task never joins
// `completed`) and are instead reported as Skipped; Run returns the first
// terminal failure alongside every outcome collected.
func (p *Pool) Run(ctx context.Context) ([]core.TaskOutcome, error) {
	if p.cfg.Graph.HasCycles() {
		return nil, core.NewError(core.KindCyclicDependency, "task graph contains a cycle")
	}

	completed := make(map[core.TaskID]bool)
	running := make(map[core.TaskID]bool)
	blocked := make(map[core.TaskID]bool) // failed or skipped: never ready, never re-offered
	states := make(map[core.TaskID]*taskState)
	for _, t := range p.cfg.Graph.Tasks() {
		states[t.ID] = &taskState{task: t}
	}

	outcomeCh := make(chan outcome)
	var outcomes []core.TaskOutcome
	var firstFailure error
	inFlight := 0

	for !p.cfg.Graph.IsComplete(completed) {
		if p.cfg.Cancel.Cancelled() {
			return outcomes, core.NewError(core.KindCancelled, "execution cancelled")
		}

		ready := p.readyTasks(states, completed, running, blocked)
		for _, t := range ready {
			if int64(inFlight) >= p.cfg.MaxConcurrent {
				break
			}
			if err := p.sem.Acquire(ctx, 1); err != nil {
				return outcomes, err
			}
			running[t.ID] = true
			inFlight++
			st := states[t.ID]
			go func(t *core.Task, st *taskState) {
				res, err := p.executeTask(ctx, t, st)
				outcomeCh <- outcome{taskID: t.ID, result: res, err: err}
			}(t, st)
		}

		if inFlight == 0 {
			// Nothing running and nothing became ready: either every
			// remaining task is gated behind a pendingUntil delay (wait for
			// the earliest one) or a dependency failed terminally (stuck).
			if wait, ok := p.earliestPending(states, completed); ok {
				select {
				case <-time.After(wait):
					continue
				case <-p.cfg.Cancel.Done():
					return outcomes, core.NewError(core.KindCancelled, "execution cancelled")
				case <-ctx.Done():
					return outcomes, ctx.Err()
				}
			}
			break
		}

		select {
		case <-p.cfg.Cancel.Done():
			return outcomes, core.NewError(core.KindCancelled, "execution cancelled")
		case o := <-outcomeCh:
			p.sem.Release(1)
			inFlight--
			delete(running, o.taskID)

			if o.err == nil {
				completed[o.taskID] = true
				result := o.result
				outcomes = append(outcomes, core.TaskOutcome{TaskID: o.taskID, Result: &result})
				continue
			}

			st := states[o.taskID]

			// Lock contention is a scheduling artifact, not a task failure:
			// ReadyNonConflictingTasks already excludes declared-file
			// overlaps, so this only fires on the rare race where a task's
			// actual touched paths exceed what it declared. Just requeue it
			// for the next round without burning a retry/escalation attempt.
			switch core.KindOf(o.err) {
			case core.KindFileLockedByTask, core.KindFileHasActiveReaders:
				continue
			}

			decision := p.cfg.Escalation.Decide(string(o.taskID), st.tier, o.err, st.attempts)
			switch decision.Action {
			case escalation.ActionRetry:
				st.attempts.Total++
				if core.KindOf(o.err) == core.KindConflictDetected {
					st.attempts.Conflict++
				} else {
					st.attempts.SameTier++
				}
				st.pendingUntil = time.Now().Add(decision.Delay)
			case escalation.ActionEscalate:
				st.attempts.Total++
				st.attempts.SameTier = 0
				st.tier = decision.NewTier
				st.tierSet = true
				st.pendingUntil = time.Time{}
			case escalation.ActionFail:
				// Deliberately not added to completed: a terminal failure
				// must never satisfy a dependent's readiness check. Its
				// dependents simply never become ready; they are reported
				// below as Skipped rather than left out of outcomes.
				blocked[o.taskID] = true
				if firstFailure == nil {
					firstFailure = decision.Err
				}
				failedErr := decision.Err
				outcomes = append(outcomes, core.TaskOutcome{TaskID: o.taskID, Err: failedErr})
				p.cfg.Bus.Publish(streaming.NewTaskFailed(string(o.taskID), failedErr, false))
				p.skipDependents(o.taskID, blocked, &outcomes)
			}
		}
	}

	return outcomes, firstFailure
}

// skipDependents walks the graph's dependency edges to find every task
// (transitively) that depends on failedID, marks each as blocked so it is
// never scheduled, and records a core.SkippedResult outcome for it, per
// spec.md §7's "dependents of failed tasks are reported Skipped(upstream_id)".
func (p *Pool) skipDependents(failedID core.TaskID, blocked map[core.TaskID]bool, outcomes *[]core.TaskOutcome) {
	for _, t := range p.cfg.Graph.Tasks() {
		if blocked[t.ID] {
			continue
		}
		for _, dep := range t.DependencyIDs() {
			if dep != failedID {
				continue
			}
			blocked[t.ID] = true
			skipped := core.NewSkippedResult(t.ID, failedID)
			*outcomes = append(*outcomes, core.TaskOutcome{TaskID: t.ID, Skipped: &skipped})
			p.cfg.Bus.Publish(streaming.NewTaskSkipped(string(t.ID), string(failedID)))
			p.skipDependents(t.ID, blocked, outcomes)
			break
		}
	}
}

// readyTasks wraps the conflict-aware ready set with a pendingUntil filter:
// a task that's mid-backoff isn't re-dispatched until its delay elapses.
func (p *Pool) readyTasks(states map[core.TaskID]*taskState, completed, running, blocked map[core.TaskID]bool) []*core.Task {
	ready := p.cfg.Graph.ReadyNonConflictingTasks(completed, running)
	now := time.Now()
	out := make([]*core.Task, 0, len(ready))
	for _, t := range ready {
		if blocked[t.ID] {
			continue
		}
		if st, ok := states[t.ID]; ok && !st.pendingUntil.IsZero() && st.pendingUntil.After(now) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (p *Pool) earliestPending(states map[core.TaskID]*taskState, completed map[core.TaskID]bool) (time.Duration, bool) {
	var earliest time.Time
	found := false
	now := time.Now()
	for id, st := range states {
		if completed[id] {
			continue
		}
		if st.pendingUntil.IsZero() {
			continue
		}
		if !found || st.pendingUntil.Before(earliest) {
			earliest = st.pendingUntil
			found = true
		}
	}
	if !found {
		return 0, false
	}
	if earliest.Before(now) {
		return 0, true
	}
	return earliest.Sub(now), true
}
