package executor

import (
	"context"
	"time"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
	"github.com/hugo-lorenzo-mato/merlin/internal/provider"
	"github.com/hugo-lorenzo-mato/merlin/internal/streaming"
	"github.com/hugo-lorenzo-mato/merlin/internal/toolsrt"
)

// executeTask runs one task's full lifecycle per spec.md §4.4: acquire
// locks in lexicographic order, snapshot, route (unless an escalation
// already forced a tier), call the provider, apply its changes against the
// snapshot's base hashes, validate, and always release locks on the way
// out. Every step boundary emits a TaskProgress event.
func (p *Pool) executeTask(ctx context.Context, task *core.Task, st *taskState) (core.TaskResult, error) {
	start := time.Now()
	taskID := string(task.ID)

	if err := p.cfg.Cancel.CheckCancelled(); err != nil {
		return core.TaskResult{}, err
	}
	p.cfg.Bus.Publish(streaming.NewTaskStarted(taskID))

	paths := task.ContextNeeds.Files()
	if err := p.cfg.Locks.AcquireAllWrites(task.ID, paths); err != nil {
		return core.TaskResult{}, err
	}
	defer p.cfg.Locks.ReleaseAll(task.ID)

	snap := p.cfg.Workspace.Snapshot(paths)
	p.cfg.Bus.Publish(streaming.NewTaskProgress(taskID, "snapshot", 0.2))

	tier := st.tier
	if !st.tierSet {
		decision, err := p.cfg.Router.Route(task)
		if err != nil {
			return core.TaskResult{}, err
		}
		tier = decision.Tier
		st.tier = tier
		st.tierSet = true
	}
	p.cfg.Bus.Publish(streaming.NewTaskProgress(taskID, "route", 0.4))

	prov, ok := p.cfg.Providers(tier.Kind)
	if !ok {
		return core.TaskResult{}, core.NewError(core.KindProviderUnavailable, "no provider configured for tier "+string(tier.Kind))
	}

	query := provider.Query{
		TaskID:      task.ID,
		Description: task.Description,
		Context: provider.Context{
			Files:           snap.Content,
			EstimatedTokens: task.ContextNeeds.EstimatedTokens,
		},
	}

	genCtx, genCancel := context.WithTimeout(ctx, p.cfg.ProviderTimeout)
	defer genCancel()

	p.cfg.Bus.Publish(streaming.NewStepStarted(taskID, "generate"))
	genStart := time.Now()
	resp, err := prov.Generate(genCtx, query)
	if err != nil {
		return core.TaskResult{}, err
	}
	p.cfg.Bus.Publish(streaming.NewStepCompleted(taskID, "generate", time.Since(genStart)))
	p.cfg.Bus.Publish(streaming.NewTaskProgress(taskID, "generate", 0.6))

	if err := p.cfg.Cancel.CheckCancelled(); err != nil {
		return core.TaskResult{}, err
	}

	if err := p.runEmbeddedToolCall(ctx, taskID, resp.Text); err != nil {
		return core.TaskResult{}, err
	}

	if _, err := p.cfg.Workspace.ApplyChanges(resp.Changes, snap.Hashes); err != nil {
		return core.TaskResult{}, err
	}
	p.cfg.Bus.Publish(streaming.NewTaskProgress(taskID, "apply", 0.8))

	postSnap := p.cfg.Workspace.Snapshot(paths)
	validation := p.cfg.Validator.Validate(ctx, resp, task, postSnap)
	if !validation.Passed {
		return core.TaskResult{}, core.NewError(core.KindValidationFailed, "validation below threshold for task "+taskID).
			WithDetail("score", validation.Score)
	}
	p.cfg.Bus.Publish(streaming.NewTaskProgress(taskID, "validate", 1.0))

	duration := time.Since(start)
	result := core.TaskResult{
		TaskID:     task.ID,
		Response:   resp,
		TierUsed:   tier,
		TokensUsed: resp.Tokens,
		Validation: validation,
		DurationMS: duration.Milliseconds(),
	}
	p.cfg.Bus.Publish(streaming.NewTaskCompleted(taskID, duration, resp.Tokens))
	return result, nil
}

// runEmbeddedToolCall extracts a fenced TypeScript block from a provider's
// response text, if any, and hands it to the configured ToolRuntime. A
// response with no fenced block, or a pool with no ToolRuntime configured,
// is a no-op: the tool-call step is optional, not every task's response
// requires one.
func (p *Pool) runEmbeddedToolCall(ctx context.Context, taskID, responseText string) error {
	if p.cfg.ToolRuntime == nil {
		return nil
	}
	code, ok := toolsrt.ExtractCode(responseText)
	if !ok {
		return nil
	}

	p.cfg.Bus.Publish(streaming.NewToolCallStarted(taskID, "typescript"))
	toolCtx, toolCancel := context.WithTimeout(ctx, p.cfg.ProviderTimeout)
	defer toolCancel()
	_, err := p.cfg.ToolRuntime.Execute(toolCtx, code)
	p.cfg.Bus.Publish(streaming.NewToolCallCompleted(taskID, "typescript", err == nil))
	return err
}
