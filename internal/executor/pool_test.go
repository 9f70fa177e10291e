package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

// fakeToolRuntime records every code block it's handed.
type fakeToolRuntime struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeToolRuntime) Execute(_ context.Context, code string) (toolsrt.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, code)
	return toolsrt.DirectResult("ok"), nil
}

// fakeProvider is a scripted ModelProvider: each call consumes one entry
// from responses (or errs), in order.
type fakeProvider struct {
	tier      core.TierKind
	responses []core.Response
	errs      []error

	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Name() string                            { return string(f.tier) }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool     { return true }
func (f *fakeProvider) EstimateCost(ctx provider.Context) float64 { return 0 }
func (f *fakeProvider) Generate(ctx context.Context, q provider.Query) (core.Response, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.mu.Unlock()
	var resp core.Response
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return resp, err
}

func alwaysPassPipeline() *validator.Pipeline {
	return validator.New(validator.Config{})
}

func noAvailability() *router.AvailabilityChecker {
	return router.NewAvailabilityChecker(map[core.TierKind]router.TierAvailability{
		core.TierLocal:   {Enabled: true, CredentialPresent: true},
		core.TierMid:     {Enabled: true, CredentialPresent: true},
		core.TierPremium: {Enabled: true, CredentialPresent: true},
	})
}

func newTestPool(t *testing.T, tasks []*core.Task, providers map[core.TierKind]provider.ModelProvider) (*Pool, *streaming.Bus) {
	t.Helper()
	g, err := graph.FromTasks(tasks)
	require.NoError(t, err)
	cag := graph.NewConflictAware(g)

	r := router.New(noAvailability(), router.TierModels{
		LocalModel: "local-model", MidModel: "mid-model",
		PremiumProvider: "anthropic", PremiumModel: "premium-model",
	}, router.UnitPrices{})

	bus := streaming.New(0)
	ws := workspace.New(t.TempDir())
	escCtrl := escalation.New(escalation.Config{
		DefaultMidModel:        "mid-model",
		DefaultPremiumProvider: "anthropic",
		DefaultPremiumModel:    "premium-model",
	}, escalation.DefaultBackoff(), bus)

	resolver := func(kind core.TierKind) (provider.ModelProvider, bool) {
		p, ok := providers[kind]
		return p, ok
	}

	pool := New(Config{
		Graph:      cag,
		Router:     r,
		Providers:  resolver,
		Workspace:  ws,
		Locks:      lock.New(),
		Validator:  alwaysPassPipeline(),
		Escalation: escCtrl,
		Bus:        bus,
		Cancel:     control.NewCancelToken(),
	})
	return pool, bus
}

func TestRun_ProviderResponseWithFencedCodeInvokesToolRuntime(t *testing.T) {
	t.Parallel()
	task := simpleTask("run a generated script", core.ComplexityTrivial, core.PriorityLow)

	body := "```typescript\nconsole.log('hi')\n```"
	prov := &fakeProvider{tier: core.TierLocal, responses: []core.Response{{Text: "here:\n" + body}}}

	g, err := graph.FromTasks([]*core.Task{task})
	require.NoError(t, err)
	cag := graph.NewConflictAware(g)
	r := router.New(noAvailability(), router.TierModels{LocalModel: "local-model", MidModel: "mid-model", PremiumProvider: "anthropic", PremiumModel: "premium-model"}, router.UnitPrices{})
	bus := streaming.New(0)
	ws := workspace.New(t.TempDir())
	escCtrl := escalation.New(escalation.Config{DefaultMidModel: "mid-model", DefaultPremiumProvider: "anthropic", DefaultPremiumModel: "premium-model"}, escalation.DefaultBackoff(), bus)
	runtime := &fakeToolRuntime{}

	pool := New(Config{
		Graph: cag, Router: r, Workspace: ws, Locks: lock.New(),
		Validator: alwaysPassPipeline(), Escalation: escCtrl, Bus: bus, Cancel: control.NewCancelToken(),
		ToolRuntime: runtime,
		Providers: func(core.TierKind) (provider.ModelProvider, bool) { return prov, true },
	})

	outcomes, err := pool.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, core.StatusCompleted, outcomes[0].Status())

	require.Len(t, runtime.calls, 1)
	assert.Equal(t, "console.log('hi')\n", runtime.calls[0])
}

func simpleTask(desc string, complexity core.Complexity, priority core.Priority) *core.Task {
	return core.NewTask(desc, complexity, priority, core.ActionModify)
}

func TestRun_SingleTrivialTaskSucceeds(t *testing.T) {
	t.Parallel()
	task := simpleTask("rename a variable", core.ComplexityTrivial, core.PriorityLow)

	prov := &fakeProvider{tier: core.TierLocal, responses: []core.Response{{Text: "done", Tokens: 10}}}
	pool, _ := newTestPool(t, []*core.Task{task}, map[core.TierKind]provider.ModelProvider{core.TierLocal: prov})

	outcomes, err := pool.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.NotNil(t, outcomes[0].Result)
	assert.Equal(t, task.ID, outcomes[0].Result.TaskID)
	assert.Equal(t, core.TierLocal, outcomes[0].Result.TierUsed.Kind)
	assert.Equal(t, core.StatusCompleted, outcomes[0].Status())
}

func TestRun_TwoIndependentTasksBothSucceed(t *testing.T) {
	t.Parallel()
	a := simpleTask("touch a.go", core.ComplexityTrivial, core.PriorityLow)
	b := simpleTask("touch b.go", core.ComplexityTrivial, core.PriorityLow)
	a.ContextNeeds.AddFile("a.go")
	b.ContextNeeds.AddFile("b.go")

	prov := &fakeProvider{tier: core.TierLocal, responses: []core.Response{{Text: "a"}, {Text: "b"}}}
	pool, _ := newTestPool(t, []*core.Task{a, b}, map[core.TierKind]provider.ModelProvider{core.TierLocal: prov})

	outcomes, err := pool.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)
}

func TestRun_DependencyPipelineRunsInOrder(t *testing.T) {
	t.Parallel()
	first := simpleTask("create file", core.ComplexityTrivial, core.PriorityLow)
	second := simpleTask("modify created file", core.ComplexityTrivial, core.PriorityLow)
	require.NoError(t, second.DependsOn(first.ID))

	prov := &fakeProvider{tier: core.TierLocal, responses: []core.Response{{Text: "1"}, {Text: "2"}}}
	pool, _ := newTestPool(t, []*core.Task{first, second}, map[core.TierKind]provider.ModelProvider{core.TierLocal: prov})

	outcomes, err := pool.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
}

func TestRun_FailedTaskSkipsTransitiveDependents(t *testing.T) {
	t.Parallel()
	first := simpleTask("create file", core.ComplexityTrivial, core.PriorityLow)
	second := simpleTask("modify created file", core.ComplexityTrivial, core.PriorityLow)
	third := simpleTask("modify twice-removed file", core.ComplexityTrivial, core.PriorityLow)
	require.NoError(t, second.DependsOn(first.ID))
	require.NoError(t, third.DependsOn(second.ID))

	terminal := core.NewError(core.KindExecutionFailed, "provider call aborted irrecoverably")
	prov := &fakeProvider{tier: core.TierLocal, errs: []error{terminal}}
	pool, bus := newTestPool(t, []*core.Task{first, second, third}, map[core.TierKind]provider.ModelProvider{core.TierLocal: prov})
	sub := bus.Subscribe(streaming.TypeTaskSkipped)

	outcomes, err := pool.Run(context.Background())
	require.Error(t, err)
	require.Len(t, outcomes, 3, "one outcome per task, including skipped dependents")

	byID := make(map[core.TaskID]core.TaskOutcome, len(outcomes))
	for _, o := range outcomes {
		byID[o.TaskID] = o
	}

	failedOutcome := byID[first.ID]
	assert.Equal(t, core.StatusFailed, failedOutcome.Status())
	assert.Error(t, failedOutcome.Err)

	secondOutcome := byID[second.ID]
	require.NotNil(t, secondOutcome.Skipped, "direct dependent must be Skipped")
	assert.Equal(t, core.StatusSkipped, secondOutcome.Status())
	assert.Equal(t, first.ID, secondOutcome.Skipped.UpstreamID)

	thirdOutcome := byID[third.ID]
	require.NotNil(t, thirdOutcome.Skipped, "transitive dependent must also be Skipped")
	assert.Equal(t, second.ID, thirdOutcome.Skipped.UpstreamID)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case evt := <-sub:
			skipped, ok := evt.(streaming.TaskSkipped)
			require.True(t, ok)
			seen[skipped.TaskID] = true
		default:
			t.Fatal("expected two TaskSkipped events")
		}
	}
	assert.True(t, seen[string(second.ID)])
	assert.True(t, seen[string(third.ID)])
}

func TestRun_CyclicDependencyFailsFast(t *testing.T) {
	t.Parallel()
	a := simpleTask("a", core.ComplexityTrivial, core.PriorityLow)
	b := simpleTask("b", core.ComplexityTrivial, core.PriorityLow)
	require.NoError(t, a.DependsOn(b.ID))
	require.NoError(t, b.DependsOn(a.ID))

	pool, _ := newTestPool(t, []*core.Task{a, b}, map[core.TierKind]provider.ModelProvider{})
	_, err := pool.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindCyclicDependency, core.KindOf(err))
}

func TestRun_ConflictDetectedRetriesWithinBudget(t *testing.T) {
	t.Parallel()
	task := simpleTask("edit shared.go", core.ComplexityTrivial, core.PriorityLow)
	task.ContextNeeds.AddFile("shared.go")
	pool, _ := newTestPool(t, []*core.Task{task}, map[core.TierKind]provider.ModelProvider{})

	conflictErr := core.NewError(core.KindConflictDetected, "workspace diverged")
	decision := pool.cfg.Escalation.Decide(string(task.ID), core.Local("local-model"), conflictErr, escalation.Attempts{})
	assert.Equal(t, escalation.ActionRetry, decision.Action)

	exhausted := pool.cfg.Escalation.Decide(string(task.ID), core.Local("local-model"), conflictErr, escalation.Attempts{Conflict: 3})
	assert.Equal(t, escalation.ActionFail, exhausted.Action)
	assert.Equal(t, core.KindMaxConflictRetries, core.KindOf(exhausted.Err))
}

func TestRun_ValidationFailureEscalatesTier(t *testing.T) {
	t.Parallel()
	task := simpleTask("risky change", core.ComplexityMedium, core.PriorityMedium)

	local := &fakeProvider{tier: core.TierLocal, responses: []core.Response{{Text: "syntax error here"}}}
	mid := &fakeProvider{tier: core.TierMid, responses: []core.Response{{Text: "good"}}}

	g, err := graph.FromTasks([]*core.Task{task})
	require.NoError(t, err)
	cag := graph.NewConflictAware(g)
	r := router.New(noAvailability(), router.TierModels{LocalModel: "local-model", MidModel: "mid-model", PremiumProvider: "anthropic", PremiumModel: "premium-model"}, router.UnitPrices{})
	bus := streaming.New(0)
	ws := workspace.New(t.TempDir())

	pipeline := validator.New(validator.Config{Enabled: true, SyntaxCheck: true, Threshold: 0.8})

	escCtrl := escalation.New(escalation.Config{
		MaxRetries: 1, // MaxRetries/2 floors to 0: escalate on the first validation failure
		DefaultMidModel: "mid-model", DefaultPremiumProvider: "anthropic", DefaultPremiumModel: "premium-model",
	}, escalation.DefaultBackoff(), bus)

	pool := New(Config{
		Graph: cag, Router: r, Workspace: ws, Locks: lock.New(),
		Validator: pipeline, Escalation: escCtrl, Bus: bus, Cancel: control.NewCancelToken(),
		Providers: func(kind core.TierKind) (provider.ModelProvider, bool) {
			switch kind {
			case core.TierLocal:
				return local, true
			case core.TierMid:
				return mid, true
			}
			return nil, false
		},
	})

	outcomes, err := pool.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.NotNil(t, outcomes[0].Result)
	assert.Equal(t, core.TierMid, outcomes[0].Result.TierUsed.Kind)
}

func TestRun_TransientErrorRetriesSameTierThenSucceeds(t *testing.T) {
	t.Parallel()
	task := simpleTask("flaky call", core.ComplexityTrivial, core.PriorityLow)

	transient := core.NewError(core.KindProviderUnavailable, "upstream timed out")
	prov := &fakeProvider{
		tier:      core.TierLocal,
		responses: []core.Response{{}, {Text: "ok"}},
		errs:      []error{transient, nil},
	}
	pool, bus := newTestPool(t, []*core.Task{task}, map[core.TierKind]provider.ModelProvider{core.TierLocal: prov})
	sub := bus.Subscribe(streaming.TypeTaskRetrying)

	outcomes, err := pool.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, 2, prov.calls)

	select {
	case evt := <-sub:
		retrying, ok := evt.(streaming.TaskRetrying)
		require.True(t, ok)
		assert.Equal(t, 1, retrying.Attempt)
		assert.False(t, retrying.Escalated)
	default:
		t.Fatal("expected a TaskRetrying event")
	}
}

func TestRun_CancelledBeforeDispatchReturnsCancelled(t *testing.T) {
	t.Parallel()
	task := simpleTask("a", core.ComplexityTrivial, core.PriorityLow)
	prov := &fakeProvider{tier: core.TierLocal}
	pool, _ := newTestPool(t, []*core.Task{task}, map[core.TierKind]provider.ModelProvider{core.TierLocal: prov})
	pool.cfg.Cancel.Cancel()

	_, err := pool.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindCancelled, core.KindOf(err))
}

func TestEarliestPending_SkipsCompletedAndZeroValues(t *testing.T) {
	t.Parallel()
	pool := &Pool{}
	id := core.NewTaskID()
	states := map[core.TaskID]*taskState{
		id: {pendingUntil: time.Now().Add(50 * time.Millisecond)},
	}
	wait, ok := pool.earliestPending(states, map[core.TaskID]bool{})
	require.True(t, ok)
	assert.Greater(t, wait, time.Duration(0))
}
