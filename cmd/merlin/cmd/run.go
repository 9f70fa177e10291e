package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/merlin/internal/analyzer"
	"github.com/hugo-lorenzo-mato/merlin/internal/control"
	"github.com/hugo-lorenzo-mato/merlin/internal/core"
	"github.com/hugo-lorenzo-mato/merlin/internal/escalation"
	"github.com/hugo-lorenzo-mato/merlin/internal/executor"
	"github.com/hugo-lorenzo-mato/merlin/internal/graph"
	"github.com/hugo-lorenzo-mato/merlin/internal/lock"
	"github.com/hugo-lorenzo-mato/merlin/internal/provider"
	"github.com/hugo-lorenzo-mato/merlin/internal/router"
	"github.com/hugo-lorenzo-mato/merlin/internal/streaming"
	"github.com/hugo-lorenzo-mato/merlin/internal/validator"
	"github.com/hugo-lorenzo-mato/merlin/internal/workspace"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Analyze a request and execute its task graph end to end",
	Long: `Run the full pipeline: analyze the request into a task graph, route each
task to a model tier, execute tasks with conflict-aware parallelism, and
validate every change before it lands.

Without a configured provider, run dispatches to a local echo provider that
proposes no file changes — enough to exercise routing, scheduling,
escalation, and streaming end to end. The prompt can be provided as an
argument or via --file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var (
	runFile   string
	runOutput string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "read prompt from file")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "plain", "output mode (plain, json)")
}

func runRun(_ *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cancelToken := control.NewCancelToken()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nreceived interrupt, stopping...")
			cancelToken.Cancel()
			cancel()
		case <-ctx.Done():
		}
	}()

	prompt, err := resolvePrompt(args, runFile)
	if err != nil {
		return err
	}

	a := analyzer.New(analyzer.DefaultConfig())
	analysis, err := a.Analyze(prompt)
	if err != nil {
		return err
	}

	g, err := graph.FromTasks(analysis.Tasks)
	if err != nil {
		return err
	}
	cag := graph.NewConflictAware(g)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	bus := streaming.New(0)
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range sub {
			if quiet {
				continue
			}
			printEvent(evt)
		}
	}()

	r := router.New(availabilityFromConfig(), router.TierModels{
		LocalModel:      cfg.Tiers.LocalModel,
		MidModel:        cfg.Tiers.MidModel,
		PremiumProvider: cfg.Tiers.PremiumProvider,
		PremiumModel:    cfg.Tiers.PremiumModel,
	}, router.UnitPrices{})

	escCtrl := escalation.New(escalation.Config{
		MaxRetries:             cfg.Tiers.MaxRetries,
		MaxConflictRetries:     cfg.Execution.MaxConflictRetries,
		DefaultMidModel:        cfg.Tiers.MidModel,
		DefaultPremiumProvider: cfg.Tiers.PremiumProvider,
		DefaultPremiumModel:    cfg.Tiers.PremiumModel,
	}, escalation.DefaultBackoff(), bus)

	providers := map[core.TierKind]provider.ModelProvider{
		core.TierLocal:   newEchoProvider(core.TierLocal),
		core.TierMid:     newEchoProvider(core.TierMid),
		core.TierPremium: newEchoProvider(core.TierPremium),
	}

	pool := executor.New(executor.Config{
		Graph:  cag,
		Router: r,
		Providers: func(kind core.TierKind) (provider.ModelProvider, bool) {
			p, ok := providers[kind]
			return p, ok
		},
		Workspace:     workspace.New(cwd),
		Locks:         lock.New(),
		Validator:     validator.New(validatorConfigFromConfig(cwd)),
		Escalation:    escCtrl,
		Bus:           bus,
		Cancel:        cancelToken,
		MaxConcurrent: int64(cfg.Execution.MaxConcurrentTasks),
	})

	outcomes, runErr := pool.Run(ctx)
	bus.Close()
	<-done

	if runOutput == "json" {
		if err := printRunJSON(outcomes, runErr); err != nil {
			return err
		}
	} else {
		printRunPlain(outcomes)
	}

	return runErr
}

func availabilityFromConfig() *router.AvailabilityChecker {
	return router.NewAvailabilityChecker(map[core.TierKind]router.TierAvailability{
		core.TierLocal:   {Enabled: cfg.Tiers.LocalEnabled, CredentialPresent: true},
		core.TierMid:     {Enabled: cfg.Tiers.MidEnabled, CredentialPresent: true},
		core.TierPremium: {Enabled: cfg.Tiers.PremiumEnabled, CredentialPresent: true},
	})
}

func validatorConfigFromConfig(workspaceRoot string) validator.Config {
	v := cfg.Validation
	return validator.Config{
		Enabled:             v.Enabled,
		EarlyExit:           v.EarlyExit,
		SyntaxCheck:         v.SyntaxCheck,
		BuildCheck:          v.BuildCheck,
		TestCheck:           v.TestCheck,
		LintCheck:           v.LintCheck,
		BuildTimeoutSeconds: v.BuildTimeoutSeconds,
		TestTimeoutSeconds:  v.TestTimeoutSeconds,
		Threshold:           v.Threshold,
		MaxLintWarnings:     v.MaxLintWarnings,
		WorkspaceRoot:       workspaceRoot,
	}
}

func printEvent(evt streaming.Event) {
	taskID, parentID, childID := evt.TaskIDs()
	switch e := evt.(type) {
	case streaming.TaskStarted:
		fmt.Printf("[%s] started\n", taskID)
	case streaming.TaskProgress:
		fmt.Printf("[%s] %s (%.0f%%)\n", taskID, e.Stage, e.Ratio*100)
	case streaming.TaskRetrying:
		fmt.Printf("[%s] retrying (attempt %d, escalated=%v): %s\n", taskID, e.Attempt, e.Escalated, e.Error)
	case streaming.TaskCompleted:
		fmt.Printf("[%s] completed in %dms (%d tokens)\n", taskID, e.DurationMS, e.TokensUsed)
	case streaming.TaskFailed:
		fmt.Printf("[%s] failed: %s\n", taskID, e.Error)
	case streaming.TaskSkipped:
		fmt.Printf("[%s] skipped (upstream %s failed)\n", taskID, e.UpstreamID)
	case streaming.SubtaskSpawned:
		fmt.Printf("[%s] spawned subtask [%s]\n", parentID, childID)
	default:
		_ = taskID
	}
}

func printRunPlain(outcomes []core.TaskOutcome) {
	completed, failed, skipped := 0, 0, 0
	for _, o := range outcomes {
		switch o.Status() {
		case core.StatusCompleted:
			completed++
		case core.StatusSkipped:
			skipped++
		default:
			failed++
		}
	}
	fmt.Printf("tasks: %d completed, %d failed, %d skipped (of %d)\n", completed, failed, skipped, len(outcomes))
}

func printRunJSON(outcomes []core.TaskOutcome, runErr error) error {
	type jsonOutcome struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	summary := make([]jsonOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		jo := jsonOutcome{TaskID: string(o.TaskID), Status: string(o.Status())}
		if o.Err != nil {
			jo.Error = o.Err.Error()
		}
		summary = append(summary, jo)
	}
	result := map[string]any{"tasks": summary}
	if runErr != nil {
		result["error"] = runErr.Error()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
