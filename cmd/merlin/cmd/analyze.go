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
	"github.com/hugo-lorenzo-mato/merlin/internal/core"
	"github.com/hugo-lorenzo-mato/merlin/internal/graph"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [prompt]",
	Short: "Decompose a request into a task graph without executing it",
	Long: `Run the analyzer over a natural-language request and print the resulting
TaskAnalysis: the decomposed tasks, their dependencies, and the selected
execution strategy (sequential, parallel, or pipeline).

The prompt can be provided as an argument or via --file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeFile    string
	analyzeOutput  string
	analyzeExplain bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "read prompt from file")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "plain", "output mode (plain, json)")
	analyzeCmd.Flags().BoolVar(&analyzeExplain, "explain", false, "include the difficulty hint behind each task's complexity")
}

func runAnalyze(_ *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nreceived interrupt, stopping...")
			cancel()
		case <-ctx.Done():
		}
	}()

	prompt, err := resolvePrompt(args, analyzeFile)
	if err != nil {
		return err
	}

	a := analyzer.New(analyzer.DefaultConfig())
	result, err := a.Analyze(prompt)
	if err != nil {
		return err
	}

	g, err := graph.FromTasks(result.Tasks)
	if err != nil {
		return err
	}
	if g.HasCycles() {
		return core.NewError(core.KindCyclicDependency, "analyzed task graph contains a cycle")
	}

	if err := ctx.Err(); err != nil {
		return core.NewError(core.KindCancelled, "analysis cancelled")
	}

	if analyzeOutput == "json" {
		return printAnalysisJSON(result)
	}
	printAnalysisPlain(result)
	if analyzeExplain {
		classification := a.Classify(prompt)
		fmt.Printf("difficulty hint: %s\n", analyzer.ParseDifficultyHint(classification.DifficultyHint))
	}
	return nil
}

func printAnalysisPlain(ta *core.TaskAnalysis) {
	fmt.Printf("strategy: %s (max_concurrent=%d)\n", ta.Strategy, ta.MaxConcurrent)
	fmt.Printf("tasks: %d\n", len(ta.Tasks))
	for i, t := range ta.Tasks {
		fmt.Printf("  [%d] %s\n", i+1, t.Description)
		fmt.Printf("      action=%s complexity=%s priority=%s\n", t.Action, t.Complexity, t.Priority)
		if deps := t.DependencyIDs(); len(deps) > 0 {
			fmt.Printf("      depends_on=%v\n", deps)
		}
		if files := t.ContextNeeds.Files(); len(files) > 0 {
			fmt.Printf("      files=%v\n", files)
		}
	}
}

func printAnalysisJSON(ta *core.TaskAnalysis) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ta)
}

// resolvePrompt reads the prompt from the first positional arg, falling back
// to --file, matching the teacher's analyze command's input precedence.
func resolvePrompt(args []string, file string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		return string(data), nil
	}
	return "", core.NewError(core.KindInvalidTask, "no prompt given: pass an argument or --file")
}
