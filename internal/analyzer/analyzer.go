// Package analyzer turns a free-text request into a TaskAnalysis. It is
// purely heuristic — keyword and regex based — and performs no network I/O,
// matching the orchestration core's "the core does not interpret natural
// language itself" non-goal.
package analyzer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
)

// Config bounds the accepted request length and the default parallel fan-out
// width handed to multi-task analyses.
type Config struct {
	MinLength     int // default 1
	MaxLength     int // default 32768
	MaxConcurrent int // default 4, used for Strategy.Parallel
}

// DefaultConfig returns the bounds from spec.md §4.1.
func DefaultConfig() Config {
	return Config{MinLength: 1, MaxLength: 32768, MaxConcurrent: 4}
}

// Analyzer classifies a request and decomposes it into a TaskAnalysis.
type Analyzer struct {
	cfg Config
}

// New builds an Analyzer. Zero-value fields in cfg fall back to DefaultConfig.
func New(cfg Config) *Analyzer {
	d := DefaultConfig()
	if cfg.MinLength <= 0 {
		cfg.MinLength = d.MinLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = d.MaxLength
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = d.MaxConcurrent
	}
	return &Analyzer{cfg: cfg}
}

var (
	filenamePattern  = regexp.MustCompile(`[A-Za-z0-9_]+\.[A-Za-z]+`)
	camelCasePattern = regexp.MustCompile(`\b[a-z]+[A-Z][A-Za-z0-9]*\b`)
	snakeCasePattern = regexp.MustCompile(`\b[a-z0-9]+(?:_[a-z0-9]+)+\b`)
	wordPattern      = regexp.MustCompile(`[A-Za-z0-9_./]+`)
)

var actionKeywords = []struct {
	words  []string
	action core.Action
}{
	{[]string{"add", "create", "implement", "write"}, core.ActionCreate},
	{[]string{"modify", "change", "update"}, core.ActionModify},
	{[]string{"fix", "debug"}, core.ActionDebug},
	{[]string{"explain", "what", "how"}, core.ActionExplain},
	{[]string{"refactor"}, core.ActionRefactor},
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "have": true, "into": true, "your": true,
	"about": true, "which": true, "their": true, "would": true, "there": true,
}

var conversationalPhrases = []string{"hi", "hello", "hey", "thanks", "thank you", "remember", "what did i"}

// Analysis is the intermediate classification before decomposition, exposed
// for callers (and tests) that want the heuristic signal without a full
// TaskAnalysis.
type Analysis struct {
	Action          core.Action
	Scope           []string
	Keywords        []string
	Entities        []string
	Conversational  bool
	MultiFile       bool
	DifficultyHint  int
	Complexity      core.Complexity
	Priority        core.Priority
	EstimatedTokens uint32
}

// Analyze runs intent extraction, difficulty scoring, decomposition, and
// strategy selection over request, returning the resulting TaskAnalysis.
func (a *Analyzer) Analyze(request string) (*core.TaskAnalysis, error) {
	if len(request) < a.cfg.MinLength || len(request) > a.cfg.MaxLength {
		return nil, core.NewError(core.KindInvalidTask, "request length out of bounds").
			WithDetail("length", len(request)).
			WithDetail("min", a.cfg.MinLength).
			WithDetail("max", a.cfg.MaxLength)
	}

	analysis := a.classify(request)
	tasks := a.decompose(request, analysis)
	strategy, maxConcurrent := a.selectStrategy(tasks)

	return &core.TaskAnalysis{Tasks: tasks, Strategy: strategy, MaxConcurrent: maxConcurrent}, nil
}

// Classify exposes the heuristic classification step on its own, for
// callers that want the difficulty hint behind a request's complexity
// bucket (cmd/merlin's `analyze --explain` flag) without re-deriving it.
func (a *Analyzer) Classify(request string) Analysis {
	return a.classify(request)
}

func (a *Analyzer) classify(request string) Analysis {
	lower := strings.ToLower(request)
	tokens := wordPattern.FindAllString(lower, -1)

	analysis := Analysis{
		Action:         classifyAction(tokens),
		Scope:          extractScope(request, lower),
		Keywords:       extractKeywords(tokens),
		Entities:       extractEntities(request),
		Conversational: isConversational(lower),
	}
	analysis.MultiFile = len(analysis.Scope) > 1

	analysis.DifficultyHint = difficultyHint(len(tokens), analysis.Action, analysis.MultiFile)
	analysis.Complexity = complexityFromHint(analysis.DifficultyHint)
	analysis.Priority = priorityFromRequest(lower)

	if !analysis.Conversational {
		analysis.EstimatedTokens = uint32(len(request) / 3) // rough chars-per-token estimate
	}
	return analysis
}

func classifyAction(tokens []string) core.Action {
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}
	for _, group := range actionKeywords {
		for _, w := range group.words {
			if tokenSet[w] {
				return group.action
			}
		}
	}
	return core.ActionSearch
}

func extractScope(request, lower string) []string {
	if strings.Contains(lower, "everything") || strings.Contains(lower, "project") {
		return []string{"*"}
	}
	files := filenamePattern.FindAllString(request, -1)
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func extractKeywords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len(t) > 3 && !stopwords[t] {
			out = append(out, t)
		}
	}
	return out
}

func extractEntities(request string) []string {
	out := append([]string{}, camelCasePattern.FindAllString(request, -1)...)
	out = append(out, snakeCasePattern.FindAllString(request, -1)...)
	return out
}

func isConversational(lower string) bool {
	for _, p := range conversationalPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func difficultyHint(wordCount int, action core.Action, multiFile bool) int {
	var score int
	switch {
	case wordCount <= 3:
		score = 1
	case wordCount <= 10:
		score = 3
	case wordCount <= 30:
		score = 5
	default:
		score = 7
	}
	if action == core.ActionRefactor || action == core.ActionDebug {
		score += 2
	}
	if multiFile {
		score += 2
	}
	if score > 10 {
		score = 10
	}
	return score
}

func complexityFromHint(hint int) core.Complexity {
	switch {
	case hint <= 3:
		return core.ComplexityTrivial
	case hint <= 5:
		return core.ComplexitySimple
	case hint <= 7:
		return core.ComplexityMedium
	default:
		return core.ComplexityComplex
	}
}

func priorityFromRequest(lower string) core.Priority {
	switch {
	case strings.Contains(lower, "production") || strings.Contains(lower, "security"):
		return core.PriorityCritical
	case strings.Contains(lower, "critical") || strings.Contains(lower, "urgent"):
		return core.PriorityHigh
	default:
		return core.PriorityMedium
	}
}

func (a *Analyzer) decompose(request string, an Analysis) []*core.Task {
	switch {
	case an.Conversational:
		t := core.NewTask(request, an.Complexity, an.Priority, an.Action)
		return []*core.Task{t}

	case an.Action == core.ActionRefactor:
		analyze := core.NewTask(request+" (analyze)", an.Complexity, an.Priority, core.ActionSearch)
		plan := core.NewTask(request+" (plan)", an.Complexity, an.Priority, core.ActionExplain)
		apply := core.NewTask(request+" (apply)", an.Complexity, an.Priority, core.ActionRefactor)
		_ = plan.DependsOn(analyze.ID)
		_ = apply.DependsOn(plan.ID)
		return []*core.Task{analyze, plan, apply}

	case an.Action == core.ActionModify && an.MultiFile:
		tasks := make([]*core.Task, 0, len(an.Scope))
		for _, file := range an.Scope {
			t := core.NewTask(request+" ("+file+")", an.Complexity, an.Priority, an.Action)
			t.ContextNeeds.AddFile(file)
			t.ContextNeeds.EstimatedTokens = an.EstimatedTokens
			tasks = append(tasks, t)
		}
		return tasks

	default:
		t := core.NewTask(request, an.Complexity, an.Priority, an.Action)
		for _, f := range an.Scope {
			if f != "*" {
				t.ContextNeeds.AddFile(f)
			}
		}
		t.ContextNeeds.EstimatedTokens = an.EstimatedTokens
		t.ContextNeeds.RequiresFullContext = len(an.Scope) > 0 && an.Scope[0] == "*"
		return []*core.Task{t}
	}
}

func (a *Analyzer) selectStrategy(tasks []*core.Task) (core.Strategy, int) {
	if len(tasks) == 1 {
		return core.StrategySequential, 0
	}
	independent := true
	for _, t := range tasks {
		if len(t.Dependencies) > 0 {
			independent = false
			break
		}
	}
	if independent {
		return core.StrategyParallel, a.cfg.MaxConcurrent
	}
	return core.StrategyPipeline, 0
}

// ParseDifficultyHint is a small debugging helper used by cmd/merlin's
// `analyze --explain` flag to render the hint as a string.
func ParseDifficultyHint(hint int) string {
	return strconv.Itoa(hint) + "/10"
}
