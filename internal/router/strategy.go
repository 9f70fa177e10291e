// Package router selects a ModelTier for each task via a prioritized list
// of strategies, then checks real-time availability before committing.
package router

import (
	"github.com/hugo-lorenzo-mato/merlin/internal/core"
)

// Strategy picks a candidate tier for a task it applies to. Strategies are
// tried in descending Priority order; the first whose AppliesTo is true and
// whose selected tier is available wins.
type Strategy interface {
	Name() string
	Priority() int
	AppliesTo(task *core.Task) bool
	Select(task *core.Task, cfg TierModels) core.ModelTier
}

// TierModels names the concrete model for each tier, sourced from config.
type TierModels struct {
	LocalModel      string
	MidModel        string
	PremiumProvider string
	PremiumModel    string
}

const (
	longContextThresholdTokens = 16000
	costOptimizationMaxTokens  = 2000
)

// QualityCritical routes High/Critical priority tasks to the strongest
// available tiers regardless of cost.
type QualityCritical struct{}

func (QualityCritical) Name() string     { return "quality_critical" }
func (QualityCritical) Priority() int     { return 100 }
func (QualityCritical) AppliesTo(t *core.Task) bool {
	return t.Priority == core.PriorityHigh || t.Priority == core.PriorityCritical
}
func (QualityCritical) Select(t *core.Task, cfg TierModels) core.ModelTier {
	if t.Priority == core.PriorityCritical {
		return core.Premium(cfg.PremiumProvider, cfg.PremiumModel)
	}
	return core.Premium(cfg.PremiumProvider, cfg.PremiumModel)
}

// LongContext routes tasks with large context requirements to a tier sized
// for the token band, favoring Premium as the band grows.
type LongContext struct{}

func (LongContext) Name() string { return "long_context" }
func (LongContext) Priority() int { return 90 }
func (LongContext) AppliesTo(t *core.Task) bool {
	return t.ContextNeeds.EstimatedTokens > longContextThresholdTokens || t.ContextNeeds.RequiresFullContext
}
func (LongContext) Select(t *core.Task, cfg TierModels) core.ModelTier {
	tokens := t.ContextNeeds.EstimatedTokens
	switch {
	case tokens > 200000:
		return core.Premium(cfg.PremiumProvider, cfg.PremiumModel)
	case tokens > 100000:
		return core.Premium(cfg.PremiumProvider, cfg.PremiumModel)
	case tokens > 32000:
		return core.Premium(cfg.PremiumProvider, cfg.PremiumModel)
	default: // 16k-32k band
		return core.Mid(cfg.MidModel)
	}
}

// CostOptimization routes low-priority, small-context tasks to the free
// local tier.
type CostOptimization struct{}

func (CostOptimization) Name() string { return "cost_optimization" }
func (CostOptimization) Priority() int { return 70 }
func (CostOptimization) AppliesTo(t *core.Task) bool {
	lowPriority := t.Priority == core.PriorityLow || t.Priority == core.PriorityMedium
	return lowPriority && t.ContextNeeds.EstimatedTokens <= costOptimizationMaxTokens
}
func (CostOptimization) Select(_ *core.Task, cfg TierModels) core.ModelTier {
	return core.Local(cfg.LocalModel)
}

// ComplexityBased is the catch-all strategy: it always applies and maps
// task complexity directly onto a tier.
type ComplexityBased struct{}

func (ComplexityBased) Name() string     { return "complexity_based" }
func (ComplexityBased) Priority() int    { return 50 }
func (ComplexityBased) AppliesTo(*core.Task) bool { return true }
func (ComplexityBased) Select(t *core.Task, cfg TierModels) core.ModelTier {
	switch t.Complexity {
	case core.ComplexityTrivial, core.ComplexitySimple:
		return core.Local(cfg.LocalModel)
	case core.ComplexityMedium:
		return core.Mid(cfg.MidModel)
	default:
		return core.Premium(cfg.PremiumProvider, cfg.PremiumModel)
	}
}

// DefaultStrategies returns the built-in strategy set in descending
// priority order, matching the router's fixed precedence table.
func DefaultStrategies() []Strategy {
	return []Strategy{
		QualityCritical{},
		LongContext{},
		CostOptimization{},
		ComplexityBased{},
	}
}

// baseLatencyMS gives advisory, observability-only latency estimates per tier.
func baseLatencyMS(tier core.ModelTier) uint64 {
	switch tier.Kind {
	case core.TierLocal:
		return 100
	case core.TierMid:
		return 500
	default:
		return 2000
	}
}
