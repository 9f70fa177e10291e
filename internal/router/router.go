package router

import (
	"sort"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
)

// UnitPrices gives the per-token cost for each tier, keyed by tier kind.
// Local and Mid default to 0 per spec; Premium is configured by the caller.
type UnitPrices map[core.TierKind]float64

// Router selects a ModelTier for a task by trying strategies in descending
// priority order, skipping any whose selected tier is currently unavailable.
type Router struct {
	strategies   []Strategy
	availability *AvailabilityChecker
	models       TierModels
	prices       UnitPrices
}

// New builds a Router over the default strategy set.
func New(availability *AvailabilityChecker, models TierModels, prices UnitPrices) *Router {
	strategies := DefaultStrategies()
	sort.SliceStable(strategies, func(i, j int) bool {
		return strategies[i].Priority() > strategies[j].Priority()
	})
	return &Router{strategies: strategies, availability: availability, models: models, prices: prices}
}

// Route picks a tier for task, returning NoAvailableTier if every applicable
// strategy's tier is unavailable.
func (r *Router) Route(task *core.Task) (core.RoutingDecision, error) {
	for _, s := range r.strategies {
		if !s.AppliesTo(task) {
			continue
		}
		tier := s.Select(task, r.models)
		if !r.availability.Available(tier.Kind) {
			continue
		}
		return core.RoutingDecision{
			Tier:               tier,
			EstimatedCost:      float64(task.ContextNeeds.EstimatedTokens) * r.prices[tier.Kind],
			EstimatedLatencyMS: baseLatencyMS(tier),
			Reasoning:          s.Name(),
		}, nil
	}
	return core.RoutingDecision{}, core.NewError(core.KindNoAvailableTier, "no strategy yielded an available tier for task "+string(task.ID))
}
