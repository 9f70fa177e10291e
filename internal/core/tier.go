package core

// TierKind names the coarse tier class, independent of the concrete model.
type TierKind string

const (
	TierLocal   TierKind = "local"
	TierMid     TierKind = "mid"
	TierPremium TierKind = "premium"
)

// escalationRank totally orders tier kinds for escalation purposes.
var escalationRank = map[TierKind]int{
	TierLocal:   0,
	TierMid:     1,
	TierPremium: 2,
}

// ModelTier is a tagged variant over the three tier kinds. Provider is only
// meaningful for Premium (e.g. "anthropic", "openrouter"); Local and Mid
// tiers are addressed purely by model name.
type ModelTier struct {
	Kind     TierKind
	Provider string // set only when Kind == TierPremium
	Model    string
}

// Local constructs a Local tier for the given model.
func Local(model string) ModelTier { return ModelTier{Kind: TierLocal, Model: model} }

// Mid constructs a Mid tier for the given model.
func Mid(model string) ModelTier { return ModelTier{Kind: TierMid, Model: model} }

// Premium constructs a Premium tier for the given provider/model pair.
func Premium(provider, model string) ModelTier {
	return ModelTier{Kind: TierPremium, Provider: provider, Model: model}
}

// Rank returns the tier's position in the total escalation order.
func (t ModelTier) Rank() int { return escalationRank[t.Kind] }

// Less reports whether t ranks below other.
func (t ModelTier) Less(other ModelTier) bool { return t.Rank() < other.Rank() }

// String renders a human-readable tier identifier for logs and events.
func (t ModelTier) String() string {
	if t.Kind == TierPremium {
		return string(t.Kind) + "/" + t.Provider + "/" + t.Model
	}
	return string(t.Kind) + "/" + t.Model
}

// Escalate returns the next-higher tier for the same model family, or
// (ModelTier{}, false) if t is already the top tier. Escalation always
// lands on a default model for the target tier kind; callers that need a
// specific target model should construct it directly instead.
func (t ModelTier) Escalate(defaultMid, defaultPremiumProvider, defaultPremiumModel string) (ModelTier, bool) {
	switch t.Kind {
	case TierLocal:
		return Mid(defaultMid), true
	case TierMid:
		return Premium(defaultPremiumProvider, defaultPremiumModel), true
	default:
		return ModelTier{}, false
	}
}

// RoutingDecision is the Router's output for a single task/attempt.
type RoutingDecision struct {
	Tier               ModelTier
	EstimatedCost      float64
	EstimatedLatencyMS uint64
	Reasoning          string
}
