package cmd

import (
	"context"
	"fmt"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
	"github.com/hugo-lorenzo-mato/merlin/internal/provider"
)

// echoProvider is a local, always-available stand-in for a concrete
// ModelProvider: it "generates" by echoing the task description back as a
// no-op response. It exists only so `merlin run` has a provider to dispatch
// to out of the box; it never touches a real model and proposes no file
// changes, per spec.md §6's framing of providers as external collaborators.
type echoProvider struct {
	tier core.TierKind
}

func newEchoProvider(tier core.TierKind) *echoProvider {
	return &echoProvider{tier: tier}
}

func (p *echoProvider) Name() string { return "echo-" + string(p.tier) }

func (p *echoProvider) IsAvailable(context.Context) bool { return true }

func (p *echoProvider) EstimateCost(provider.Context) float64 { return 0 }

func (p *echoProvider) Generate(_ context.Context, q provider.Query) (core.Response, error) {
	text := fmt.Sprintf("acknowledged: %s", q.Description)
	return core.Response{
		Text:         text,
		Confidence:   1.0,
		Tokens:       len(text) / 4,
		ProviderName: p.Name(),
	}, nil
}
