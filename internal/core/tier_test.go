package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelTier_Rank(t *testing.T) {
	t.Parallel()
	assert.True(t, Local("qwen2.5-coder:7b").Less(Mid("llama-3.1-70b-versatile")))
	assert.True(t, Mid("llama-3.1-70b-versatile").Less(Premium("anthropic", "claude-sonnet")))
	assert.False(t, Premium("anthropic", "claude-opus").Less(Local("qwen")))
}

func TestModelTier_Escalate(t *testing.T) {
	t.Parallel()

	local := Local("qwen2.5-coder:7b")
	mid, ok := local.Escalate("llama-3.1-70b-versatile", "anthropic", "claude-sonnet")
	assert.True(t, ok)
	assert.Equal(t, TierMid, mid.Kind)

	premium, ok := mid.Escalate("llama-3.1-70b-versatile", "anthropic", "claude-sonnet")
	assert.True(t, ok)
	assert.Equal(t, TierPremium, premium.Kind)

	_, ok = premium.Escalate("llama-3.1-70b-versatile", "anthropic", "claude-sonnet")
	assert.False(t, ok, "premium tier has no higher tier to escalate to")
}

func TestModelTier_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "local/qwen", Local("qwen").String())
	assert.Equal(t, "premium/anthropic/claude-opus", Premium("anthropic", "claude-opus").String())
}
