// Package provider defines the ModelProvider capability contract the
// executor pool calls at dispatch. Concrete providers (Anthropic, Groq,
// Ollama, OpenRouter) are external collaborators; this package never
// implements one.
package provider

import (
	"context"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
)

// Query is the normalized request handed to a provider: the task's
// description plus whatever the caller decided to embed from the workspace
// snapshot and conversation history.
type Query struct {
	TaskID      core.TaskID
	Description string
	Context     Context
}

// Context carries the provider-facing view of a task's required files and
// conversation history. Building it (retrieval, chunking, ranking) is
// explicitly out of scope for this core; the core only consumes the result.
type Context struct {
	Files               map[string]string
	ConversationSummary string
	EstimatedTokens     uint32
}

// ModelProvider is a capability, not a concrete type. The executor pool is
// parameterized over it; it never type-switches on a provider's identity
// beyond Name().
type ModelProvider interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Generate(ctx context.Context, query Query) (core.Response, error)
	EstimateCost(ctx Context) float64
}
