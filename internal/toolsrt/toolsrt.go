// Package toolsrt defines the TypeScriptRuntime capability contract: when a
// provider response contains a fenced TypeScript block, the core extracts
// it and hands it to an external runtime for tool-call execution. The
// runtime itself (parsing, sandboxing, tool implementations) lives outside
// this core; this package defines only the extraction contract and the
// normalized result shape.
package toolsrt

import (
	"context"
	"regexp"
)

// codeFence matches a fenced ```typescript or ```ts block and captures its body.
var codeFence = regexp.MustCompile("(?s)```(?:typescript|ts)\\s*\\n(.*?)```")

// ExtractCode returns the body of the first fenced TypeScript/ts code block
// in text, and whether one was found.
func ExtractCode(text string) (string, bool) {
	m := codeFence.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ResultKind tags which AgentResponse variant a Result carries.
type ResultKind string

const (
	ResultDirect   ResultKind = "direct"
	ResultTaskList ResultKind = "task_list"
)

// TaskStep is one step within a TaskList AgentResponse.
type TaskStep struct {
	Description string
	Done        bool
}

// AgentResponse is the normalized shape a TypeScriptRuntime.Execute result
// is reduced to: either a direct textual result, or a structured task list
// (title plus ordered steps) the runtime decomposed the tool call into.
type AgentResponse struct {
	Kind  ResultKind
	Text  string     // meaningful when Kind == ResultDirect
	Title string     // meaningful when Kind == ResultTaskList
	Steps []TaskStep // meaningful when Kind == ResultTaskList
}

// DirectResult constructs a direct-text AgentResponse.
func DirectResult(text string) AgentResponse {
	return AgentResponse{Kind: ResultDirect, Text: text}
}

// TaskListResult constructs a task-list AgentResponse.
func TaskListResult(title string, steps []TaskStep) AgentResponse {
	return AgentResponse{Kind: ResultTaskList, Title: title, Steps: steps}
}

// Value is the runtime's execution result payload before normalization into
// an AgentResponse; its shape is runtime-defined (JSON-like), so the core
// treats it opaquely and relies on the runtime to call DirectResult or
// TaskListResult when shaping its AgentResponse.
type Value = any

// TypeScriptRuntime is a capability: a black-box executor for extracted
// tool-call code. Its effects on the workspace are mediated by the same
// WorkspaceState and FileLockManager the executor pool uses — the runtime
// is handed a scoped accessor, not implemented here.
type TypeScriptRuntime interface {
	Execute(ctx context.Context, code string) (Value, error)
}
