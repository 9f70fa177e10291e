// Package thread models the persisted conversation history: Threads own an
// ordered list of Messages, each optionally owning one WorkUnit (the task
// tree produced by that user turn). Persistence itself is delegated to a
// ThreadStore capability the core is parameterized over — this package
// defines the data model, the color-tagging palette, and branch replay.
package thread

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
)

// ThreadID, MessageID, WorkUnitID are opaque identifiers, UUID-backed like
// core.TaskID.
type ThreadID string
type MessageID string
type WorkUnitID string

func newThreadID() ThreadID   { return ThreadID(uuid.NewString()) }
func newMessageID() MessageID { return MessageID(uuid.NewString()) }
func newWorkUnitID() WorkUnitID { return WorkUnitID(uuid.NewString()) }

// Role distinguishes the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// WorkUnit is the task tree a single user turn produced, along with the
// results the executor pool collected for it.
type WorkUnit struct {
	ID      WorkUnitID       `json:"id"`
	Tasks   []*core.Task     `json:"tasks"`
	Results []core.TaskResult `json:"results"`
}

// NewWorkUnit builds an empty WorkUnit for the given decomposed tasks.
func NewWorkUnit(tasks []*core.Task) *WorkUnit {
	return &WorkUnit{ID: newWorkUnitID(), Tasks: tasks}
}

// Message is one turn in a Thread, optionally carrying the WorkUnit it spawned.
type Message struct {
	ID        MessageID `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	WorkUnit  *WorkUnit `json:"work_unit,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BranchPoint references the (thread, message) a Thread forked from.
type BranchPoint struct {
	ThreadID  ThreadID  `json:"thread_id"`
	MessageID MessageID `json:"message_id"`
}

// Thread owns an ordered list of Messages and carries a color tag assigned
// by index into Palette.
type Thread struct {
	ID        ThreadID     `json:"id"`
	Title     string       `json:"title"`
	Color     string       `json:"color"`
	Parent    *BranchPoint `json:"parent,omitempty"`
	Messages  []Message    `json:"messages"`
	CreatedAt time.Time    `json:"created_at"`
}

// Palette is the fixed six-color cycle threads are tagged from, by creation
// index — adapted from the teacher's per-agent color map into a plain,
// rendering-agnostic string palette (this core never renders).
var Palette = []string{"blue", "green", "yellow", "magenta", "cyan", "red"}

// ColorForIndex returns the palette entry for the i'th thread created,
// cycling once the palette is exhausted.
func ColorForIndex(i int) string {
	if i < 0 {
		i = 0
	}
	return Palette[i%len(Palette)]
}

// New constructs a Thread at palette position index, optionally branching
// from parent.
func New(title string, index int, parent *BranchPoint) *Thread {
	return &Thread{
		ID:        newThreadID(),
		Title:     title,
		Color:     ColorForIndex(index),
		Parent:    parent,
		CreatedAt: time.Now(),
	}
}

// AppendMessage appends a message with a fresh MessageID and returns it.
func (t *Thread) AppendMessage(role Role, content string, wu *WorkUnit) Message {
	m := Message{ID: newMessageID(), Role: role, Content: content, WorkUnit: wu, CreatedAt: time.Now()}
	t.Messages = append(t.Messages, m)
	return m
}

// MessageByID looks up a message within this thread.
func (t *Thread) MessageByID(id MessageID) (Message, bool) {
	for _, m := range t.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// MarshalJSON is the canonical ThreadStore wire format (spec.md §6's
// threads/<id>.json).
func (t *Thread) MarshalJSON() ([]byte, error) {
	type alias Thread
	return json.Marshal((*alias)(t))
}

// DumpYAML renders the thread as YAML for debug tooling — easier to skim
// in a terminal than the canonical JSON wire format, but never written to
// a ThreadStore.
func (t *Thread) DumpYAML() ([]byte, error) {
	type alias Thread
	return yaml.Marshal((*alias)(t))
}

// ReplayFrom materializes the ancestor message chain up to and including
// upTo within thread, for rendering a branch's history without following
// messages created after the branch point. Returns InvalidTask if upTo
// isn't in thread.
func ReplayFrom(t *Thread, upTo MessageID) ([]Message, error) {
	for i, m := range t.Messages {
		if m.ID == upTo {
			out := make([]Message, i+1)
			copy(out, t.Messages[:i+1])
			return out, nil
		}
	}
	return nil, core.NewError(core.KindInvalidTask, fmt.Sprintf("message %s not found in thread %s", upTo, t.ID))
}
