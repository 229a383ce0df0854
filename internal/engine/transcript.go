package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"folio/internal/planner"
)

// State of the reasoning controller.
type State string

const (
	StateAwaitingAction  State = "AWAITING_ACTION"
	StateToolCallPending State = "TOOL_CALL_PENDING"
	StateValidating      State = "VALIDATING"
	StateTerminated      State = "TERMINATED"
)

// StepRecord is one ordered entry in the reasoning transcript. The
// transcript is append-only within a cycle and discarded (persisted only as
// a log) afterwards; it is not portfolio state.
type StepRecord struct {
	Index       int       `json:"index"`
	Thought     string    `json:"thought,omitempty"`
	Action      string    `json:"action"`
	Args        string    `json:"args,omitempty"`
	Observation string    `json:"observation,omitempty"`
	At          time.Time `json:"at"`
}

type transcript struct {
	steps []StepRecord
}

func (t *transcript) append(rec StepRecord) {
	rec.Index = len(t.steps)
	rec.At = time.Now().UTC()
	t.steps = append(t.steps, rec)
}

// render flattens the transcript into the history text the planner sees.
func (t *transcript) render() string {
	var b strings.Builder
	for _, s := range t.steps {
		if s.Thought != "" {
			fmt.Fprintf(&b, "Thought: %s\n", s.Thought)
		}
		fmt.Fprintf(&b, "Action: %s(%s)\n", s.Action, s.Args)
		fmt.Fprintf(&b, "Observation: %s\n", s.Observation)
	}
	return b.String()
}

// fingerprint hashes a tool call (name + canonical args) for loop detection.
func fingerprint(call *planner.ToolCall) string {
	if call == nil {
		return ""
	}
	// json.Marshal emits map keys sorted, so this is canonical.
	raw, _ := json.Marshal(struct {
		Name string            `json:"name"`
		Args map[string]string `json:"args"`
	}{Name: call.Name, Args: call.Args})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func renderArgs(args map[string]string) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, args[k]))
	}
	return strings.Join(parts, ", ")
}
