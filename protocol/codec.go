// Package protocol turns free-form model output into exactly one structured
// action record. Models are asked to reply with a single JSON object matching
// the schema {thought, action, tool, target_agent, args, answer}; real model
// output is unreliable, so decoding applies a layered recovery chain:
//
//  1. Parse the entire text as one JSON object.
//  2. On failure, parse the substring between the first '{' and the last '}'
//     (tolerates reasoning prose or markdown fencing around the payload).
//  3. On failure, synthesize a degraded record with action "final" whose
//     answer is the raw text verbatim.
//
// The chain guarantees every invocation yields a usable record, so the
// orchestration loop always terminates usefully instead of crashing on
// malformed output.
package protocol

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Action tags understood by the orchestration loop.
const (
	ActionFinal    = "final"
	ActionUseTool  = "use_tool"
	ActionDelegate = "delegate"
)

// ParseFailedThought marks records synthesized by the last-resort fallback.
const ParseFailedThought = "JSON parsing failed"

// Kind is the decoded action as a closed variant. Downstream logic switches
// on Kind exhaustively instead of re-checking field presence.
type Kind int

const (
	// KindFinal terminates the loop with a user-facing answer.
	KindFinal Kind = iota
	// KindUseTool requests a synchronous tool call.
	KindUseTool
	// KindDelegate hands the task to another agent.
	KindDelegate
	// KindInvalid covers any unrecognized action tag.
	KindInvalid
)

// Record is the structured form of one agent reply.
//
// Missing fields in a successfully parsed object receive documented defaults:
// Action defaults to "final", Tool and TargetAgent to empty, Args to an empty
// map, Thought and Answer to the empty string. A partially-formed but
// parseable object is never rejected outright.
type Record struct {
	Thought     string         `json:"thought"`
	Action      string         `json:"action"`
	Tool        string         `json:"tool,omitempty"`
	TargetAgent string         `json:"target_agent,omitempty"`
	Args        map[string]any `json:"args"`
	Answer      string         `json:"answer"`
}

// Kind maps the loosely-typed action tag onto the closed variant.
func (r Record) Kind() Kind {
	switch r.Action {
	case ActionFinal:
		return KindFinal
	case ActionUseTool:
		return KindUseTool
	case ActionDelegate:
		return KindDelegate
	default:
		return KindInvalid
	}
}

// Encode serializes the record for the loop's step transcript. Serialization
// of a record cannot fail; an error would indicate a programming bug, so the
// raw thought is returned as a degenerate fallback.
func (r Record) Encode() string {
	b, err := json.Marshal(r)
	if err != nil {
		return r.Thought
	}
	return string(b)
}

// Decode produces exactly one Record from raw model output using the
// recovery chain described in the package documentation.
func Decode(raw string) Record {
	trimmed := strings.TrimSpace(raw)

	var rec Record
	if err := json.Unmarshal([]byte(trimmed), &rec); err == nil {
		return normalize(rec)
	}

	// Brace-scan fallback: the model often wraps the payload in prose or a
	// markdown fence.
	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		rec = Record{}
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &rec); err == nil {
			return normalize(rec)
		}
	}

	return Record{
		Thought: ParseFailedThought,
		Action:  ActionFinal,
		Args:    map[string]any{},
		Answer:  raw,
	}
}

// normalize applies the documented defaults in one place.
func normalize(rec Record) Record {
	if rec.Action == "" {
		rec.Action = ActionFinal
	}
	if rec.Args == nil {
		rec.Args = map[string]any{}
	}
	return rec
}
