// Package orchestrator implements the bounded multi-step coordination loop:
// it repeatedly invokes one agent at a time, dispatches the decoded action
// (tool call, delegation, or final answer), and persists the completed turn
// to the conversation memory store.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/miniagi/miniagi/agent"
	"github.com/miniagi/miniagi/logging"
	"github.com/miniagi/miniagi/memory"
	"github.com/miniagi/miniagi/persona"
	"github.com/miniagi/miniagi/protocol"
	"github.com/miniagi/miniagi/tool"
)

const (
	// DefaultMaxSteps bounds the loop when the request does not set a limit.
	DefaultMaxSteps = 10

	// NoAnswer replaces an empty answer on a final action.
	NoAnswer = "[NO ANSWER]"

	// MaxStepsAnswer is the degraded answer returned when the step budget is
	// exhausted without a final action.
	MaxStepsAnswer = "[MAX STEPS REACHED - No final answer provided]"

	// maxTranscriptBytes caps the accumulated step transcript fed back to
	// agents as context; the oldest entries are evicted first.
	maxTranscriptBytes = 16 * 1024

	// Context assembly budget for prior-session history.
	contextMaxTurns = 5
	contextMaxChars = 2000
)

// Step is one recorded orchestration event. Every loop iteration records
// exactly one, including corrective and degraded iterations.
type Step struct {
	Step        int    `json:"step"`
	Agent       string `json:"agent"`
	Action      string `json:"action"`
	Tool        string `json:"tool,omitempty"`
	TargetAgent string `json:"target_agent,omitempty"`
	Thought     string `json:"thought"`
}

// Request carries one user-facing orchestration call.
type Request struct {
	// Input is the user's query or instruction.
	Input string
	// SystemOverride is an optional inline custom instruction. A resolvable
	// Persona takes priority over it.
	SystemOverride string
	// SessionID continues an existing conversation when set; a new session
	// is minted otherwise.
	SessionID string
	// UserID optionally ties the session and turn to a user.
	UserID string
	// Persona optionally names a predefined instruction set.
	Persona string
	// MaxSteps bounds the loop. Defaults to DefaultMaxSteps when <= 0.
	MaxSteps int
}

// Result is the outcome of one orchestration call.
type Result struct {
	Answer      string `json:"answer"`
	Steps       []Step `json:"events"`
	SessionID   string `json:"session_id"`
	ContextUsed bool   `json:"context_used"`
}

// Orchestrator owns the loop and its collaborators.
type Orchestrator struct {
	agents   *agent.Registry
	tools    *tool.Registry
	invoker  *agent.Invoker
	store    *memory.Store
	personas *persona.Registry
	logger   logging.Logger
}

// New wires an Orchestrator. The coordinating agent must be present in the
// registry; its absence is a configuration fault, not a per-request
// condition.
func New(
	agents *agent.Registry,
	tools *tool.Registry,
	invoker *agent.Invoker,
	store *memory.Store,
	personas *persona.Registry,
	logger logging.Logger,
) (*Orchestrator, error) {
	if _, ok := agents.Lookup(agent.CoordinatorName); !ok {
		return nil, fmt.Errorf("coordinator agent %q not registered", agent.CoordinatorName)
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Orchestrator{
		agents:   agents,
		tools:    tools,
		invoker:  invoker,
		store:    store,
		personas: personas,
		logger:   logger,
	}, nil
}

// Run executes one bounded orchestration loop.
//
// The loop is strictly sequential: each step's query depends on the previous
// step's decoded action. Transport failures abort the call as hard errors
// without persisting a turn; everything else (malformed model output,
// unknown tools or agents, failing tools) degrades in-band and still
// produces exactly one persisted turn.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	sessionID, err := o.store.GetOrCreateSession(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	systemOverride := req.SystemOverride
	if o.personas != nil {
		systemOverride = o.personas.GetOrCustom(req.Persona, req.SystemOverride)
	}

	transcript, contextUsed, err := o.seedContext(ctx, sessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	result := &Result{SessionID: sessionID, ContextUsed: contextUsed}
	currentAgent := agent.CoordinatorName
	currentQuery := req.Input

	for step := 1; step <= maxSteps; step++ {
		rec, err := o.invoker.Invoke(ctx, currentAgent, currentQuery, joinTranscript(transcript), systemOverride)
		if err != nil {
			return nil, err
		}

		result.Steps = append(result.Steps, Step{
			Step:        step,
			Agent:       currentAgent,
			Action:      rec.Action,
			Tool:        rec.Tool,
			TargetAgent: rec.TargetAgent,
			Thought:     rec.Thought,
		})
		transcript = appendTranscript(transcript, fmt.Sprintf("[%s step %d] %s", currentAgent, step, rec.Encode()))

		o.logger.Debug("orchestration step",
			"session", sessionID, "step", step, "agent", currentAgent, "action", rec.Action)

		switch rec.Kind() {
		case protocol.KindFinal:
			answer := rec.Answer
			if answer == "" {
				answer = NoAnswer
			}
			if err := o.persistTurn(ctx, sessionID, req, answer); err != nil {
				return nil, err
			}
			result.Answer = answer
			return result, nil

		case protocol.KindUseTool:
			if _, ok := o.tools.Lookup(rec.Tool); ok {
				output := o.tools.Call(ctx, rec.Tool, rec.Args)
				currentQuery = fmt.Sprintf(
					"Tool `%s` output:\n%s\n\nNow continue your reasoning and decide next action.",
					rec.Tool, output)
				// Same agent continues with the tool result.
			} else {
				currentAgent = agent.CoordinatorName
				currentQuery = fmt.Sprintf(
					"Unknown tool '%s'. Please provide a final answer with available information.",
					rec.Tool)
			}

		case protocol.KindDelegate:
			if _, ok := o.agents.Lookup(rec.TargetAgent); ok {
				currentAgent = rec.TargetAgent
				currentQuery = delegatedQuery(rec, req.Input)
			} else {
				currentAgent = agent.CoordinatorName
				currentQuery = fmt.Sprintf(
					"Unknown agent '%s'. Please handle the task yourself or use available tools.",
					rec.TargetAgent)
			}

		default:
			currentAgent = agent.CoordinatorName
			currentQuery = fmt.Sprintf(
				"Invalid action '%s'. Previous JSON: %s\nPlease provide a 'final' answer.",
				rec.Action, rec.Encode())
		}
	}

	// Step budget exhausted: designed degradation, not an error.
	o.logger.Warn("step budget exhausted", "session", sessionID, "max_steps", maxSteps)
	if err := o.persistTurn(ctx, sessionID, req, MaxStepsAnswer); err != nil {
		return nil, err
	}
	result.Answer = MaxStepsAnswer
	return result, nil
}

// seedContext assembles prior-session history and known user facts into the
// initial transcript so the first agent invocation already sees them.
func (o *Orchestrator) seedContext(ctx context.Context, sessionID, userID string) ([]string, bool, error) {
	var transcript []string

	history, err := o.store.RecentContext(ctx, sessionID, contextMaxTurns, contextMaxChars)
	if err != nil {
		return nil, false, fmt.Errorf("assemble session context: %w", err)
	}
	if history != "" {
		transcript = appendTranscript(transcript, history)
	}

	if userID != "" {
		facts, err := o.store.FormatFacts(ctx, userID)
		if err != nil {
			return nil, false, fmt.Errorf("load user facts: %w", err)
		}
		if facts != "" {
			transcript = appendTranscript(transcript, facts)
		}
	}

	return transcript, len(transcript) > 0, nil
}

func (o *Orchestrator) persistTurn(ctx context.Context, sessionID string, req Request, answer string) error {
	_, err := o.store.SaveTurn(ctx, memory.SaveTurnParams{
		SessionID:   sessionID,
		UserID:      req.UserID,
		UserMessage: req.Input,
		AIResponse:  answer,
		Persona:     req.Persona,
	})
	if err != nil {
		return fmt.Errorf("persist turn: %w", err)
	}
	return nil
}

// delegatedQuery picks the query handed to a delegation target: the task
// argument if present, else the decoded answer, else the original user goal.
func delegatedQuery(rec protocol.Record, userInput string) string {
	if task := tool.StringArg(rec.Args, "task"); task != "" {
		return task
	}
	if rec.Answer != "" {
		return rec.Answer
	}
	return fmt.Sprintf("User goal: %s", userInput)
}

func joinTranscript(transcript []string) string {
	return strings.Join(transcript, "\n")
}

// appendTranscript adds one entry and evicts the oldest entries while the
// rendered transcript exceeds the byte cap. An oversized single entry is
// kept: eviction never drops the newest record.
func appendTranscript(transcript []string, entry string) []string {
	transcript = append(transcript, entry)
	size := 0
	for _, e := range transcript {
		size += len(e) + 1
	}
	for size > maxTranscriptBytes && len(transcript) > 1 {
		size -= len(transcript[0]) + 1
		transcript = transcript[1:]
	}
	return transcript
}
