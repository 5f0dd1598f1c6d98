package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniagi/miniagi/agent"
	"github.com/miniagi/miniagi/memory"
	"github.com/miniagi/miniagi/model"
	"github.com/miniagi/miniagi/tool"
)

func newTestOrchestrator(t *testing.T, transport *model.MockTransport) (*Orchestrator, *memory.Store) {
	t.Helper()

	store, err := memory.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runPython := tool.NewFunctionTool("run_python", "run_python(code: str) - Execute Python code",
		func(_ context.Context, args map[string]any) (string, error) {
			return "EXEC_OK: 55", nil
		})
	tools := tool.NewRegistry(nil, runPython)

	agents := agent.BuiltinRegistry(tools.Menu())
	invoker := agent.NewInvoker(agents, transport, nil)

	orch, err := New(agents, tools, invoker, store, nil, nil)
	require.NoError(t, err)
	return orch, store
}

func TestNew_RequiresCoordinator(t *testing.T) {
	store, err := memory.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	agents := agent.NewRegistry(agent.NewCoder())
	tools := tool.NewRegistry(nil)
	invoker := agent.NewInvoker(agents, model.NewMockTransport(), nil)

	_, err = New(agents, tools, invoker, store, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orchestrator")
}

func TestRun_ToolThenFinal(t *testing.T) {
	transport := model.NewMockTransport()
	transport.Enqueue(
		`{"thought":"compute","action":"use_tool","tool":"run_python","args":{"code":"print(sum(range(1,11)))"}}`,
		`{"thought":"done","action":"final","answer":"The sum is 55"}`,
	)
	orch, store := newTestOrchestrator(t, transport)

	result, err := orch.Run(context.Background(), Request{Input: "Calculate the sum of 1..10 using Python"})
	require.NoError(t, err)

	assert.Equal(t, "The sum is 55", result.Answer)
	require.GreaterOrEqual(t, len(result.Steps), 2)
	assert.Equal(t, "use_tool", result.Steps[0].Action)
	assert.Equal(t, agent.CoordinatorName, result.Steps[0].Agent)
	assert.Equal(t, "final", result.Steps[1].Action)
	assert.False(t, result.ContextUsed)

	// The tool output is fed back to the same agent in a templated query.
	calls := transport.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].User, "Tool `run_python` output:")
	assert.Contains(t, calls[1].User, "EXEC_OK: 55")
	assert.Contains(t, calls[1].User, "Now continue your reasoning and decide next action.")

	// Exactly one turn persisted.
	turns, err := store.History(context.Background(), result.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "The sum is 55", turns[0].AIResponse)
}

func TestRun_UnknownToolEscalates(t *testing.T) {
	transport := model.NewMockTransport()
	transport.Enqueue(
		`{"thought":"try","action":"use_tool","tool":"quantum_solver","args":{}}`,
		`{"thought":"ok","action":"final","answer":"best effort"}`,
	)
	orch, _ := newTestOrchestrator(t, transport)

	result, err := orch.Run(context.Background(), Request{Input: "solve it"})
	require.NoError(t, err)

	require.Len(t, result.Steps, 2)
	assert.Equal(t, agent.CoordinatorName, result.Steps[1].Agent)

	corrective := transport.Calls()[1].User
	assert.Contains(t, corrective, "Unknown tool 'quantum_solver'")
	assert.Contains(t, corrective, "Please provide a final answer with available information.")
}

func TestRun_DelegateSwitchesAgent(t *testing.T) {
	transport := model.NewMockTransport()
	transport.Enqueue(
		`{"thought":"needs code","action":"delegate","target_agent":"coder","args":{"task":"write fizzbuzz"}}`,
		`{"thought":"wrote it","action":"final","answer":"here is fizzbuzz"}`,
	)
	orch, _ := newTestOrchestrator(t, transport)

	result, err := orch.Run(context.Background(), Request{Input: "make me fizzbuzz"})
	require.NoError(t, err)

	require.Len(t, result.Steps, 2)
	assert.Equal(t, "coder", result.Steps[1].Agent)
	assert.Equal(t, "write fizzbuzz", transport.Calls()[1].User)
}

func TestRun_DelegateFallbackQuery(t *testing.T) {
	// No task argument and no answer: the delegate receives the user goal.
	transport := model.NewMockTransport()
	transport.Enqueue(
		`{"thought":"hand off","action":"delegate","target_agent":"researcher","args":{}}`,
		`{"thought":"done","action":"final","answer":"summary"}`,
	)
	orch, _ := newTestOrchestrator(t, transport)

	_, err := orch.Run(context.Background(), Request{Input: "summarize the report"})
	require.NoError(t, err)

	assert.Equal(t, "User goal: summarize the report", transport.Calls()[1].User)
}

func TestRun_UnknownAgentEscalates(t *testing.T) {
	transport := model.NewMockTransport()
	transport.Enqueue(
		`{"thought":"hand off","action":"delegate","target_agent":"lawyer","args":{}}`,
		`{"thought":"fine","action":"final","answer":"handled it"}`,
	)
	orch, _ := newTestOrchestrator(t, transport)

	result, err := orch.Run(context.Background(), Request{Input: "sue them"})
	require.NoError(t, err)

	assert.Equal(t, agent.CoordinatorName, result.Steps[1].Agent)
	corrective := transport.Calls()[1].User
	assert.Contains(t, corrective, "Unknown agent 'lawyer'")
	assert.Contains(t, corrective, "Please handle the task yourself or use available tools.")
}

func TestRun_InvalidActionEscalates(t *testing.T) {
	transport := model.NewMockTransport()
	transport.Enqueue(
		`{"thought":"confused","action":"dance","args":{}}`,
		`{"thought":"ok","action":"final","answer":"recovered"}`,
	)
	orch, _ := newTestOrchestrator(t, transport)

	result, err := orch.Run(context.Background(), Request{Input: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "recovered", result.Answer)
	corrective := transport.Calls()[1].User
	assert.Contains(t, corrective, "Invalid action 'dance'")
	assert.Contains(t, corrective, "Please provide a 'final' answer.")
}

func TestRun_EmptyFinalAnswerGetsSentinel(t *testing.T) {
	transport := model.NewMockTransport()
	transport.Enqueue(`{"thought":"nothing to say","action":"final","answer":""}`)
	orch, store := newTestOrchestrator(t, transport)

	result, err := orch.Run(context.Background(), Request{Input: "hello"})
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, result.Answer)

	turns, err := store.History(context.Background(), result.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, NoAnswer, turns[0].AIResponse)
}

func TestRun_MaxStepsExhausted(t *testing.T) {
	transport := model.NewMockTransport()
	for i := 0; i < 3; i++ {
		transport.Enqueue(`{"thought":"keep going","action":"use_tool","tool":"run_python","args":{"code":"1"}}`)
	}
	orch, store := newTestOrchestrator(t, transport)

	result, err := orch.Run(context.Background(), Request{Input: "loop forever", MaxSteps: 3})
	require.NoError(t, err)

	assert.Equal(t, MaxStepsAnswer, result.Answer)
	assert.Len(t, result.Steps, 3)

	// Exactly one turn persisted, with the sentinel as the response.
	turns, err := store.History(context.Background(), result.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, MaxStepsAnswer, turns[0].AIResponse)
}

func TestRun_TransportErrorIsHard(t *testing.T) {
	transport := model.NewMockTransport()
	transport.Fail(errors.New("upstream down"))
	orch, store := newTestOrchestrator(t, transport)

	sessionID, err := store.GetOrCreateSession(context.Background(), "", "")
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), Request{Input: "hello", SessionID: sessionID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")

	// No turn is persisted when no answer was produced.
	turns, err := store.History(context.Background(), sessionID, 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRun_SeedsSessionContext(t *testing.T) {
	transport := model.NewMockTransport()
	transport.Enqueue(`{"thought":"hi","action":"final","answer":"hi again"}`)
	orch, store := newTestOrchestrator(t, transport)
	ctx := context.Background()

	sessionID, err := store.GetOrCreateSession(ctx, "", "user-7")
	require.NoError(t, err)
	_, err = store.SaveTurn(ctx, memory.SaveTurnParams{
		SessionID:   sessionID,
		UserID:      "user-7",
		UserMessage: "my name is Ada",
		AIResponse:  "nice to meet you Ada",
	})
	require.NoError(t, err)
	require.NoError(t, store.SaveFact(ctx, memory.SaveFactParams{
		UserID: "user-7", FactKey: "name", FactValue: "Ada",
	}))

	result, err := orch.Run(ctx, Request{Input: "what is my name?", SessionID: sessionID, UserID: "user-7"})
	require.NoError(t, err)

	assert.True(t, result.ContextUsed)
	assert.Equal(t, sessionID, result.SessionID)

	system := transport.Calls()[0].System
	assert.Contains(t, system, "Previous conversation:")
	assert.Contains(t, system, "my name is Ada")
	assert.Contains(t, system, "Known facts about user:")
	assert.Contains(t, system, "- name: Ada")
}

func TestRun_SystemOverrideReachesTransport(t *testing.T) {
	transport := model.NewMockTransport()
	transport.Enqueue(`{"thought":"ok","action":"final","answer":"done"}`)
	orch, _ := newTestOrchestrator(t, transport)

	_, err := orch.Run(context.Background(), Request{Input: "hello", SystemOverride: "Answer in French."})
	require.NoError(t, err)

	system := transport.Calls()[0].System
	assert.Contains(t, system, "CUSTOM USER INSTRUCTIONS:\nAnswer in French.")
}

func TestAppendTranscript_EvictsOldestFirst(t *testing.T) {
	var transcript []string
	big := make([]byte, 7*1024)
	for i := range big {
		big[i] = 'x'
	}

	transcript = appendTranscript(transcript, "first "+string(big))
	transcript = appendTranscript(transcript, "second "+string(big))
	transcript = appendTranscript(transcript, "third "+string(big))

	// 3 x 7KiB exceeds the 16KiB cap: the oldest entry is evicted.
	require.Len(t, transcript, 2)
	assert.Contains(t, transcript[0], "second")
	assert.Contains(t, transcript[1], "third")
}

func TestAppendTranscript_KeepsOversizedNewest(t *testing.T) {
	huge := make([]byte, 32*1024)
	for i := range huge {
		huge[i] = 'y'
	}

	transcript := appendTranscript([]string{"old"}, string(huge))
	require.Len(t, transcript, 1)
	assert.Equal(t, string(huge), transcript[0])
}
