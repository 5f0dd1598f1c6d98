package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniagi/miniagi/model"
	"github.com/miniagi/miniagi/protocol"
)

func TestInvoker_UnknownAgent(t *testing.T) {
	inv := NewInvoker(NewRegistry(), model.NewMockTransport(), nil)

	_, err := inv.Invoke(context.Background(), "ghost", "hi", "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAgent)
	assert.Contains(t, err.Error(), "ghost")
}

func TestInvoker_SystemMessageComposition(t *testing.T) {
	transport := model.NewMockTransport()
	agents := NewRegistry(Agent{Name: "solo", Instructions: "You are solo."})
	inv := NewInvoker(agents, transport, nil)

	_, err := inv.Invoke(context.Background(), "solo", "do it", "prior context", "be terse")
	require.NoError(t, err)

	calls := transport.Calls()
	require.Len(t, calls, 1)
	system := calls[0].System

	// Override block first, then role instructions, then prior-step context,
	// joined as one system message.
	overrideIdx := strings.Index(system, "CUSTOM USER INSTRUCTIONS:\nbe terse")
	instructionsIdx := strings.Index(system, "You are solo.")
	contextIdx := strings.Index(system, "Context from previous steps:\nprior context")
	require.GreaterOrEqual(t, overrideIdx, 0)
	require.Greater(t, instructionsIdx, overrideIdx)
	require.Greater(t, contextIdx, instructionsIdx)
	assert.Contains(t, system, "\n---\n")
	assert.Equal(t, "do it", calls[0].User)
}

func TestInvoker_OmitsEmptyBlocks(t *testing.T) {
	transport := model.NewMockTransport()
	agents := NewRegistry(Agent{Name: "solo", Instructions: "You are solo."})
	inv := NewInvoker(agents, transport, nil)

	_, err := inv.Invoke(context.Background(), "solo", "do it", "", "")
	require.NoError(t, err)

	system := transport.Calls()[0].System
	assert.Equal(t, "You are solo.", system)
	assert.NotContains(t, system, "CUSTOM USER INSTRUCTIONS")
	assert.NotContains(t, system, "Context from previous steps")
}

func TestInvoker_DecodesReply(t *testing.T) {
	transport := model.NewMockTransport()
	transport.AddResponse("question", `{"thought":"ok","action":"final","answer":"42"}`)
	agents := NewRegistry(Agent{Name: "solo", Instructions: "You are solo."})
	inv := NewInvoker(agents, transport, nil)

	rec, err := inv.Invoke(context.Background(), "solo", "question", "", "")
	require.NoError(t, err)
	assert.Equal(t, protocol.KindFinal, rec.Kind())
	assert.Equal(t, "42", rec.Answer)
}

func TestInvoker_MalformedReplyNeverErrors(t *testing.T) {
	transport := model.NewMockTransport()
	transport.AddResponse("question", "sorry, plain prose only")
	agents := NewRegistry(Agent{Name: "solo", Instructions: "You are solo."})
	inv := NewInvoker(agents, transport, nil)

	rec, err := inv.Invoke(context.Background(), "solo", "question", "", "")
	require.NoError(t, err)
	assert.Equal(t, protocol.KindFinal, rec.Kind())
	assert.Equal(t, "sorry, plain prose only", rec.Answer)
}

func TestInvoker_TransportErrorPropagates(t *testing.T) {
	transport := model.NewMockTransport()
	transport.Fail(errors.New("connection refused"))
	agents := NewRegistry(Agent{Name: "solo", Instructions: "You are solo."})
	inv := NewInvoker(agents, transport, nil)

	_, err := inv.Invoke(context.Background(), "solo", "question", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent solo")
	assert.Contains(t, err.Error(), "connection refused")
}
