package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miniagi/miniagi/logging"
	"github.com/miniagi/miniagi/model"
	"github.com/miniagi/miniagi/protocol"
)

// ErrUnknownAgent indicates an invocation target absent from the registry.
// The orchestration loop treats this as an internal precondition violation,
// distinct from an LLM-reported unknown delegation target.
var ErrUnknownAgent = errors.New("unknown agent")

// sectionSeparator joins the composed system-message blocks.
const sectionSeparator = "\n---\n"

// Invoker assembles a prompt for one agent, calls the language-model
// transport, and decodes the raw reply into a protocol record.
type Invoker struct {
	agents    *Registry
	transport model.Transport
	logger    logging.Logger
}

// NewInvoker constructs an Invoker over the given registry and transport.
func NewInvoker(agents *Registry, transport model.Transport, logger logging.Logger) *Invoker {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Invoker{agents: agents, transport: transport, logger: logger}
}

// Invoke runs one agent turn.
//
// The system message is composed as a single string - optional custom
// override block, then the agent's role instructions, then (if present) the
// context accumulated from prior steps - because some transports accept only
// one system message. Transport failures propagate as hard errors; malformed
// model output never does (the codec's fallback chain absorbs it).
func (inv *Invoker) Invoke(
	ctx context.Context,
	agentName, userContent, extraContext, systemOverride string,
) (protocol.Record, error) {
	a, ok := inv.agents.Lookup(agentName)
	if !ok {
		return protocol.Record{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agentName)
	}

	var parts []string
	if systemOverride != "" {
		parts = append(parts, fmt.Sprintf("CUSTOM USER INSTRUCTIONS:\n%s\n", systemOverride))
	}
	parts = append(parts, a.Instructions)
	if extraContext != "" {
		parts = append(parts, fmt.Sprintf("\nContext from previous steps:\n%s", extraContext))
	}
	systemMessage := strings.Join(parts, sectionSeparator)

	start := time.Now()
	raw, err := inv.transport.Send(ctx, systemMessage, userContent)
	if err != nil {
		inv.logger.Error("llm call failed", "agent", agentName, "duration_ms", time.Since(start).Milliseconds(), "error", err.Error())
		return protocol.Record{}, fmt.Errorf("agent %s: %w", agentName, err)
	}
	inv.logger.Debug("llm call completed", "agent", agentName, "duration_ms", time.Since(start).Milliseconds())

	return protocol.Decode(raw), nil
}
