// Package model defines the minimal transport interface the engine needs from
// a language-model provider, plus a deterministic mock for tests. Provider
// adapters live in subpackages (openai, anthropic, ollama) so their SDKs are
// only linked when used.
package model

import (
	"context"
	"fmt"
	"sync"
)

// Info contains metadata about a transport implementation, surfaced at the
// front door for debugging.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "ollama", "mock"
}

// Transport sends one composed exchange to a language model and returns the
// assistant's raw text. Some providers accept only a single system message,
// so callers must pre-concatenate system content into systemMessage.
//
// A transport error (network, HTTP, unexpected response shape) is a hard
// failure: it propagates to the orchestration caller and the turn is not
// persisted.
type Transport interface {
	Send(ctx context.Context, systemMessage, userMessage string) (string, error)

	// Info returns metadata about the transport implementation.
	Info() Info
}

// MockTransport is a lightweight in-memory Transport useful for tests and
// examples. Replies resolve in order: exact match on the user message,
// then the FIFO queue, then a generated placeholder.
type MockTransport struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	queue     []string
	err       error
	calls     []MockCall
}

// MockCall records one Send invocation for assertions.
type MockCall struct {
	System string
	User   string
}

// NewMockTransport constructs an empty MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		info:      Info{Name: "mock", Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a user message.
func (m *MockTransport) AddResponse(userMessage, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[userMessage] = response
}

// Enqueue appends replies returned in order when no exact match applies.
func (m *MockTransport) Enqueue(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, responses...)
}

// Fail makes every subsequent Send return err.
func (m *MockTransport) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of all recorded invocations.
func (m *MockTransport) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Send implements Transport.
func (m *MockTransport) Send(ctx context.Context, systemMessage, userMessage string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{System: systemMessage, User: userMessage})
	if m.err != nil {
		return "", m.err
	}
	if resp, ok := m.responses[userMessage]; ok {
		return resp, nil
	}
	if len(m.queue) > 0 {
		resp := m.queue[0]
		m.queue = m.queue[1:]
		return resp, nil
	}
	return fmt.Sprintf("Mock response to: %s", userMessage), nil
}

// Info implements Transport.
func (m *MockTransport) Info() Info { return m.info }
