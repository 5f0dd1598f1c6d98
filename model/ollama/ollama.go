// Package ollama provides a model.Transport for a local or remote Ollama
// server using the official API client.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/miniagi/miniagi/model"
)

// DefaultBaseURL is the standard local Ollama endpoint.
const DefaultBaseURL = "http://localhost:11434"

// Options configure the Ollama transport adapter.
type Options struct {
	Model       string
	BaseURL     string
	Temperature float64
	// Timeout bounds one chat round trip. Local models can be slow to load,
	// so the default is generous.
	Timeout time.Duration
}

// Transport wraps the Ollama chat API behind model.Transport.
type Transport struct {
	client *api.Client
	opts   Options
}

// NewTransport creates an Ollama transport.
func NewTransport(optFns ...func(o *Options)) (*Transport, error) {
	opts := Options{
		Model:       "gpt-oss-20b",
		BaseURL:     DefaultBaseURL,
		Temperature: 0.2,
		Timeout:     60 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL: %w", err)
	}
	client := api.NewClient(u, &http.Client{Timeout: opts.Timeout})
	return &Transport{client: client, opts: opts}, nil
}

// Send implements model.Transport via a non-streaming chat request.
func (t *Transport) Send(ctx context.Context, systemMessage, userMessage string) (string, error) {
	var messages []api.Message
	if systemMessage != "" {
		messages = append(messages, api.Message{Role: "system", Content: systemMessage})
	}
	messages = append(messages, api.Message{Role: "user", Content: userMessage})

	stream := false
	req := &api.ChatRequest{
		Model:    t.opts.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  map[string]any{"temperature": t.opts.Temperature},
	}

	var content strings.Builder
	err := t.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat at %s with model %s: %w", t.opts.BaseURL, t.opts.Model, err)
	}
	return content.String(), nil
}

// Info returns metadata describing this transport.
func (t *Transport) Info() model.Info {
	return model.Info{Name: t.opts.Model, Provider: "ollama"}
}
