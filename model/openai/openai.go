// Package openai provides a model.Transport backed by the OpenAI Chat
// Completions API via the official SDK. A configurable base URL makes the
// adapter usable with any OpenAI-compatible endpoint (Z.AI and similar
// proxies) by supplying their URL and API key.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/miniagi/miniagi/model"
)

// Options configure the OpenAI transport adapter. Fields mirror a minimal
// subset of Chat Completion parameters; extend via functional options
// without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string
	// Provider labels Info() output; defaults to "openai". Set it when
	// pointing BaseURL at a compatible third-party endpoint.
	Provider string
}

// Transport wraps the OpenAI Chat Completions API behind model.Transport.
type Transport struct {
	client *openai.Client
	opts   Options
}

// NewTransport creates an OpenAI transport using the official client.
func NewTransport(optFns ...func(o *Options)) *Transport {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 10240,
		Provider:            "openai",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)
	return &Transport{client: &client, opts: opts}
}

// NewTransportFromClient creates a transport from an existing client.
func NewTransportFromClient(client *openai.Client, optFns ...func(o *Options)) *Transport {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 10240,
		Provider:            "openai",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Transport{client: client, opts: opts}
}

// Send implements model.Transport via a non-streaming chat completion.
func (t *Transport) Send(ctx context.Context, systemMessage, userMessage string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if systemMessage != "" {
		messages = append(messages, openai.SystemMessage(systemMessage))
	}
	messages = append(messages, openai.UserMessage(userMessage))

	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               t.opts.Model,
		Temperature:         openai.Float(t.opts.Temperature),
		MaxCompletionTokens: openai.Int(t.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api error: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Info returns metadata describing this transport.
func (t *Transport) Info() model.Info {
	return model.Info{Name: t.opts.Model, Provider: t.opts.Provider}
}
