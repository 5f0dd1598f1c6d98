// Package anthropic provides a model.Transport for the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/miniagi/miniagi/model"
)

// Options configure the Anthropic transport adapter (model id, temperature,
// max tokens, API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Transport wraps the Anthropic Messages API behind model.Transport.
type Transport struct {
	client *anthropic.Client
	opts   Options
}

// NewTransport creates an Anthropic transport using the official client.
func NewTransport(optFns ...func(o *Options)) *Transport {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.2,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)
	return &Transport{client: &client, opts: opts}
}

// NewTransportFromClient creates a transport from an existing client.
func NewTransportFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Transport {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.2,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Transport{client: client, opts: opts}
}

// Send implements model.Transport via a non-streaming Messages call.
func (t *Transport) Send(ctx context.Context, systemMessage, userMessage string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       t.opts.Model,
		MaxTokens:   t.opts.MaxTokens,
		Temperature: anthropic.Float(t.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	}
	if systemMessage != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemMessage}}
	}

	resp, err := t.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("anthropic api error: no text content returned")
	}
	return text.String(), nil
}

// Info returns metadata describing this transport.
func (t *Transport) Info() model.Info {
	return model.Info{Name: string(t.opts.Model), Provider: "anthropic"}
}
