// Package claude implements answer generation on the Anthropic Messages
// streaming API.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mementohq/memento-go/core"
	"github.com/mementohq/memento-go/generate"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4096

	streamBuffer = 16
)

// Generator streams answers from the Anthropic API.
type Generator struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// New creates a generator. Empty model and zero maxTokens use the defaults.
func New(client *anthropic.Client, model string, maxTokens int64) *Generator {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Generator{client: client, model: model, maxTokens: maxTokens}
}

// Generate opens a streaming message call and forwards text deltas as
// fragments. The terminal result carries the accumulated full text.
func (g *Generator) Generate(ctx context.Context, req generate.Request) (*generate.Stream, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, core.Validationf("generate: empty question")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages:  buildMessages(req),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	out := generate.NewStream(streamBuffer)

	go func() {
		stream := g.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		var full strings.Builder
		emitted := false

		for stream.Next() {
			event := stream.Current()
			switch evt := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := evt.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text == "" {
						continue
					}
					full.WriteString(delta.Text)
					if !out.Send(ctx, delta.Text) {
						out.Finish(generate.Result{Err: ctx.Err()})
						return
					}
					emitted = true
				}
			}
		}

		if err := stream.Err(); err != nil {
			if ctx.Err() != nil {
				out.Finish(generate.Result{Err: ctx.Err()})
				return
			}
			// Nothing delivered yet means the backend never answered:
			// retryable. A failure mid-stream is not.
			if !emitted {
				out.Finish(generate.Result{Err: core.ModelUnavailable(err)})
				return
			}
			out.Finish(generate.Result{Err: fmt.Errorf("%w: %v", core.ErrGenerationFailed, err)})
			return
		}

		out.Finish(generate.Result{Text: full.String()})
	}()

	return out, nil
}

// buildMessages converts prior turns plus the question into API messages.
func buildMessages(req generate.Request) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, m := range req.History {
		switch m.Role {
		case core.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Question)))
	return messages
}
