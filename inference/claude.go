package inference

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/alcoveai/alcove/core"
)

// Claude streams responses from the Anthropic Messages API.
type Claude struct {
	client *anthropic.Client
}

// NewClaude creates a Claude backend. Extra request options are applied to
// every call.
func NewClaude(apiKey string, opts ...option.RequestOption) *Claude {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := anthropic.NewClient(opts...)
	return &Claude{client: &client}
}

// Stream sends req and emits each text fragment as it arrives.
func (c *Claude) Stream(ctx context.Context, req *Request, emit func(fragment string)) error {
	stream := c.client.Messages.NewStreaming(ctx, buildParams(req))
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				emit(delta.Text)
			}
		case anthropic.MessageStopEvent:
			// Stream complete
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("claude stream: %w", err)
	}
	return nil
}

// buildParams maps a Request onto the Messages API. The API has no system
// role in the message list, so system-role history joins the system block.
func buildParams(req *Request) anthropic.MessageNewParams {
	system := req.System

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case core.RoleSystem:
			if system == "" {
				system = m.Content
			} else {
				system += "\n\n" + m.Content
			}
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = anthropic.Float(req.TopP)
	}
	return params
}
