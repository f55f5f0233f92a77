package llm

import (
	"askpaul-backend/internal/models"
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// Ensure AnthropicProvider implements the Provider interface.
var _ Provider = (*AnthropicProvider)(nil)

// AnthropicProvider talks to the Anthropic messages API through langchaingo.
type AnthropicProvider struct {
	llm   llms.Model
	model string
}

// NewAnthropicProvider builds the provider. An empty APIKey falls back to ANTHROPIC_API_KEY.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	opts := []anthropic.Option{
		anthropic.WithModel(model),
	}
	if cfg.APIKey != "" {
		opts = append(opts, anthropic.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	client, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create anthropic client: %w", err)
	}
	return &AnthropicProvider{llm: client, model: model}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Generate sends the system instruction and turns as one request.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	msgContents := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		msgContents = append(msgContents, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		msgType := llms.ChatMessageTypeHuman
		if m.Role == models.RoleAssistant {
			msgType = llms.ChatMessageTypeAI
		}
		msgContents = append(msgContents, llms.TextParts(msgType, m.Content))
	}

	resp, err := p.llm.GenerateContent(ctx, msgContents, llms.WithMaxTokens(req.MaxTokens))
	if err != nil {
		return nil, classify(fmt.Errorf("anthropic generate: %w", err))
	}

	out := &Response{Model: p.model}
	for _, choice := range resp.Choices {
		if choice == nil {
			continue
		}
		if out.StopReason == "" {
			out.StopReason = choice.StopReason
		}
		if len(choice.ToolCalls) > 0 {
			out.Blocks = append(out.Blocks, ContentBlock{Kind: BlockToolUse})
			continue
		}
		out.Blocks = append(out.Blocks, ContentBlock{Kind: BlockText, Text: choice.Content})
	}
	return out, nil
}
