package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/medsignal/medsignal/internal/config"
	"github.com/medsignal/medsignal/pkg/models"
	"github.com/sashabaranov/go-openai"
)

const defaultMaxTokens = 2048

// Per-1M-token prices for the models we run in practice. Unknown models
// fall back to the gpt-4o-mini rate so cost accounting stays nonzero.
var tokenPricesUSD = map[string]struct{ prompt, completion float64 }{
	"gpt-4o-mini": {0.15, 0.60},
	"gpt-4o":      {2.50, 10.00},
}

// Provider implements models.AIProvider using the OpenAI chat completions API.
type Provider struct {
	client *openai.Client
	model  string
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Provider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (models.Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	ccr := openai.ChatCompletionRequest{
		Model: p.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	// Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of MaxTokens.
	if strings.HasPrefix(p.model, "o1") || strings.HasPrefix(p.model, "o3") ||
		strings.HasPrefix(p.model, "o4") || strings.HasPrefix(p.model, "gpt-5") {
		ccr.MaxCompletionTokens = maxTokens
	} else {
		ccr.MaxTokens = maxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return models.Completion{}, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Completion{}, fmt.Errorf("create chat completion: no choices in response")
	}

	return models.Completion{
		Text:    resp.Choices[0].Message.Content,
		Model:   resp.Model,
		CostUSD: costUSD(resp.Model, resp.Usage),
	}, nil
}

func costUSD(model string, usage openai.Usage) float64 {
	price, ok := tokenPricesUSD[model]
	if !ok {
		price = tokenPricesUSD["gpt-4o-mini"]
	}
	return float64(usage.PromptTokens)/1e6*price.prompt +
		float64(usage.CompletionTokens)/1e6*price.completion
}

var _ models.AIProvider = (*Provider)(nil)
