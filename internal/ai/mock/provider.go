package mock

import (
	"context"

	"github.com/medsignal/medsignal/pkg/models"
)

// Provider satisfies models.AIProvider for testing and local development.
type Provider struct {
	Name_        string
	CompleteFunc func(ctx context.Context, req models.CompletionRequest) (models.Completion, error)
}

func (m *Provider) Name() string { return m.Name_ }

func (m *Provider) Complete(ctx context.Context, req models.CompletionRequest) (models.Completion, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return models.Completion{}, nil
}

// NewProvider returns a Provider with a sensible canned analysis response.
func NewProvider() *Provider {
	return &Provider{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (models.Completion, error) {
			return models.Completion{
				Text: `{"drug_interactions": [], "side_effects": [], "health_trends": [],` +
					` "recommendations": ["Continue monitoring as usual"], "confidence": 0.85, "severity": "low"}`,
				Model:   "mock-v1",
				CostUSD: 0,
			}, nil
		},
	}
}

// NewCannedProvider returns a Provider that always answers with the given text.
func NewCannedProvider(text string) *Provider {
	return &Provider{
		Name_: "mock-canned",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (models.Completion, error) {
			return models.Completion{Text: text, Model: "mock-v1"}, nil
		},
	}
}

// NewFailingProvider returns a Provider that always returns the given error.
func NewFailingProvider(err error) *Provider {
	return &Provider{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (models.Completion, error) {
			return models.Completion{}, err
		},
	}
}

// NewTimeoutProvider returns a Provider that blocks until context is cancelled.
// It must not import the parent package: the factory's mock case already
// depends on this one.
func NewTimeoutProvider() *Provider {
	return &Provider{
		Name_: "mock-timeout",
		CompleteFunc: func(ctx context.Context, _ models.CompletionRequest) (models.Completion, error) {
			<-ctx.Done()
			return models.Completion{}, ctx.Err()
		},
	}
}

// Compile-time check that Provider implements AIProvider.
var _ models.AIProvider = (*Provider)(nil)
