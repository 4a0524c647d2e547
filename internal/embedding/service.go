// Package embedding converts medical profile summaries into dense vectors
// via an OpenAI-compatible embeddings endpoint.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/medsignal/medsignal/internal/config"
)

var ErrEncoderUnavailable = errors.New("embedding: encoder unavailable")

// Result is one embedding plus the model that produced it. Callers must not
// assume a fixed dimension: when the domain encoder is unavailable the
// service falls back to a smaller general-purpose model.
type Result struct {
	Vector    []float32
	Model     string
	Dimension int
	// Placeholder is true for empty input; placeholder vectors must never
	// be written to the semantic cache.
	Placeholder bool
}

// Embedder is the interface the analysis pipeline depends on.
type Embedder interface {
	Embed(ctx context.Context, text string) (Result, error)
	// Dimension is the output width of the primary (domain) encoder.
	Dimension() int
}

// Service implements Embedder against an OpenAI-compatible /v1/embeddings API.
type Service struct {
	baseURL     string
	apiKey      string
	model       string
	dimension   int
	fallback    string
	fallbackDim int
	client      *http.Client
}

func NewService(cfg config.EmbeddingConfig) *Service {
	return &Service{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		dimension:   cfg.Dimension,
		fallback:    cfg.FallbackModel,
		fallbackDim: cfg.FallbackDimension,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

// Dimension returns the primary encoder's output width.
func (s *Service) Dimension() int { return s.dimension }

// Embed encodes text with the domain model; if that fails it retries once
// with the general-purpose fallback model. Empty input yields a placeholder
// vector at the primary dimension.
func (s *Service) Embed(ctx context.Context, text string) (Result, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{
			Vector:      placeholderVector(s.dimension),
			Model:       s.model,
			Dimension:   s.dimension,
			Placeholder: true,
		}, nil
	}

	vec, err := s.request(ctx, s.model, s.dimension, trimmed)
	if err == nil {
		return Result{Vector: vec, Model: s.model, Dimension: s.dimension}, nil
	}

	if s.fallback == "" {
		return Result{}, err
	}
	slog.Warn("embedding: domain encoder failed, using fallback",
		"model", s.model, "fallback", s.fallback, "error", err)

	vec, ferr := s.request(ctx, s.fallback, s.fallbackDim, trimmed)
	if ferr != nil {
		return Result{}, fmt.Errorf("%w: %v (fallback: %v)", ErrEncoderUnavailable, err, ferr)
	}
	return Result{Vector: vec, Model: s.fallback, Dimension: s.fallbackDim}, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (s *Service) request(ctx context.Context, model string, expectDim int, text string) ([]float32, error) {
	payload, err := json.Marshal(embeddingRequest{Model: model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrEncoderUnavailable, resp.StatusCode, body)
	}

	var er embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(er.Data) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEncoderUnavailable)
	}

	vec := er.Data[0].Embedding
	if expectDim > 0 && len(vec) != expectDim {
		return nil, fmt.Errorf("embedding: model %s returned dimension %d, expected %d", model, len(vec), expectDim)
	}
	return vec, nil
}

// placeholderVector is a deterministic unit vector used for empty profiles.
func placeholderVector(dim int) []float32 {
	v := make([]float32, dim)
	if dim > 0 {
		v[0] = 1
	}
	return v
}

var _ Embedder = (*Service)(nil)
