package pharmacovigilance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient implements Source using the openFDA drug adverse-event API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	builder QueryBuilder
}

// NewHTTPClient creates a new openFDA client. An empty apiKey is valid:
// openFDA serves unauthenticated requests at a lower rate limit.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Name() string { return "openfda" }

// Lookup queries report counts for the drug/reaction pair. No matching
// reports is a (nil, nil) result, not an error.
func (c *HTTPClient) Lookup(ctx context.Context, drug, reaction string) (*Evidence, error) {
	total, err := c.count(ctx, c.builder.BuildAdverseEventQuery(drug, reaction))
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	serious, err := c.count(ctx, c.builder.BuildAdverseEventQuery(drug, reaction)+" AND serious:1")
	if err != nil {
		// The total already establishes co-occurrence. Seriousness is a
		// refinement; its failure degrades to zero, not to a lost pair.
		serious = 0
	}

	return &Evidence{
		Drug:           drug,
		Reaction:       reaction,
		TotalReports:   total,
		SeriousReports: serious,
		OnsetMinDays:   defaultOnsetMinDays,
		OnsetMaxDays:   defaultOnsetMaxDays,
		SourceName:     c.Name(),
	}, nil
}

func (c *HTTPClient) count(ctx context.Context, search string) (int, error) {
	params := url.Values{
		"search": {search},
		"limit":  {"1"},
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	u := fmt.Sprintf("%s/drug/event.json?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, classifyError(err)
	}
	defer resp.Body.Close()

	// openFDA answers 404 for searches with zero matching reports.
	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrQueryError, resp.StatusCode)
	}

	var fdaResp openFDAResponse
	if err := json.NewDecoder(resp.Body).Decode(&fdaResp); err != nil {
		return 0, fmt.Errorf("decoding openfda response: %w", err)
	}

	return fdaResp.Meta.Results.Total, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
}

// --- openFDA response types ---

type openFDAResponse struct {
	Meta struct {
		Results struct {
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
}

// Compile-time check that HTTPClient implements Source.
var _ Source = (*HTTPClient)(nil)
