// Package oracle provides scoring oracle implementations for the validation
// pipeline. The real oracle is an external HTTP service; a static scorer is
// provided for tests and for running a node without one.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/cellchain/cellchain/foundation/cellchain/scda"
	"github.com/cellchain/cellchain/foundation/cellchain/validation"
)

// Client calls an external HTTP scoring service. Requests are rate limited
// client side so a burst of submissions cannot flood the oracle.
type Client struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient constructs a client for the scoring service at the specified
// url, allowing at most rps requests per second.
func NewClient(url string, timeout time.Duration, rps float64) *Client {
	return &Client{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// scoreRequest is the wire form of a scoring call.
type scoreRequest struct {
	Problem   scda.Problem   `json:"problem"`
	Solution  string         `json:"solution"`
	Knowledge scda.Knowledge `json:"knowledge"`
}

// Score implements the validation.Scorer interface over HTTP.
func (c *Client) Score(ctx context.Context, problem scda.Problem, solution string, knowledge scda.Knowledge) (validation.Scores, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return validation.Scores{}, fmt.Errorf("rate limit: %w", err)
	}

	body, err := json.Marshal(scoreRequest{
		Problem:   problem,
		Solution:  solution,
		Knowledge: knowledge,
	})
	if err != nil {
		return validation.Scores{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return validation.Scores{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return validation.Scores{}, fmt.Errorf("call oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return validation.Scores{}, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var scores validation.Scores
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return validation.Scores{}, fmt.Errorf("decode response: %w", err)
	}

	return scores, nil
}

// =============================================================================

// Static is a scorer that always returns the same sub-scores. Useful for
// tests and for running a development node without a scoring service.
type Static struct {
	Scores validation.Scores
	Err    error
}

// Score implements the validation.Scorer interface.
func (s Static) Score(ctx context.Context, problem scda.Problem, solution string, knowledge scda.Knowledge) (validation.Scores, error) {
	if s.Err != nil {
		return validation.Scores{}, s.Err
	}

	return s.Scores, nil
}
