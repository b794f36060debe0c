package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pesio-ai/be-hr-governance/internal/errors"
)

// ProcessClient is a client for the process-legality authority, which owns the
// workflow transition graph.
type ProcessClient struct {
	baseURL string
	client  *http.Client
}

// NewProcessClient creates a new process-legality client.
func NewProcessClient(baseURL string) *ProcessClient {
	return &ProcessClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// CheckTransition asks the process authority whether the transition is
// structurally valid for the role and whether process rules additionally
// require approval.
func (c *ProcessClient) CheckTransition(ctx context.Context, currentState, nextState, role string) (*ProcessLegalityResult, error) {
	q := url.Values{}
	q.Set("current_state", currentState)
	q.Set("next_state", nextState)
	q.Set("role", role)

	endpoint := fmt.Sprintf("%s/api/v1/process/transitions/check?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build process legality request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Unavailable("process legality authority", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Unavailable("process legality authority",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var result ProcessLegalityResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Unavailable("process legality authority",
			fmt.Errorf("failed to decode response: %w", err))
	}

	// An invalid transition must always carry a reason for the final verdict.
	if !result.Valid && result.Reason == "" {
		result.Reason = fmt.Sprintf("transition %s -> %s is not permitted for role %s",
			currentState, nextState, role)
	}

	return &result, nil
}
