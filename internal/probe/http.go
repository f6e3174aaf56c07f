package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"netwatch/internal/models"
)

// HTTP issues a GET request; any status below 400 counts as reachable.
type HTTP struct {
	client *http.Client
}

// NewHTTP returns an HTTP prober that does not follow redirects.
func NewHTTP() *HTTP {
	return &HTTP{client: &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

// Probe implements Prober.
func (p *HTTP) Probe(ctx context.Context, target models.Target) (models.ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.Address, nil)
	if err != nil {
		return failed(target, err.Error()), fmt.Errorf("probe %s: %w", target.ID, err)
	}

	started := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return failed(target, msg), nil
	}
	defer resp.Body.Close()
	latency := time.Since(started)

	if resp.StatusCode >= 400 {
		return failed(target, fmt.Sprintf("unexpected status code: %d", resp.StatusCode)), nil
	}
	return succeeded(target, latency), nil
}
