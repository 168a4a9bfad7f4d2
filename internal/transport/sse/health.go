package sse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HealthCheck probes the backend health endpoint.
func (t *Transport) HealthCheck(ctx context.Context) error {
	u := strings.TrimRight(t.cfg.BaseURL, "/") + t.cfg.HealthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	if t.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("backend health: status %d", resp.StatusCode)
	}
	return nil
}
