// Package client holds HTTP clients for the services the workers write
// results back to.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/leadgrid/pipeline/shared/ratelimit"
	"github.com/leadgrid/pipeline/shared/retry"
)

// LeadsConfig configures the lead store client.
type LeadsConfig struct {
	BaseURL string
	Secret  string
	// MaxRequests per Window guards the lead store from bursty workers.
	// Zero disables rate limiting.
	MaxRequests int
	Window      time.Duration
	Timeout     time.Duration
}

// Leads talks to the lead store over HTTP. Writes are rate limited and
// retried with backoff.
type Leads struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
}

// NewLeads creates a lead store client.
func NewLeads(cfg LeadsConfig, logger *slog.Logger) *Leads {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *ratelimit.Limiter
	if cfg.MaxRequests > 0 && cfg.Window > 0 {
		limiter = ratelimit.New(cfg.MaxRequests, cfg.Window)
	}

	return &Leads{
		baseURL:    cfg.BaseURL,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

type leadStatusUpdate struct {
	Status          string `json:"status"`
	EmailValidation any    `json:"email_validation,omitempty"`
}

// UpdateLeadStatus records a validation verdict on a lead.
func (l *Leads) UpdateLeadStatus(ctx context.Context, leadID, status string, validation any) error {
	body := leadStatusUpdate{
		Status:          status,
		EmailValidation: validation,
	}

	err := retry.Do(ctx, retry.Options{Logger: l.logger}, func() error {
		return l.post(ctx, "/api/v1/leads/"+leadID+"/status", body)
	})
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}

	l.logger.Debug("Lead status updated",
		slog.String("lead_id", leadID),
		slog.String("status", status),
	)
	return nil
}

func (l *Leads) post(ctx context.Context, path string, payload any) error {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.secret != "" {
		req.Header.Set("Authorization", "Bearer "+l.secret)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lead store request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("lead store returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	return nil
}

// NoopLeads discards lead updates. Used when no lead store is configured so
// email validation jobs still complete.
type NoopLeads struct {
	Logger *slog.Logger
}

// UpdateLeadStatus logs and drops the update.
func (n NoopLeads) UpdateLeadStatus(ctx context.Context, leadID, status string, validation any) error {
	if n.Logger != nil {
		n.Logger.Debug("Lead store not configured, dropping lead update",
			slog.String("lead_id", leadID),
			slog.String("status", status),
		)
	}
	return nil
}
