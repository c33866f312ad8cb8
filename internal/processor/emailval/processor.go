package emailval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadgrid/pipeline/internal/queue"
)

// LeadUpdater records a validation verdict against the lead store.
type LeadUpdater interface {
	UpdateLeadStatus(ctx context.Context, leadID, status string, validation any) error
}

// Outcome is the job result persisted with the job.
type Outcome struct {
	Email   string `json:"email"`
	Score   int    `json:"score"`
	IsValid bool   `json:"is_valid"`
	Details string `json:"details"`
}

// Validation is the breakdown attached to the lead record.
type Validation struct {
	Score           int      `json:"score"`
	FormatValid     bool     `json:"format_valid"`
	HasMXRecords    bool     `json:"has_mx_records"`
	IsKnownProvider bool     `json:"is_known_provider"`
	IsDisposable    bool     `json:"is_disposable"`
	MXRecords       []string `json:"mx_records"`
	Details         string   `json:"details"`
	ValidatedAt     int64    `json:"validated_at"`
}

// Processor validates a lead's email and records the verdict.
type Processor struct {
	validator *Validator
	leads     LeadUpdater
	logger    *slog.Logger
}

// NewProcessor wires the validator to the lead store.
func NewProcessor(validator *Validator, leads LeadUpdater, logger *slog.Logger) *Processor {
	return &Processor{
		validator: validator,
		leads:     leads,
		logger:    logger,
	}
}

// Process handles one validate_email job. Scoring itself cannot fail; only
// the lead store write can, and that error surfaces so the job retries.
func (p *Processor) Process(ctx context.Context, job *queue.Job) (any, error) {
	var payload queue.ValidateEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	result := p.validator.Validate(ctx, payload.Email)

	p.logger.Info("Email validated",
		slog.String("job_id", job.ID),
		slog.String("email", payload.Email),
		slog.Int("score", result.Score),
		slog.Bool("is_valid", result.IsValid),
		slog.String("details", result.Details),
	)

	status := "invalid"
	if result.IsValid {
		status = "validated"
	}

	err := p.leads.UpdateLeadStatus(ctx, payload.LeadID, status, Validation{
		Score:           result.Score,
		FormatValid:     result.FormatValid,
		HasMXRecords:    result.HasMXRecords,
		IsKnownProvider: result.IsKnownProvider,
		IsDisposable:    result.IsDisposable,
		MXRecords:       result.MXRecords,
		Details:         result.Details,
		ValidatedAt:     time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update lead %s: %w", payload.LeadID, err)
	}

	return Outcome{
		Email:   payload.Email,
		Score:   result.Score,
		IsValid: result.IsValid,
		Details: result.Details,
	}, nil
}
