package emailval

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadgrid/pipeline/internal/queue"
)

type fakeLeads struct {
	leadID     string
	status     string
	validation Validation
	err        error
	calls      int
}

func (f *fakeLeads) UpdateLeadStatus(ctx context.Context, leadID, status string, validation any) error {
	f.calls++
	f.leadID = leadID
	f.status = status
	f.validation = validation.(Validation)
	return f.err
}

func emailJob(t *testing.T, leadID, email string) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(queue.ValidateEmailPayload{LeadID: leadID, Email: email})
	require.NoError(t, err)
	return &queue.Job{
		ID:      "job-1",
		Type:    queue.TypeValidateEmail,
		Payload: payload,
	}
}

func TestProcess_ValidEmailMarksLeadValidated(t *testing.T) {
	validator := NewValidatorWithResolver(&fakeResolver{records: map[string][]*net.MX{
		"gmail.com": {{Host: "gmail-smtp-in.l.google.com.", Pref: 5}},
	}}, time.Second)
	leads := &fakeLeads{}
	p := NewProcessor(validator, leads, slog.New(slog.NewTextHandler(io.Discard, nil)))

	result, err := p.Process(context.Background(), emailJob(t, "lead-1", "user@gmail.com"))

	require.NoError(t, err)
	outcome := result.(Outcome)
	assert.Equal(t, 100, outcome.Score)
	assert.True(t, outcome.IsValid)

	assert.Equal(t, 1, leads.calls)
	assert.Equal(t, "lead-1", leads.leadID)
	assert.Equal(t, "validated", leads.status)
	assert.Equal(t, 100, leads.validation.Score)
	assert.NotZero(t, leads.validation.ValidatedAt)
}

func TestProcess_InvalidEmailMarksLeadInvalidWithoutError(t *testing.T) {
	leads := &fakeLeads{}
	p := NewProcessor(NewValidatorWithResolver(&fakeResolver{}, time.Second), leads,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	result, err := p.Process(context.Background(), emailJob(t, "lead-2", "not-an-email"))

	require.NoError(t, err)
	outcome := result.(Outcome)
	assert.Equal(t, 0, outcome.Score)
	assert.False(t, outcome.IsValid)
	assert.Equal(t, "invalid", leads.status)
}

func TestProcess_LeadStoreFailureSurfacesForRetry(t *testing.T) {
	leads := &fakeLeads{err: errors.New("lead store unavailable")}
	p := NewProcessor(NewValidatorWithResolver(&fakeResolver{}, time.Second), leads,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := p.Process(context.Background(), emailJob(t, "lead-3", "user@no-mx.example"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead store unavailable")
}

func TestProcess_MalformedPayload(t *testing.T) {
	p := NewProcessor(NewValidatorWithResolver(&fakeResolver{}, time.Second), &fakeLeads{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := p.Process(context.Background(), &queue.Job{
		ID:      "job-x",
		Type:    queue.TypeValidateEmail,
		Payload: json.RawMessage(`{"lead_id":`),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode payload")
}
