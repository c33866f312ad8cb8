package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateLeadStatus_SendsAuthAndBody(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	leads := NewLeads(LeadsConfig{BaseURL: srv.URL, Secret: "s3cret"}, testLogger())

	err := leads.UpdateLeadStatus(context.Background(), "lead-1", "validated", map[string]any{"score": 100})

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/leads/lead-1/status", gotPath)
	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Equal(t, "validated", gotBody["status"])
	validation := gotBody["email_validation"].(map[string]any)
	assert.Equal(t, float64(100), validation["score"])
}

func TestUpdateLeadStatus_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	leads := NewLeads(LeadsConfig{BaseURL: srv.URL}, testLogger())

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := leads.UpdateLeadStatus(ctx, "lead-2", "invalid", nil)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestUpdateLeadStatus_ExhaustedRetriesReturnLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	leads := NewLeads(LeadsConfig{BaseURL: srv.URL}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := leads.UpdateLeadStatus(ctx, "lead-3", "invalid", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestUpdateLeadStatus_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	leads := NewLeads(LeadsConfig{
		BaseURL:     srv.URL,
		MaxRequests: 2,
		Window:      200 * time.Millisecond,
	}, testLogger())

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, leads.UpdateLeadStatus(context.Background(), "lead-4", "validated", i))
	}

	// Third request must wait for the window to slide.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoopLeads(t *testing.T) {
	var leads NoopLeads
	require.NoError(t, leads.UpdateLeadStatus(context.Background(), "lead-5", "validated", nil))
}
