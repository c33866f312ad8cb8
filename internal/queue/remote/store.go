// Package remote implements queue.WorkerStore over the queue API's worker
// endpoints, for worker processes deployed without database credentials.
// Every request carries the shared-secret bearer token.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/leadgrid/pipeline/internal/queue"
)

// Store talks to the api-service worker boundary.
type Store struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewStore creates a remote worker store. baseURL is the api-service root,
// e.g. "http://queue-api:8080".
func NewStore(baseURL, secret string) *Store {
	return &Store{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type claimRequest struct {
	Types    []queue.JobType `json:"types"`
	WorkerID string          `json:"worker_id"`
}

type jobIDRequest struct {
	JobID string `json:"job_id"`
}

type completeRequest struct {
	JobID  string          `json:"job_id"`
	Result json.RawMessage `json:"result,omitempty"`
}

type failRequest struct {
	JobID     string `json:"job_id"`
	Error     string `json:"error"`
	Permanent bool   `json:"permanent,omitempty"`
}

type progressRequest struct {
	ID string `json:"id"`
	queue.RunProgress
}

func (s *Store) ClaimNext(ctx context.Context, types []queue.JobType, workerID string) (*queue.Job, error) {
	body, err := s.post(ctx, "/api/v1/workers/jobs/claim", claimRequest{Types: types, WorkerID: workerID})
	if err != nil {
		return nil, err
	}

	// The claim endpoint returns JSON null when no job is eligible.
	if len(body) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, nil
	}

	var job queue.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("failed to decode claimed job: %w", err)
	}
	return &job, nil
}

func (s *Store) MarkProcessing(ctx context.Context, jobID string) error {
	_, err := s.post(ctx, "/api/v1/workers/jobs/processing", jobIDRequest{JobID: jobID})
	return err
}

func (s *Store) Complete(ctx context.Context, jobID string, result json.RawMessage) error {
	_, err := s.post(ctx, "/api/v1/workers/jobs/complete", completeRequest{JobID: jobID, Result: result})
	return err
}

func (s *Store) Fail(ctx context.Context, jobID string, errMsg string) error {
	_, err := s.post(ctx, "/api/v1/workers/jobs/fail", failRequest{JobID: jobID, Error: errMsg})
	return err
}

func (s *Store) FailPermanent(ctx context.Context, jobID string, errMsg string) error {
	_, err := s.post(ctx, "/api/v1/workers/jobs/fail", failRequest{JobID: jobID, Error: errMsg, Permanent: true})
	return err
}

func (s *Store) UpdateRunProgress(ctx context.Context, runID string, progress queue.RunProgress) error {
	_, err := s.post(ctx, "/api/v1/workers/scraper-runs/progress", progressRequest{ID: runID, RunProgress: progress})
	return err
}

func (s *Store) post(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.secret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("queue request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("queue returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	return body, nil
}
