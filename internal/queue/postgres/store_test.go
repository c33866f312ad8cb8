package postgres

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadgrid/pipeline/internal/queue"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStoreFromDB(db, logger), mock
}

var jobRowColumns = []string{
	"job_id", "job_type", "status", "priority", "payload", "attempts", "max_attempts",
	"worker_id", "scraper_run_id", "result", "error_message", "claimed_at", "completed_at",
	"created_at", "updated_at",
}

func TestClaimNext_UsesSkipLockedAndStampsWorker(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(
			string(queue.StatusClaimed),
			"worker-1",
			string(queue.StatusPending),
			pq.Array([]string{"validate_email", "enrich_lead"}),
		).
		WillReturnRows(sqlmock.NewRows(jobRowColumns).AddRow(
			"job-1", "validate_email", "claimed", 8, []byte(`{"lead_id":"l1","email":"a@b.co"}`),
			0, 3, "worker-1", nil, nil, nil, now, nil, now, now,
		))

	job, err := store.ClaimNext(context.Background(),
		[]queue.JobType{queue.TypeValidateEmail, queue.TypeEnrichLead}, "worker-1")

	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, queue.StatusClaimed, job.Status)
	assert.Equal(t, 8, job.Priority)
	require.NotNil(t, job.WorkerID)
	assert.Equal(t, "worker-1", *job.WorkerID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNext_EmptyQueueReturnsNil(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows(jobRowColumns))

	job, err := store.ClaimNext(context.Background(), []queue.JobType{queue.TypeValidateEmail}, "w1")

	require.NoError(t, err)
	assert.Nil(t, job)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFail_RetryEdgeReturnsPending(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SET attempts = attempts \+ 1`).
		WithArgs(
			"job-1", "dns blip",
			string(queue.StatusPending), string(queue.StatusFailed),
			string(queue.StatusCompleted), string(queue.StatusCancelled),
		).
		WillReturnRows(sqlmock.NewRows([]string{"status", "attempts"}).AddRow("pending", 1))

	require.NoError(t, store.Fail(context.Background(), "job-1", "dns blip"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFail_TerminalJobReturnsErrJobTerminal(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SET attempts = attempts \+ 1`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "attempts"}))
	mock.ExpectQuery(`SELECT status FROM jobs`).
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))

	err := store.Fail(context.Background(), "job-1", "late failure")
	assert.ErrorIs(t, err, queue.ErrJobTerminal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_StoresResult(t *testing.T) {
	store, mock := newMockStore(t)
	result := json.RawMessage(`{"score":100}`)

	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(
			string(queue.StatusCompleted), []byte(result), "job-1",
			string(queue.StatusCompleted), string(queue.StatusFailed), string(queue.StatusCancelled),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Complete(context.Background(), "job-1", result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_MissingJobReturnsErrJobNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE jobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM jobs`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	err := store.Complete(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, queue.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_OnlyPendingOrClaimed(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(
			string(queue.StatusCancelled), "job-1",
			string(queue.StatusPending), string(queue.StatusClaimed),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Cancel(context.Background(), "job-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRunProgress_SendsDeltas(t *testing.T) {
	store, mock := newMockStore(t)
	running := queue.RunStatusRunning
	statusArg := "running"

	mock.ExpectExec(`completed_jobs = completed_jobs \+`).
		WithArgs(
			"run-1", 2, 1, 5, 0, &statusArg,
			string(queue.RunStatusRunning), string(queue.RunStatusCompleted), string(queue.RunStatusFailed),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateRunProgress(context.Background(), "run-1", queue.RunProgress{
		CompletedJobs: 2, FailedJobs: 1, LeadsFound: 5, Status: &running,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRun_CancelsPendingAndClaimedInOneTx(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE scraper_runs`).
		WithArgs(string(queue.RunStatusFailed), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(
			string(queue.StatusCancelled), "run-1",
			string(queue.StatusPending), string(queue.StatusClaimed),
		).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	cancelled, err := store.CancelRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, cancelled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DefaultsPriorityAndAttempts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(
			sqlmock.AnyArg(), queue.TypeValidateEmail, queue.StatusPending,
			queue.DefaultPriority, []byte(`{"lead_id":"l1","email":"a@b.co"}`),
			queue.DefaultMaxAttempts, (*string)(nil),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := store.Create(context.Background(), queue.CreateJobParams{
		Type:    queue.TypeValidateEmail,
		Payload: json.RawMessage(`{"lead_id":"l1","email":"a@b.co"}`),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, mock.ExpectationsWereMet())
}
