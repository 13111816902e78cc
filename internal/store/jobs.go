package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/johnwards/notforce/internal/domain"
)

// JobStore defines persistence for bulk jobs and their v1 batches.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	List(ctx context.Context, jobType domain.JobType) ([]*domain.Job, error)
	Delete(ctx context.Context, id string) error
	AddBatch(ctx context.Context, batch *domain.Batch) error
	GetBatch(ctx context.Context, jobID, batchID string) (*domain.Batch, error)
	ListBatches(ctx context.Context, jobID string) ([]*domain.Batch, error)
	UpdateBatch(ctx context.Context, batch *domain.Batch) error
	Clear(ctx context.Context) error
}

// SQLiteJobStore implements JobStore backed by SQLite. Result rows persist as
// JSON blobs so a job survives a dump/reload with its report data intact.
type SQLiteJobStore struct {
	db *sql.DB
}

// NewSQLiteJobStore creates a new SQLiteJobStore.
func NewSQLiteJobStore(db *sql.DB) *SQLiteJobStore {
	return &SQLiteJobStore{db: db}
}

const jobColumns = `id, job_type, operation, object, state, external_id_field, content_type,
	line_ending, column_delimiter, query, payload, query_results, result_fields,
	successful_results, failed_results, records_processed, records_failed,
	total_processing_time, retries, created_at, updated_at`

// Create inserts a new job. CreatedDate and SystemModstamp are stamped here.
func (s *SQLiteJobStore) Create(ctx context.Context, job *domain.Job) error {
	ts := now()
	job.CreatedDate = ts
	job.SystemModstamp = ts

	resultFields, successes, failures, err := marshalJobBlobs(job)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Type), job.Operation, job.Object, string(job.State),
		job.ExternalIDFieldName, job.ContentType, job.LineEnding, job.ColumnDelimiter,
		job.Query, job.Payload, job.QueryResults, resultFields, successes, failures,
		job.NumberRecordsProcessed, job.NumberRecordsFailed, job.TotalProcessingTime,
		job.Retries, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get retrieves a job by ID.
func (s *SQLiteJobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists the full current state of a job and refreshes its
// SystemModstamp.
func (s *SQLiteJobStore) Update(ctx context.Context, job *domain.Job) error {
	job.SystemModstamp = now()

	resultFields, successes, failures, err := marshalJobBlobs(job)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, payload = ?, query_results = ?, result_fields = ?,
			successful_results = ?, failed_results = ?, records_processed = ?,
			records_failed = ?, total_processing_time = ?, retries = ?, updated_at = ?
		 WHERE id = ?`,
		string(job.State), job.Payload, job.QueryResults, resultFields, successes,
		failures, job.NumberRecordsProcessed, job.NumberRecordsFailed,
		job.TotalProcessingTime, job.Retries, job.SystemModstamp, job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all jobs of the given type, newest first.
func (s *SQLiteJobStore) List(ctx context.Context, jobType domain.JobType) ([]*domain.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_type = ? ORDER BY seq DESC`,
		string(jobType),
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return jobs, nil
}

// Delete removes a job and its batches.
func (s *SQLiteJobStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE job_id = ?`, id); err != nil {
		return fmt.Errorf("delete job batches: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddBatch inserts a new batch. CreatedDate and SystemModstamp are stamped
// here.
func (s *SQLiteJobStore) AddBatch(ctx context.Context, batch *domain.Batch) error {
	ts := now()
	batch.CreatedDate = ts
	batch.SystemModstamp = ts

	results, err := json.Marshal(batch.Results)
	if err != nil {
		return fmt.Errorf("marshal batch results: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO batches (id, job_id, state, state_message, records_processed, records_failed, results, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID, batch.JobID, string(batch.State), batch.StateMessage,
		batch.NumberRecordsProcessed, batch.NumberRecordsFailed, string(results), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// GetBatch retrieves one batch of a job.
func (s *SQLiteJobStore) GetBatch(ctx context.Context, jobID, batchID string) (*domain.Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, state, state_message, records_processed, records_failed, results, created_at, updated_at
		 FROM batches WHERE job_id = ? AND id = ?`,
		jobID, batchID,
	)
	batch, err := scanBatch(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

// ListBatches returns a job's batches in upload order.
func (s *SQLiteJobStore) ListBatches(ctx context.Context, jobID string) ([]*domain.Batch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, state, state_message, records_processed, records_failed, results, created_at, updated_at
		 FROM batches WHERE job_id = ? ORDER BY seq ASC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var batches []*domain.Batch
	for rows.Next() {
		batch, err := scanBatch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return batches, nil
}

// UpdateBatch persists a batch's state and results.
func (s *SQLiteJobStore) UpdateBatch(ctx context.Context, batch *domain.Batch) error {
	batch.SystemModstamp = now()

	results, err := json.Marshal(batch.Results)
	if err != nil {
		return fmt.Errorf("marshal batch results: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET state = ?, state_message = ?, records_processed = ?, records_failed = ?, results = ?, updated_at = ?
		 WHERE id = ?`,
		string(batch.State), batch.StateMessage, batch.NumberRecordsProcessed,
		batch.NumberRecordsFailed, string(results), batch.SystemModstamp, batch.ID,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes all jobs and batches.
func (s *SQLiteJobStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM batches`); err != nil {
		return fmt.Errorf("clear batches: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs`); err != nil {
		return fmt.Errorf("clear jobs: %w", err)
	}
	return nil
}

func marshalJobBlobs(job *domain.Job) (resultFields, successes, failures string, err error) {
	rf, err := json.Marshal(job.ResultFields)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal result fields: %w", err)
	}
	sr, err := json.Marshal(job.SuccessfulResults)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal successful results: %w", err)
	}
	fr, err := json.Marshal(job.FailedResults)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal failed results: %w", err)
	}
	return string(rf), string(sr), string(fr), nil
}

func scanJob(scan func(dest ...any) error) (*domain.Job, error) {
	var job domain.Job
	var jobType, state string
	var resultFields, successes, failures string

	err := scan(&job.ID, &jobType, &job.Operation, &job.Object, &state,
		&job.ExternalIDFieldName, &job.ContentType, &job.LineEnding,
		&job.ColumnDelimiter, &job.Query, &job.Payload, &job.QueryResults,
		&resultFields, &successes, &failures, &job.NumberRecordsProcessed,
		&job.NumberRecordsFailed, &job.TotalProcessingTime, &job.Retries,
		&job.CreatedDate, &job.SystemModstamp)
	if err != nil {
		return nil, err
	}

	job.Type = domain.JobType(jobType)
	job.State = domain.JobState(state)
	if err := json.Unmarshal([]byte(resultFields), &job.ResultFields); err != nil {
		return nil, fmt.Errorf("unmarshal result fields: %w", err)
	}
	if err := json.Unmarshal([]byte(successes), &job.SuccessfulResults); err != nil {
		return nil, fmt.Errorf("unmarshal successful results: %w", err)
	}
	if err := json.Unmarshal([]byte(failures), &job.FailedResults); err != nil {
		return nil, fmt.Errorf("unmarshal failed results: %w", err)
	}
	return &job, nil
}

func scanBatch(scan func(dest ...any) error) (*domain.Batch, error) {
	var batch domain.Batch
	var state, results string

	err := scan(&batch.ID, &batch.JobID, &state, &batch.StateMessage,
		&batch.NumberRecordsProcessed, &batch.NumberRecordsFailed, &results,
		&batch.CreatedDate, &batch.SystemModstamp)
	if err != nil {
		return nil, err
	}

	batch.State = domain.BatchState(state)
	if err := json.Unmarshal([]byte(results), &batch.Results); err != nil {
		return nil, fmt.Errorf("unmarshal batch results: %w", err)
	}
	return &batch, nil
}
