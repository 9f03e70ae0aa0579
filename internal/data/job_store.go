// Package data implements PostgreSQL persistence for job records.
package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jobkeeper/jobkeeper/internal/data/pgxutil"
	"github.com/jobkeeper/jobkeeper/internal/domain/model"
	apperrors "github.com/jobkeeper/jobkeeper/internal/errors"
)

// StoreConfig holds configuration options for the job store.
type StoreConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobStore provides database operations for job bookkeeping. Every mutating
// operation runs as a single RepeatableRead transaction, retried a bounded
// number of times when concurrent writers force a serialization failure.
type JobStore struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobStore creates a new JobStore instance with the given database connection and configuration.
func NewJobStore(db *sql.DB, cfg StoreConfig) *JobStore {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobStore{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  service,
  owner,
  phase,
  run_id,
  parameters,
  message_id,
  creation_time,
  start_time,
  end_time,
  destruction_time,
  execution_duration,
  quote
`

// repeatableRead is the isolation level for every job transaction.
var repeatableRead = &sql.TxOptions{Isolation: sql.LevelRepeatableRead}

// withJobTx runs fn as one RepeatableRead transaction with conflict retry.
func (s *JobStore) withJobTx(ctx context.Context, op string, fn func(pgx.Tx) error) error {
	return withConflictRetry(ctx, s.logger, op, func() error {
		return pgxutil.WithPgxTx(ctx, s.DB, pgxutil.TxConfig{
			Opts: repeatableRead,
			Fn:   fn,
		})
	})
}

// jobWhere builds the WHERE clause selecting one job. Service scoping always
// applies; an owner restriction is added only when the identifier carries
// one, which makes another owner's job indistinguishable from a missing one.
func jobWhere(id model.JobIdentifier) (string, []any) {
	if id.Owner != "" {
		return "service = $1 AND id = $2 AND owner = $3", []any{id.Service, id.ID, id.Owner}
	}
	return "service = $1 AND id = $2", []any{id.Service, id.ID}
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	parameters         []byte
	runID, messageID   sql.NullString
	startTime, endTime sql.NullTime
	quote              sql.NullTime
	executionDuration  sql.NullInt64
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.Service,
		&job.Owner,
		&job.Phase,
		&d.runID,
		&d.parameters,
		&d.messageID,
		&job.CreationTime,
		&d.startTime,
		&d.endTime,
		&job.DestructionTime,
		&d.executionDuration,
		&d.quote,
	)
}

func (d *jobRowData) apply(job *model.Job) {
	job.Parameters = cloneJSON(d.parameters)
	job.RunID = cloneNullableString(d.runID)
	job.MessageID = cloneNullableString(d.messageID)
	job.StartTime = cloneNullableTime(d.startTime)
	job.EndTime = cloneNullableTime(d.endTime)
	job.Quote = cloneNullableTime(d.quote)
	job.ExecutionDuration = cloneNullableInt64(d.executionDuration)
	job.CreationTime = job.CreationTime.UTC()
	job.DestructionTime = job.DestructionTime.UTC()
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}

	data.apply(job)
	return job, nil
}

// collectJobFromRows collects a single job from pgx rows.
func collectJobFromRows(rows pgx.Rows) (*model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return job, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func cloneNullableInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

// Add persists a new job for the given tenant. The job always starts in
// PENDING regardless of anything the request claims, and all timestamps are
// truncated to whole seconds.
func (s *JobStore) Add(ctx context.Context, service, owner string, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid job request")
	}

	creationTime := truncateToSecond(s.timeProvider.Now())
	destructionTime := truncateToSecond(req.DestructionTime)

	var job *model.Job
	err := s.withJobTx(ctx, "add job", func(tx pgx.Tx) error {
		rows, qerr := tx.Query(ctx, `
			INSERT INTO jobs(service, owner, phase, run_id, parameters, creation_time, destruction_time, execution_duration)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+jobColumns,
			service,
			owner,
			model.PhasePending,
			req.RunID,
			[]byte(req.Parameters),
			creationTime,
			destructionTime,
			req.ExecutionDuration,
		)
		if qerr != nil {
			return fmt.Errorf("insert job: %w", qerr)
		}
		j, cerr := collectJobFromRows(rows)
		rows.Close()
		if cerr != nil {
			return fmt.Errorf("collect job: %w", cerr)
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return job, nil
}

// Get retrieves a single job with its results and errors attached.
func (s *JobStore) Get(ctx context.Context, id model.JobIdentifier) (*model.Job, error) {
	var job *model.Job
	err := s.withJobTx(ctx, "get job", func(tx pgx.Tx) error {
		j, gerr := s.loadJobInTx(ctx, tx, id)
		if gerr != nil {
			return gerr
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, s.mapJobError(err, id)
	}
	return job, nil
}

// loadJobInTx reads one job plus its attachments inside an open transaction.
func (s *JobStore) loadJobInTx(ctx context.Context, tx pgx.Tx, id model.JobIdentifier) (*model.Job, error) {
	where, args := jobWhere(id)

	rows, err := tx.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}
	job, cerr := collectJobFromRows(rows)
	rows.Close()
	if cerr != nil {
		return nil, cerr
	}

	if err := s.loadAttachmentsInTx(ctx, tx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// loadAttachmentsInTx populates a job's results and errors.
func (s *JobStore) loadAttachmentsInTx(ctx context.Context, tx pgx.Tx, job *model.Job) error {
	resultRows, err := tx.Query(ctx, `
		SELECT result_id, sequence, url, size, mime_type
		FROM job_results
		WHERE job_id = $1
		ORDER BY sequence
	`, job.ID)
	if err != nil {
		return fmt.Errorf("select job results: %w", err)
	}
	results, err := pgx.CollectRows(resultRows, func(row pgx.CollectableRow) (model.JobResult, error) {
		var res model.JobResult
		var size sql.NullInt64
		var mimeType sql.NullString
		if serr := row.Scan(&res.ID, &res.Sequence, &res.URL, &size, &mimeType); serr != nil {
			return model.JobResult{}, serr
		}
		res.Size = cloneNullableInt64(size)
		res.MimeType = cloneNullableString(mimeType)
		return res, nil
	})
	if err != nil {
		return fmt.Errorf("collect job results: %w", err)
	}
	job.Results = results

	errorRows, err := tx.Query(ctx, `
		SELECT type, code, message, detail
		FROM job_errors
		WHERE job_id = $1
		ORDER BY id
	`, job.ID)
	if err != nil {
		return fmt.Errorf("select job errors: %w", err)
	}
	jobErrors, err := pgx.CollectRows(errorRows, func(row pgx.CollectableRow) (model.JobError, error) {
		var je model.JobError
		var detail sql.NullString
		if serr := row.Scan(&je.Type, &je.Code, &je.Message, &detail); serr != nil {
			return model.JobError{}, serr
		}
		je.Detail = cloneNullableString(detail)
		return je, nil
	})
	if err != nil {
		return fmt.Errorf("collect job errors: %w", err)
	}
	job.Errors = jobErrors

	return nil
}

// Delete removes a job and, via cascade, its results and errors. It reports
// whether a row was actually deleted.
func (s *JobStore) Delete(ctx context.Context, id model.JobIdentifier) (bool, error) {
	where, args := jobWhere(id)

	var deleted bool
	err := s.withJobTx(ctx, "delete job", func(tx pgx.Tx) error {
		tag, derr := tx.Exec(ctx, `DELETE FROM jobs WHERE `+where, args...)
		if derr != nil {
			return fmt.Errorf("delete job: %w", derr)
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	return deleted, nil
}

// ListExpired returns jobs whose destruction time has passed and that have
// not been archived. Results and errors are not attached.
func (s *JobStore) ListExpired(ctx context.Context) ([]*model.Job, error) {
	now := truncateToSecond(s.timeProvider.Now())

	var jobs []*model.Job
	err := s.withJobTx(ctx, "list expired jobs", func(tx pgx.Tx) error {
		rows, qerr := tx.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE destruction_time <= $1 AND phase <> $2
			ORDER BY destruction_time, id
		`, now, model.PhaseArchived)
		if qerr != nil {
			return fmt.Errorf("select expired jobs: %w", qerr)
		}
		collected, cerr := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Job, error) {
			return scanJobFromRow(row)
		})
		if cerr != nil {
			return fmt.Errorf("collect expired jobs: %w", cerr)
		}
		jobs = collected
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return jobs, nil
}

// ListServices returns the distinct service names that have jobs on record.
func (s *JobStore) ListServices(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT DISTINCT service FROM jobs ORDER BY service`)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("select services: %w", err))
	}
	defer rows.Close()

	var services []string
	for rows.Next() {
		var svc string
		if err := rows.Scan(&svc); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return services, nil
}

// ListUsers returns the distinct owners with jobs on record, restricted to
// one service when given.
func (s *JobStore) ListUsers(ctx context.Context, service string) ([]string, error) {
	query := `SELECT DISTINCT owner FROM jobs ORDER BY owner`
	args := []any{}
	if service != "" {
		query = `SELECT DISTINCT owner FROM jobs WHERE service = $1 ORDER BY owner`
		args = append(args, service)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("select owners: %w", err))
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return owners, nil
}

// Availability probes the backing database. It never returns an error; an
// unreachable store is reported as unavailable with a note.
func (s *JobStore) Availability(ctx context.Context) model.Availability {
	var one int
	if err := s.DB.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return model.Availability{
			Available: false,
			Note:      fmt.Sprintf("database probe failed: %v", err),
		}
	}
	return model.Availability{Available: true}
}

// mapJobError rewrites a storage error for one job, turning a missing row
// into a NotFound that names the identifier.
func (s *JobStore) mapJobError(err error, id model.JobIdentifier) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFoundf("job %s not found", id)
	}
	return apperrors.MapDBError(err)
}
