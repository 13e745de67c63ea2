package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"review_studio/internal/domain"
)

// jobJSON holds the marshalled JSON columns of a job row.
type jobJSON struct {
	queue, errs, reviews, opts string
}

func marshalJob(j domain.Job) (jobJSON, error) {
	var out jobJSON
	queue := j.Queue
	if queue == nil {
		queue = []domain.JobItem{}
	}
	errs := j.Errors
	if errs == nil {
		errs = []string{}
	}
	reviews := j.Reviews
	if reviews == nil {
		reviews = []domain.ReviewRef{}
	}
	for _, f := range []struct {
		dst *string
		v   any
	}{{&out.queue, queue}, {&out.errs, errs}, {&out.reviews, reviews}, {&out.opts, j.Options}} {
		b, err := json.Marshal(f.v)
		if err != nil {
			return jobJSON{}, fmt.Errorf("marshal job %s: %w", j.ID, err)
		}
		*f.dst = string(b)
	}
	return out, nil
}

func (r *Repo) CreateJob(ctx context.Context, j domain.Job) error {
	js, err := marshalJob(j)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertJobSQL,
		j.ID, string(j.Category), string(j.Status),
		j.Total, j.Processed, j.Successful, j.Failed, j.Skipped,
		j.CurrentBatch, j.TotalBatches, j.LastProcessedIndex, j.EstimatedTimeRemaining,
		js.queue, js.errs, js.reviews, js.opts,
		j.CreatedAt.UTC(), j.UpdatedAt.UTC(), valTime(j.StartedAt), valTime(j.CompletedAt),
	)
	return mapDupErr(err)
}

func (r *Repo) UpdateJob(ctx context.Context, j domain.Job) error {
	js, err := marshalJob(j)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, updateJobSQL,
		string(j.Status),
		j.Total, j.Processed, j.Successful, j.Failed, j.Skipped,
		j.CurrentBatch, j.TotalBatches, j.LastProcessedIndex, j.EstimatedTimeRemaining,
		js.queue, js.errs, js.reviews, js.opts,
		j.UpdatedAt.UTC(), valTime(j.StartedAt), valTime(j.CompletedAt),
		j.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// MySQL reports 0 affected rows for a no-op update, so check existence
	var ok bool
	if err := r.db.QueryRowContext(ctx, jobExistsSQL, j.ID).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *Repo) GetJob(ctx context.Context, id string) (domain.Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, getJobSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return j, err
}

func (r *Repo) ListRecentJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, listRecentJobsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(row rowScanner) (domain.Job, error) {
	var j domain.Job
	var (
		category, status           string
		queue, errs, reviews, opts []byte
		startedAt, completedAt     sql.NullTime
	)
	if err := row.Scan(
		&j.ID, &category, &status,
		&j.Total, &j.Processed, &j.Successful, &j.Failed, &j.Skipped,
		&j.CurrentBatch, &j.TotalBatches, &j.LastProcessedIndex, &j.EstimatedTimeRemaining,
		&queue, &errs, &reviews, &opts,
		&j.CreatedAt, &j.UpdatedAt, &startedAt, &completedAt,
	); err != nil {
		return domain.Job{}, err
	}
	j.Category = domain.Category(category)
	j.Status = domain.JobStatus(status)
	if err := json.Unmarshal(queue, &j.Queue); err != nil {
		return domain.Job{}, fmt.Errorf("decode queue of job %s: %w", j.ID, err)
	}
	_ = json.Unmarshal(errs, &j.Errors)
	_ = json.Unmarshal(reviews, &j.Reviews)
	_ = json.Unmarshal(opts, &j.Options)
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return j, nil
}
