package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"review_studio/internal/adapters/observability"
	"review_studio/internal/domain"
)

// ItemProcessor is satisfied by *Processor.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, item domain.SourceItem, opts ProcessOptions) ItemResult
}

type JobRequest struct {
	Category domain.Category
	Items    []domain.SourceItem
	Options  domain.JobOptions
}

const (
	defaultBatchSize = 5
	maxBatchSize     = 20
	persistTimeout   = 5 * time.Second
)

var (
	ErrJobFinished = errors.New("job already completed")
	ErrJobRunning  = errors.New("job is already running")
)

// Runner executes mass-creation jobs batch by batch. Every state change is
// written to the JobStore, which is the only place progress lives.
type Runner struct {
	store domain.JobStore
	proc  ItemProcessor
	now   func() time.Time

	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]struct{}
}

func NewRunner(store domain.JobStore, proc ItemProcessor) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{store: store, proc: proc, now: time.Now, bg: ctx, cancel: cancel, active: map[string]struct{}{}}
}

// claim marks id as running in this process; false when it already is.
func (r *Runner) claim(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[id]; ok {
		return false
	}
	r.active[id] = struct{}{}
	return true
}

func (r *Runner) release(id string) {
	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()
}

// Close cancels background runs and waits for them to record their state.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}

// Create validates req and stores a pending job without running it.
func (r *Runner) Create(ctx context.Context, req JobRequest) (domain.Job, error) {
	if !req.Category.Valid() {
		return domain.Job{}, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, req.Category)
	}
	opts := normalizeOptions(req.Options)
	now := r.now().UTC()
	job := domain.Job{
		ID:                 uuid.NewString(),
		Category:           req.Category,
		Status:             domain.JobPending,
		Total:              len(req.Items),
		Queue:              make([]domain.JobItem, len(req.Items)),
		TotalBatches:       (len(req.Items) + opts.BatchSize - 1) / opts.BatchSize,
		LastProcessedIndex: -1,
		Errors:             []string{},
		Reviews:            []domain.ReviewRef{},
		Options:            opts,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for i, it := range req.Items {
		if it.Category == "" {
			it.Category = req.Category
		}
		job.Queue[i] = domain.JobItem{Name: it.Name, ExternalID: it.ExternalID, Status: domain.ItemPending, Source: it}
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return domain.Job{}, fmt.Errorf("create job: %w", err)
	}
	log.Info().Str("job_id", job.ID).Str("category", string(job.Category)).Int("total", job.Total).
		Int("batches", job.TotalBatches).Msg("job created")
	return job, nil
}

// Start creates the job and runs it in the background.
func (r *Runner) Start(ctx context.Context, req JobRequest) (domain.Job, error) {
	job, err := r.Create(ctx, req)
	if err != nil {
		return domain.Job{}, err
	}
	r.claim(job.ID)
	r.background(job.ID)
	return job, nil
}

// Resume continues a job that did not complete, in the background. A job
// that is still running in this process returns ErrJobRunning.
func (r *Runner) Resume(ctx context.Context, id string) (domain.Job, error) {
	job, err := r.store.GetJob(ctx, id)
	if err != nil {
		return domain.Job{}, err
	}
	if job.Status == domain.JobCompleted {
		return job, ErrJobFinished
	}
	if !r.claim(id) {
		return job, ErrJobRunning
	}
	r.background(id)
	return job, nil
}

// background runs an already claimed job and releases it when done.
func (r *Runner) background(id string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(id)
		if _, err := r.run(r.bg, id); err != nil {
			log.Error().Err(err).Str("job_id", id).Msg("job run ended with error")
		}
	}()
}

// Run executes the job synchronously from the batch holding
// LastProcessedIndex+1. Items that are already terminal are not processed
// again. A job already running in this process returns ErrJobRunning.
func (r *Runner) Run(ctx context.Context, id string) (domain.Job, error) {
	if !r.claim(id) {
		return domain.Job{}, ErrJobRunning
	}
	defer r.release(id)
	return r.run(ctx, id)
}

func (r *Runner) run(ctx context.Context, id string) (domain.Job, error) {
	job, err := r.store.GetJob(ctx, id)
	if err != nil {
		return domain.Job{}, err
	}
	if job.Status == domain.JobCompleted {
		return job, nil
	}

	st := &jobRun{r: r, job: job, startedAt: r.now()}
	st.begin()
	if err := st.persist(ctx); err != nil {
		return st.snapshot(), err
	}

	observability.JobsActive.Inc()
	defer observability.JobsActive.Dec()

	opts := st.job.Options
	bs := opts.BatchSize
	n := len(st.job.Queue)
	// batches stay aligned to TotalBatches; terminal items are skipped below
	for start := (st.job.LastProcessedIndex + 1) / bs * bs; start < n; start += bs {
		end := min(start+bs, n)
		st.setBatch(start/bs + 1)
		log.Info().Str("job_id", id).Int("batch", st.job.CurrentBatch).Int("of", st.job.TotalBatches).
			Int("from", start).Int("to", end-1).Msg("batch started")

		// settle all: item goroutines never return an error
		var g errgroup.Group
		for i := start; i < end; i++ {
			if st.itemStatus(i).Terminal() {
				continue
			}
			delay := time.Duration(i-start) * opts.ItemDelay()
			g.Go(func() error {
				if !sleepCtx(ctx, delay) {
					return nil
				}
				st.processItem(ctx, i)
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			return st.abort(ctx, fmt.Errorf("run interrupted: %w", ctx.Err()))
		}
		if err := st.storeErr(); err != nil {
			return st.abort(ctx, fmt.Errorf("job store unavailable: %w", err))
		}

		if end < n {
			st.updateETA()
			_ = st.persist(ctx)
			if !sleepCtx(ctx, opts.BatchDelay()) {
				return st.abort(ctx, fmt.Errorf("run interrupted: %w", ctx.Err()))
			}
		}
	}
	return st.finish(ctx)
}

// jobRun is the mutable state of one Run call. All job mutation goes
// through mu; persist writes happen under the same lock so the store never
// sees an older snapshot after a newer one.
type jobRun struct {
	r         *Runner
	mu        sync.Mutex
	job       domain.Job
	startedAt time.Time
	doneInRun int
	firstErr  error
}

func (s *jobRun) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.r.now().UTC()
	s.job.Status = domain.JobRunning
	if s.job.StartedAt == nil {
		s.job.StartedAt = &now
	}
	s.job.CompletedAt = nil
	for i := range s.job.Queue {
		// an interrupted run may have left items mid-flight
		if s.job.Queue[i].Status == domain.ItemProcessing {
			s.job.Queue[i].Status = domain.ItemPending
		}
	}
	s.advanceLastProcessed()
}

func (s *jobRun) snapshot() domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job.Clone()
}

func (s *jobRun) itemStatus(i int) domain.ItemStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job.Queue[i].Status
}

func (s *jobRun) setBatch(b int) {
	s.mu.Lock()
	s.job.CurrentBatch = b
	s.mu.Unlock()
	_ = s.persist(context.Background())
}

func (s *jobRun) storeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

// persist writes the current snapshot. Store writes outlive ctx
// cancellation so an interrupted run still records where it stopped.
func (s *jobRun) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

func (s *jobRun) persistLocked(ctx context.Context) error {
	s.job.UpdatedAt = s.r.now().UTC()
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	err := s.r.store.UpdateJob(wctx, s.job.Clone())
	if err != nil {
		log.Error().Err(err).Str("job_id", s.job.ID).Msg("persist job failed")
		if s.firstErr == nil {
			s.firstErr = err
		}
	}
	return err
}

func (s *jobRun) processItem(ctx context.Context, i int) {
	s.mu.Lock()
	s.job.Queue[i].Status = domain.ItemProcessing
	item := s.job.Queue[i].Source
	opts := s.job.Options
	jobID, category := s.job.ID, s.job.Category
	_ = s.persistLocked(ctx)
	s.mu.Unlock()

	if item.Category == "" {
		item.Category = category
	}
	started := time.Now()
	var res ItemResult
	err := RetryWithBackoff(ctx, opts.MaxRetries, opts.RetryBase(), func(attempt int) error {
		res = s.r.proc.ProcessItem(ctx, item, ProcessOptions{Status: opts.Status, SkipExisting: opts.SkipExisting})
		if res.Success {
			return nil
		}
		if res.Error == nil {
			res.Error = errors.New("item failed without error")
		}
		if !domain.IsAlreadyExists(res.Error) {
			log.Warn().Err(res.Error).Str("job_id", jobID).Str("item", item.Name).Int("attempt", attempt+1).
				Int("max_attempts", opts.MaxRetries).Msg("item attempt failed")
		}
		return res.Error
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	q := &s.job.Queue[i]
	ev := log.Info()
	switch {
	case err == nil && res.Skipped:
		q.Status = domain.ItemSkipped
		if res.ReviewID != 0 {
			id := res.ReviewID
			q.ReviewID = &id
		}
		s.job.Skipped++
	case err == nil:
		q.Status = domain.ItemCompleted
		id := res.ReviewID
		q.ReviewID = &id
		q.Error = res.Warning
		s.job.Successful++
		s.job.Reviews = append(s.job.Reviews, domain.ReviewRef{ID: res.ReviewID, Slug: res.Slug, Title: res.Title})
	case domain.IsAlreadyExists(err):
		q.Status = domain.ItemSkipped
		q.Error = err.Error()
		s.job.Skipped++
	case ctx.Err() != nil:
		// interrupted, not failed: a resume picks it up again
		q.Status = domain.ItemPending
		return
	default:
		q.Status = domain.ItemFailed
		q.Error = err.Error()
		s.job.Failed++
		s.job.Errors = append(s.job.Errors, fmt.Sprintf("%s: %v", q.Name, err))
		ev = log.Warn().Err(err)
	}
	s.job.Processed = s.job.Successful + s.job.Failed + s.job.Skipped
	s.doneInRun++
	s.advanceLastProcessed()
	s.updateETALocked()
	observability.ObserveJobItem(string(category), string(q.Status))
	ev.Str("job_id", jobID).Str("item", q.Name).Str("status", string(q.Status)).
		Dur("duration", time.Since(started)).Int("processed", s.job.Processed).Int("total", s.job.Total).
		Msg("item finished")
	_ = s.persistLocked(ctx)
}

// advanceLastProcessed moves the index over the contiguous terminal prefix.
func (s *jobRun) advanceLastProcessed() {
	i := s.job.LastProcessedIndex + 1
	for i < len(s.job.Queue) && s.job.Queue[i].Status.Terminal() {
		i++
	}
	s.job.LastProcessedIndex = i - 1
}

func (s *jobRun) updateETA() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateETALocked()
}

// updateETALocked projects the remaining time from the wall-clock average
// per finished item of this run, delays included.
func (s *jobRun) updateETALocked() {
	remaining := s.job.Total - s.job.Processed
	if s.doneInRun == 0 || remaining <= 0 {
		s.job.EstimatedTimeRemaining = 0
		return
	}
	avg := s.r.now().Sub(s.startedAt) / time.Duration(s.doneInRun)
	s.job.EstimatedTimeRemaining = int64((avg * time.Duration(remaining)).Round(time.Second) / time.Second)
}

func (s *jobRun) abort(ctx context.Context, cause error) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.r.now().UTC()
	s.job.Status = domain.JobFailed
	s.job.CompletedAt = &now
	s.job.EstimatedTimeRemaining = 0
	s.job.Errors = append(s.job.Errors, cause.Error())
	_ = s.persistLocked(ctx)
	log.Error().Err(cause).Str("job_id", s.job.ID).Int("processed", s.job.Processed).Int("total", s.job.Total).
		Msg("job aborted")
	return s.job.Clone(), cause
}

// finish marks the job completed, or failed when every item failed.
func (s *jobRun) finish(ctx context.Context) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.r.now().UTC()
	s.job.Status = domain.JobCompleted
	if s.job.Total > 0 && s.job.Failed == s.job.Total {
		s.job.Status = domain.JobFailed
	}
	s.job.CompletedAt = &now
	s.job.EstimatedTimeRemaining = 0
	if err := s.persistLocked(ctx); err != nil {
		return s.job.Clone(), fmt.Errorf("persist final state: %w", err)
	}
	log.Info().Str("job_id", s.job.ID).Str("status", string(s.job.Status)).
		Int("successful", s.job.Successful).Int("failed", s.job.Failed).Int("skipped", s.job.Skipped).
		Dur("duration", now.Sub(s.startedAt)).Msg("job finished")
	return s.job.Clone(), nil
}

func normalizeOptions(o domain.JobOptions) domain.JobOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.BatchSize > maxBatchSize {
		o.BatchSize = maxBatchSize
	}
	if o.MaxRetries < 1 {
		o.MaxRetries = 1
	}
	o.DelayMS = max(o.DelayMS, 0)
	o.BatchDelayMS = max(o.BatchDelayMS, 0)
	o.RetryBaseMS = max(o.RetryBaseMS, 0)
	if !o.Status.Valid() {
		o.Status = domain.ReviewDraft
	}
	return o
}
