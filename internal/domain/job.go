package domain

import "time"

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
	ItemSkipped    ItemStatus = "skipped"
)

func (s ItemStatus) Terminal() bool {
	return s == ItemCompleted || s == ItemFailed || s == ItemSkipped
}

type JobItem struct {
	Name       string     `json:"name"`
	ExternalID string     `json:"external_id,omitempty"`
	Status     ItemStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	ReviewID   *int64     `json:"review_id,omitempty"`
	Source     SourceItem `json:"source"`
}

type ReviewRef struct {
	ID    int64  `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// JobOptions are the pass-through knobs of a mass-creation request.
type JobOptions struct {
	BatchSize    int          `json:"batch_size"`
	DelayMS      int          `json:"delay_ms"`       // stagger between item starts inside a batch
	BatchDelayMS int          `json:"batch_delay_ms"` // pause between batches
	MaxRetries   int          `json:"max_retries"`
	RetryBaseMS  int          `json:"retry_base_ms"`
	SkipExisting bool         `json:"skip_existing"`
	Status       ReviewStatus `json:"status"`
}

func (o JobOptions) ItemDelay() time.Duration  { return time.Duration(o.DelayMS) * time.Millisecond }
func (o JobOptions) BatchDelay() time.Duration { return time.Duration(o.BatchDelayMS) * time.Millisecond }
func (o JobOptions) RetryBase() time.Duration  { return time.Duration(o.RetryBaseMS) * time.Millisecond }

// Job is the progress record of one mass-creation run. It is the object the
// admin UI polls.
type Job struct {
	ID                     string      `json:"jobId"`
	Category               Category    `json:"category"`
	Status                 JobStatus   `json:"status"`
	Total                  int         `json:"total"`
	Processed              int         `json:"processed"`
	Successful             int         `json:"successful"`
	Failed                 int         `json:"failed"`
	Skipped                int         `json:"skipped"`
	Queue                  []JobItem   `json:"queue"`
	CurrentBatch           int         `json:"currentBatch"`
	TotalBatches           int         `json:"totalBatches"`
	LastProcessedIndex     int         `json:"lastProcessedIndex"`
	EstimatedTimeRemaining int64       `json:"estimatedTimeRemaining"` // seconds
	Errors                 []string    `json:"errors"`
	Reviews                []ReviewRef `json:"reviews"`
	Options                JobOptions  `json:"options"`
	CreatedAt              time.Time   `json:"createdAt"`
	UpdatedAt              time.Time   `json:"updatedAt"`
	StartedAt              *time.Time  `json:"startedAt,omitempty"`
	CompletedAt            *time.Time  `json:"completedAt,omitempty"`
}

// Clone returns a deep copy safe to hand to a store or a poller while the
// runner keeps mutating the original.
func (j Job) Clone() Job {
	out := j
	out.Queue = append([]JobItem(nil), j.Queue...)
	out.Errors = append([]string(nil), j.Errors...)
	out.Reviews = append([]ReviewRef(nil), j.Reviews...)
	return out
}
