package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a batch conversion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusConverting JobStatus = "converting"
	StatusStoring    JobStatus = "storing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

// Item outcomes.
const (
	ItemConverted = "converted"
	ItemStored    = "stored"
	ItemUnchanged = "unchanged"
	ItemFailed    = "failed"
)

// Item is one document in a batch.
type Item struct {
	DocID   string `json:"doc_id"`
	Title   string `json:"title,omitempty"`
	Format  string `json:"format,omitempty"` // html (default), markdown, xml, text, csv
	Content string `json:"content"`
}

// ItemResult is the outcome for one item.
type ItemResult struct {
	DocID       string `json:"doc_id"`
	Status      string `json:"status"`
	Title       string `json:"title,omitempty"`
	Nodes       int    `json:"nodes"`
	ContentHash string `json:"content_hash,omitempty"`
	HTML        string `json:"html,omitempty"` // Only when the job does not store
	Error       string `json:"error,omitempty"`
}

// Job tracks the state of a batch conversion.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	UserID string `json:"user_id"`
	Store  bool   `json:"store"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	items   []Item
	results []ItemResult
	errors  []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalItems     int      `json:"total_items"`
	ItemsConverted int      `json:"items_converted"`
	ItemsStored    int      `json:"items_stored"`
	ItemsUnchanged int      `json:"items_unchanged"`
	Errors         []string `json:"errors"`
}

// NewJob creates a queued job with a time-ordered ID.
func NewJob(userID string, items []Item, store bool) *Job {
	now := time.Now()
	results := make([]ItemResult, len(items))
	for i, it := range items {
		results[i] = ItemResult{DocID: it.DocID}
	}
	return &Job{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Store:     store,
		Status:    StatusQueued,
		Phase:     "queued",
		Progress:  Progress{TotalItems: len(items)},
		CreatedAt: now,
		UpdatedAt: now,
		items:     items,
		results:   results,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// Items returns the job's input items.
func (j *Job) Items() []Item {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.items
}

// Result returns a copy of item i's result.
func (j *Job) Result(i int) ItemResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.results[i]
}

// SetResult records item i's outcome and updates the counters.
func (j *Job) SetResult(i int, r ItemResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch r.Status {
	case ItemConverted:
		j.Progress.ItemsConverted++
	case ItemStored:
		j.Progress.ItemsStored++
	case ItemUnchanged:
		j.Progress.ItemsUnchanged++
	}
	j.results[i] = r
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string       `json:"job_id"`
	UserID    string       `json:"user_id"`
	Store     bool         `json:"store"`
	Status    JobStatus    `json:"status"`
	Phase     string       `json:"phase"`
	Progress  Progress     `json:"progress"`
	Results   []ItemResult `json:"results"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.errors))
	copy(errs, j.errors)
	results := make([]ItemResult, len(j.results))
	copy(results, j.results)
	progress := j.Progress
	progress.Errors = errs
	return JobSnapshot{
		ID:        j.ID,
		UserID:    j.UserID,
		Store:     j.Store,
		Status:    j.Status,
		Phase:     j.Phase,
		Progress:  progress,
		Results:   results,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
