package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/constants"
	"github.com/kozaktomas/immich-metasync/internal/syncer"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ErrJobRunning is returned when a sync job is started while another runs.
var ErrJobRunning = errors.New("a sync job is already running")

// SyncJob represents an async sync run started from the dashboard.
type SyncJob struct {
	EventBroadcaster

	ID          string
	Status      JobStatus
	Phase       string
	Progress    int
	Total       int
	Processed   int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
	Options     SyncJobOptions
	Stats       *syncer.Stats

	done chan struct{}
}

// SyncJobOptions are the options a sync job was started with.
type SyncJobOptions struct {
	Categories  []string `json:"categories"`
	DryRun      bool     `json:"dry_run"`
	Force       bool     `json:"force"`
	OnlyNew     bool     `json:"only_new"`
	Resume      bool     `json:"resume"`
	Limit       int      `json:"limit"`
	Concurrency int      `json:"concurrency"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *SyncJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Snapshot returns a copy of the job safe to encode while the job runs.
func (j *SyncJob) Snapshot() SyncJobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return SyncJobView{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Progress:    j.Progress,
		Total:       j.Total,
		Processed:   j.Processed,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Options:     j.Options,
		Stats:       j.Stats,
	}
}

// SyncJobView is the JSON form of a SyncJob.
type SyncJobView struct {
	ID          string         `json:"id"`
	Status      JobStatus      `json:"status"`
	Phase       string         `json:"phase,omitempty"`
	Progress    int            `json:"progress"`
	Total       int            `json:"total"`
	Processed   int            `json:"processed"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Options     SyncJobOptions `json:"options"`
	Stats       *syncer.Stats  `json:"stats,omitempty"`
}

func (j *SyncJob) setRunning() {
	j.mu.Lock()
	j.Status = JobStatusRunning
	j.mu.Unlock()
}

func (j *SyncJob) setProgress(info syncer.ProgressInfo) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Phase = info.Phase
	j.Total = info.Total
	j.Processed = info.Current
	if info.Total > 0 {
		j.Progress = int(float64(info.Current) / float64(info.Total) * 100)
	}
}

// finish records the terminal state. A job cancelled by the user stays
// cancelled even when the run returns a context error.
func (j *SyncJob) finish(status JobStatus, stats *syncer.Stats, errMsg string) {
	now := time.Now()
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != JobStatusCancelled {
		j.Status = status
	}
	j.Stats = stats
	j.Error = errMsg
	j.CompletedAt = &now
	if status == JobStatusCompleted {
		j.Progress = 100
	}
}

// Cancel cancels the sync job.
func (j *SyncJob) Cancel() {
	j.mu.Lock()
	terminal := isJobTerminal(j.Status)
	if !terminal {
		j.Status = JobStatusCancelled
	}
	j.mu.Unlock()
	if !terminal {
		j.EventBroadcaster.Cancel()
	}
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

func (b *EventBroadcaster) setCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async sync jobs. At most one job runs at a time.
type JobManager struct {
	jobs    map[string]*SyncJob
	order   []string
	current *SyncJob
	mu      sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*SyncJob),
	}
}

// CreateJob registers a new pending job. It fails with ErrJobRunning while
// the current job has not reached a terminal state.
func (m *JobManager) CreateJob(id string, options SyncJobOptions) (*SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && !isJobTerminal(m.current.GetStatus()) {
		return nil, ErrJobRunning
	}

	job := &SyncJob{
		ID:        id,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		Options:   options,
		done:      make(chan struct{}),
	}
	m.jobs[id] = job
	m.order = append(m.order, id)
	m.current = job
	return job, nil
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *SyncJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// Current returns the most recently created job, or nil.
func (m *JobManager) Current() *SyncJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	for i, jobID := range m.order {
		if jobID == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.current != nil && m.current.ID == id {
		m.current = nil
	}
}

// ListJobs returns all jobs in creation order.
func (m *JobManager) ListJobs() []*SyncJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*SyncJob, 0, len(m.order))
	for _, id := range m.order {
		jobs = append(jobs, m.jobs[id])
	}
	return jobs
}

// CancelAll cancels every job that is still running and waits until their
// runs return or ctx ends.
func (m *JobManager) CancelAll(ctx context.Context) error {
	jobs := m.ListJobs()
	for _, job := range jobs {
		job.Cancel()
	}
	for _, job := range jobs {
		if job.done == nil {
			continue
		}
		select {
		case <-job.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
