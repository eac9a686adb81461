// Package jobmanager owns the single authoritative, in-process registry
// of jobs. It is the only component permitted to mutate a Job: every
// other package reaches job state through Manager's methods and only
// ever sees deep-copied snapshots.
package jobmanager

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redubline/api/internal/auditlog"
	"github.com/redubline/api/internal/model"
)

// ErrNotFound is returned when a job ID is well-formed but no job with
// that ID is registered.
var ErrNotFound = errors.New("job not found")

// ErrInvalidID is returned when a job ID does not parse as a UUIDv4.
var ErrInvalidID = errors.New("invalid job id")

// record is the manager's private bookkeeping for one job. cancelled
// lives here rather than on model.Job because it is orchestration
// state, not domain state callers should ever see copies of.
type record struct {
	job       model.Job
	cancelled bool
}

// Manager holds every job for the lifetime of the process. There is no
// persistence: a restart loses all jobs, which is the documented,
// accepted behavior for a single-process deployment.
//
// A single mutex guards every field below. Exported methods never call
// each other while holding it -- the only shared logic is unexported
// code such as viewOf and isTerminal, which takes no lock itself -- so
// the mutex never needs to be reentrant.
type Manager struct {
	mu    sync.Mutex
	jobs  map[string]*record
	audit *auditlog.Log
}

// New builds an empty Manager with no audit trail.
func New() *Manager {
	return &Manager{jobs: make(map[string]*record)}
}

// NewWithAudit builds a Manager that publishes every lifecycle
// transition to audit for post-mortem forensics, per SPEC_FULL.md
// §7.1. audit may be nil, in which case this is identical to New.
func NewWithAudit(audit *auditlog.Log) *Manager {
	return &Manager{jobs: make(map[string]*record), audit: audit}
}

// Create registers a new job in the queued state and returns its ID.
func (m *Manager) Create(settings model.Settings, inputPath string) string {
	id := uuid.New().String()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobs[id] = &record{job: model.Job{
		ID:        id,
		Settings:  settings,
		Status:    model.JobStatusQueued,
		Stage:     model.StageNone,
		CreatedAt: time.Now(),
		Artifacts: model.Artifacts{InputPath: inputPath},
	}}
	m.audit.Publish(id, "created", inputPath)
	return id
}

// Get returns a read-only snapshot of a job. Callers must not assume
// the returned value stays fresh; call Get again to observe progress.
func (m *Manager) Get(jobID string) (model.JobView, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return model.JobView{}, ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return model.JobView{}, ErrNotFound
	}
	return viewOf(rec), nil
}

func viewOf(rec *record) model.JobView {
	j := rec.job
	logs := make([]model.LogEntry, len(j.Logs))
	copy(logs, j.Logs)

	var quality *model.QualityReport
	if j.Quality != nil {
		q := *j.Quality
		quality = &q
	}

	var completedAt *time.Time
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		completedAt = &t
	}

	status := j.Status
	if rec.cancelled && status != model.JobStatusCompleted && status != model.JobStatusFailed {
		status = model.JobStatusCancelled
	}

	view := model.JobView{
		ID:          j.ID,
		Status:      status,
		CurrentStep: j.Stage,
		Progress:    j.Progress,
		Logs:        logs,
		Quality:     quality,
		CreatedAt:   j.CreatedAt,
		CompletedAt: completedAt,
	}
	// OutputFile/DownloadURL are only meaningful once the job has
	// actually reached Completed -- Run sets Artifacts before flipping
	// status, so a poll landing in between must not see an output path
	// on a job that still reads as processing.
	if status == model.JobStatusCompleted {
		view.OutputFile = j.Artifacts.OutputPath
		view.DownloadURL = j.Artifacts.RemoteURL
	}
	return view
}

// UpdateStage advances the job's current pipeline stage. It does not
// touch Status: callers move Status independently via SetStatus.
func (m *Manager) UpdateStage(jobID string, stage model.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return
	}
	rec.job.Stage = stage
	m.audit.Publish(jobID, "stage-changed", string(stage))
}

// SetStatus transitions the job to a new top-level status. A terminal
// status (completed/failed/cancelled) is never overwritten -- once a
// job reaches one, every later call is a silent no-op, matching the
// spec's "terminal status is never revised" invariant.
func (m *Manager) SetStatus(jobID string, status model.JobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return
	}
	if isTerminal(rec.job.Status) {
		return
	}
	rec.job.Status = status
	if isTerminal(status) {
		now := time.Now()
		rec.job.CompletedAt = &now
	}
	m.audit.Publish(jobID, string(status), "")
}

func isTerminal(s model.JobStatus) bool {
	return s == model.JobStatusCompleted || s == model.JobStatusFailed || s == model.JobStatusCancelled
}

// SetProgress clamps and stores the job's 0-100 completion percentage.
func (m *Manager) SetProgress(jobID string, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return
	}
	rec.job.Progress = pct
}

// AppendLog appends a timestamped message to the job's bounded log
// buffer, truncating overlong messages and trimming the oldest batch
// once the buffer hits its cap.
func (m *Manager) AppendLog(jobID string, stage model.Stage, message string) {
	if len(message) > model.MaxLogMessageLen {
		message = message[:model.MaxLogMessageLen-len(logTruncateMark)] + logTruncateMark
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return
	}

	rec.job.Logs = append(rec.job.Logs, model.LogEntry{
		Timestamp: time.Now(),
		Stage:     stage,
		Message:   message,
	})

	if len(rec.job.Logs) >= model.MaxLogEntries {
		rec.job.Logs = append([]model.LogEntry{}, rec.job.Logs[model.LogTrimBatch:]...)
	}
}

const logTruncateMark = "..."

// SetOutput records the merged output file's on-disk path.
func (m *Manager) SetOutput(jobID, outputPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return
	}
	rec.job.Artifacts.OutputPath = outputPath
}

// SetRemoteURL records the best-effort mirrored artifact's URL.
func (m *Manager) SetRemoteURL(jobID, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return
	}
	rec.job.Artifacts.RemoteURL = url
}

// SetQuality records the pipeline's final quality report, if verification ran.
func (m *Manager) SetQuality(jobID string, report model.QualityReport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return
	}
	rec.job.Quality = &report
}

// Artifacts returns the job's on-disk input/output paths, used
// internally by pipeline stages that never see the full JobView.
func (m *Manager) Artifacts(jobID string) (model.Artifacts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return model.Artifacts{}, ErrNotFound
	}
	return rec.job.Artifacts, nil
}

// Settings returns the job's immutable creation-time settings.
func (m *Manager) Settings(jobID string) (model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return model.Settings{}, ErrNotFound
	}
	return rec.job.Settings, nil
}

// Cancel requests cooperative cancellation of a running job. It is
// idempotent: cancelling an already-cancelled or already-terminal job
// is a no-op that still reports success, since the desired end state
// is already reached or unreachable.
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if isTerminal(rec.job.Status) {
		return nil
	}
	rec.cancelled = true
	return nil
}

// IsCancelled reports whether a cancellation request is pending for a
// job. Pipeline stages poll this at checkpoints between engine calls.
func (m *Manager) IsCancelled(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return false
	}
	return rec.cancelled
}

// FinishCancelled marks a job cancelled after a stage has actually
// unwound in response to IsCancelled. Separate from Cancel because the
// request and the observable effect happen on different goroutines.
func (m *Manager) FinishCancelled(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[jobID]
	if !ok {
		return
	}
	if isTerminal(rec.job.Status) {
		return
	}
	rec.job.Status = model.JobStatusCancelled
	now := time.Now()
	rec.job.CompletedAt = &now
	m.audit.Publish(jobID, "cancelled", "")
}

// List returns snapshots of every job, newest first, for the operator
// CLI and any future admin surface.
func (m *Manager) List() []model.JobView {
	m.mu.Lock()
	defer m.mu.Unlock()

	views := make([]model.JobView, 0, len(m.jobs))
	for _, rec := range m.jobs {
		views = append(views, viewOf(rec))
	}
	for i := 0; i < len(views); i++ {
		for j := i + 1; j < len(views); j++ {
			if views[j].CreatedAt.After(views[i].CreatedAt) {
				views[i], views[j] = views[j], views[i]
			}
		}
	}
	return views
}
