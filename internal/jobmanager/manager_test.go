package jobmanager

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redubline/api/internal/auditlog"
	"github.com/redubline/api/internal/model"
)

func testSettings() model.Settings {
	return model.Settings{
		SourceLang: "en",
		TargetLang: "ko",
		SyncMode:   model.SyncModeSpeedSync,
	}
}

func TestCreateAndGet(t *testing.T) {
	m := New()
	id := m.Create(testSettings(), "/tmp/in.mp4")

	view, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, view.Status)
	assert.Equal(t, model.StageNone, view.CurrentStep)
	assert.Equal(t, 0, view.Progress)
	assert.Empty(t, view.Logs)
}

func TestGetInvalidID(t *testing.T) {
	m := New()
	_, err := m.Get("not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestGetUnknownID(t *testing.T) {
	m := New()
	id := m.Create(testSettings(), "/tmp/in.mp4")
	m2 := New()
	_, err := m2.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTerminalStatusNeverRevised(t *testing.T) {
	m := New()
	id := m.Create(testSettings(), "/tmp/in.mp4")

	m.SetStatus(id, model.JobStatusCompleted)
	m.SetStatus(id, model.JobStatusFailed)

	view, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, view.Status)
	assert.NotNil(t, view.CompletedAt)
}

func TestProgressClamped(t *testing.T) {
	m := New()
	id := m.Create(testSettings(), "/tmp/in.mp4")

	m.SetProgress(id, -5)
	view, _ := m.Get(id)
	assert.Equal(t, 0, view.Progress)

	m.SetProgress(id, 150)
	view, _ = m.Get(id)
	assert.Equal(t, 100, view.Progress)
}

func TestAppendLogTruncatesLongMessages(t *testing.T) {
	m := New()
	id := m.Create(testSettings(), "/tmp/in.mp4")

	long := strings.Repeat("x", model.MaxLogMessageLen+50)
	m.AppendLog(id, model.StageTranscribe, long)

	view, _ := m.Get(id)
	require.Len(t, view.Logs, 1)
	assert.LessOrEqual(t, len(view.Logs[0].Message), model.MaxLogMessageLen)
	assert.True(t, strings.HasSuffix(view.Logs[0].Message, "..."))
}

func TestAppendLogTrimsAtCapacity(t *testing.T) {
	m := New()
	id := m.Create(testSettings(), "/tmp/in.mp4")

	for i := 0; i < model.MaxLogEntries; i++ {
		m.AppendLog(id, model.StageTranscribe, "line")
	}

	view, _ := m.Get(id)
	assert.Less(t, len(view.Logs), model.MaxLogEntries)
	assert.Equal(t, model.MaxLogEntries-model.LogTrimBatch, len(view.Logs))
}

func TestCancelIsIdempotent(t *testing.T) {
	m := New()
	id := m.Create(testSettings(), "/tmp/in.mp4")

	require.NoError(t, m.Cancel(id))
	require.NoError(t, m.Cancel(id))
	assert.True(t, m.IsCancelled(id))

	m.FinishCancelled(id)
	view, _ := m.Get(id)
	assert.Equal(t, model.JobStatusCancelled, view.Status)

	// Cancelling an already-terminal job is a no-op, not an error.
	require.NoError(t, m.Cancel(id))
}

func TestCancelUnknownJob(t *testing.T) {
	m := New()
	assert.ErrorIs(t, m.Cancel("bad-id"), ErrNotFound)
}

func TestGetReturnsIndependentCopies(t *testing.T) {
	m := New()
	id := m.Create(testSettings(), "/tmp/in.mp4")
	m.AppendLog(id, model.StageExtract, "first")

	view1, _ := m.Get(id)
	view1.Logs[0].Message = "mutated"

	view2, _ := m.Get(id)
	assert.Equal(t, "first", view2.Logs[0].Message)
}

func TestListOrdersNewestFirst(t *testing.T) {
	m := New()
	id1 := m.Create(testSettings(), "/tmp/a.mp4")
	id2 := m.Create(testSettings(), "/tmp/b.mp4")

	views := m.List()
	require.Len(t, views, 2)
	assert.Equal(t, id2, views[0].ID)
	assert.Equal(t, id1, views[1].ID)

	ids := map[string]bool{id1: true, id2: true}
	for _, v := range views {
		assert.True(t, ids[v.ID])
	}
}

func TestSetOutputAndArtifacts(t *testing.T) {
	m := New()
	id := m.Create(testSettings(), "/tmp/in.mp4")
	m.SetOutput(id, "/tmp/out.mp4")

	// OutputFile only surfaces once the job is actually Completed, so a
	// poll landing between the artifact write and the status flip never
	// sees an output path on a job that still reads as processing.
	view, _ := m.Get(id)
	assert.Empty(t, view.OutputFile)

	arts, err := m.Artifacts(id)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/in.mp4", arts.InputPath)
	assert.Equal(t, "/tmp/out.mp4", arts.OutputPath)

	m.SetStatus(id, model.JobStatusCompleted)
	view, _ = m.Get(id)
	assert.Equal(t, "/tmp/out.mp4", view.OutputFile)
}

func TestNewWithAuditPublishesLifecycleEvents(t *testing.T) {
	log, err := auditlog.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer log.Close()

	m := NewWithAudit(log)
	id := m.Create(testSettings(), "/tmp/in.mp4")
	m.UpdateStage(id, model.StageExtract)
	m.SetStatus(id, model.JobStatusProcessing)
	require.NoError(t, m.Cancel(id))
	m.FinishCancelled(id)

	view, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, view.Status)
}

func TestNewHasNoAuditDependency(t *testing.T) {
	m := New()
	id := m.Create(testSettings(), "/tmp/in.mp4")
	// Every mutating method must tolerate a nil audit log without panicking.
	assert.NotPanics(t, func() {
		m.UpdateStage(id, model.StageTranscribe)
		m.SetStatus(id, model.JobStatusProcessing)
		m.SetStatus(id, model.JobStatusCompleted)
	})
}
