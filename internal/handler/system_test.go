package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redubline/api/internal/jobmanager"
	"github.com/redubline/api/internal/model"
)

func settingsFixture() model.Settings {
	return model.Settings{
		SourceLang: "en",
		TargetLang: "es",
		SyncMode:   model.SyncModeNatural,
	}
}

func TestSystemHandlerStatusCountsOnlyActiveJobs(t *testing.T) {
	jobs := jobmanager.New()
	queuedID := jobs.Create(settingsFixture(), "/tmp/a.mp4")
	processingID := jobs.Create(settingsFixture(), "/tmp/b.mp4")
	jobs.SetStatus(processingID, model.JobStatusProcessing)
	completedID := jobs.Create(settingsFixture(), "/tmp/c.mp4")
	jobs.SetStatus(completedID, model.JobStatusCompleted)
	_ = queuedID

	h := NewSystemHandler(jobs, map[string]bool{"groq": true, "gemini": false}, func() bool { return true })

	app := fiber.New()
	app.Get("/status", h.Status)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ActiveJobs     int             `json:"activeJobs"`
		MuxerAvailable bool            `json:"muxerAvailable"`
		Credentials    map[string]bool `json:"credentials"`
	}
	require.NoError(t, parseJSONBody(resp, &body))
	assert.Equal(t, 2, body.ActiveJobs) // queued + processing, not completed
	assert.True(t, body.MuxerAvailable)
	assert.Equal(t, map[string]bool{"groq": true, "gemini": false}, body.Credentials)
}

func TestSystemHandlerStatusReflectsMuxerUnavailable(t *testing.T) {
	jobs := jobmanager.New()
	h := NewSystemHandler(jobs, map[string]bool{}, func() bool { return false })

	app := fiber.New()
	app.Get("/status", h.Status)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	require.NoError(t, err)

	var body struct {
		MuxerAvailable bool `json:"muxerAvailable"`
	}
	require.NoError(t, parseJSONBody(resp, &body))
	assert.False(t, body.MuxerAvailable)
}
