package e2e

import (
	"net/http"
	"os"
	"testing"

	"github.com/redubline/api/internal/model"
)

// completedJob bypasses the pipeline entirely and drives a job straight
// to completed with a real output file on disk, so download tests don't
// depend on any engine being configured.
func completedJob(t *testing.T, ta *testApp) (jobID, outputPath string) {
	t.Helper()

	jobID = ta.jobs.Create(model.Settings{
		SourceLang: "en",
		TargetLang: "es",
		SyncMode:   model.SyncModeNatural,
	}, ta.uploadDir+"/input.mp4")

	outputPath = ta.uploadDir + "/" + jobID + "_output.mp4"
	if err := os.WriteFile(outputPath, []byte("dubbed video bytes"), 0o644); err != nil {
		t.Fatalf("write output fixture: %v", err)
	}
	ta.jobs.SetOutput(jobID, outputPath)
	ta.jobs.SetStatus(jobID, model.JobStatusCompleted)
	return jobID, outputPath
}

func TestDownload_WithAPIKey(t *testing.T) {
	ta := setupApp(t)
	jobID, _ := completedJob(t, ta)

	resp, err := doAuthRequest(ta.app, http.MethodGet, "/api/jobs/"+jobID+"/download", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
}

func TestDownload_WithValidToken(t *testing.T) {
	ta := setupApp(t)
	jobID, _ := completedJob(t, ta)

	token, err := ta.tokens.Issue(jobID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	resp, err := doRequest(ta.app, http.MethodGet, "/api/jobs/"+jobID+"/download?token="+token, nil, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
}

func TestDownload_TokenForDifferentJobRejected(t *testing.T) {
	ta := setupApp(t)
	jobID, _ := completedJob(t, ta)
	otherJobID, _ := completedJob(t, ta)

	token, err := ta.tokens.Issue(otherJobID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	resp, err := doRequest(ta.app, http.MethodGet, "/api/jobs/"+jobID+"/download?token="+token, nil, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestDownload_NoCredentialsRejected(t *testing.T) {
	ta := setupApp(t)
	jobID, _ := completedJob(t, ta)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/jobs/"+jobID+"/download", nil, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestDownload_NotCompletedRejected(t *testing.T) {
	ta := setupApp(t)
	videoPath := writeUploadFixture(t, "source.mp4", 1024)

	createResp, err := ta.app.Test(createJobRequest(t, videoPath, nil), -1)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	jobID := parseJSON(t, createResp)["jobId"].(string)
	_ = ta.jobs.Cancel(jobID) // stop the worker before it can complete the job

	resp, err := doAuthRequest(ta.app, http.MethodGet, "/api/jobs/"+jobID+"/download", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}
