package e2e

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"testing"
	"time"
)

func createJobRequest(t *testing.T, videoPath string, extraFields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	_ = writer.WriteField("source_lang", "en")
	_ = writer.WriteField("target_lang", "es")
	_ = writer.WriteField("sync_mode", "natural")
	for k, v := range extraFields {
		_ = writer.WriteField(k, v)
	}

	if videoPath != "" {
		f, err := os.Open(videoPath)
		if err != nil {
			t.Fatalf("open fixture: %v", err)
		}
		defer f.Close()

		part, err := writer.CreateFormFile("file", "source.mp4")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			t.Fatalf("write fixture into form: %v", err)
		}
	}

	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/jobs/", &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", testAPIKey)
	return req
}

func TestCreateJob_Success(t *testing.T) {
	ta := setupApp(t)
	videoPath := writeUploadFixture(t, "source.mp4", 1024)

	resp, err := ta.app.Test(createJobRequest(t, videoPath, nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	body := parseJSON(t, resp)
	if body["jobId"] == nil || body["jobId"] == "" {
		t.Error("expected jobId in response")
	}
	if body["status"] != "queued" {
		t.Errorf("expected status queued, got %v", body["status"])
	}
}

func TestCreateJob_MissingFile(t *testing.T) {
	ta := setupApp(t)

	resp, err := ta.app.Test(createJobRequest(t, "", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestCreateJob_NoAPIKey(t *testing.T) {
	ta := setupApp(t)
	videoPath := writeUploadFixture(t, "source.mp4", 1024)
	req := createJobRequest(t, videoPath, nil)
	req.Header.Del("X-API-Key")

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestCreateJob_UnsupportedExtension(t *testing.T) {
	ta := setupApp(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("source_lang", "en")
	_ = writer.WriteField("target_lang", "es")
	_ = writer.WriteField("sync_mode", "natural")
	part, _ := writer.CreateFormFile("file", "source.exe")
	_, _ = part.Write([]byte("not a video"))
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, "/api/jobs/", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", testAPIKey)

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnsupportedMediaType)
}

func TestGetJob_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(ta.app, http.MethodGet, "/api/jobs/00000000-0000-4000-8000-000000000000", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestGetJob_InvalidID(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(ta.app, http.MethodGet, "/api/jobs/not-a-uuid", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestCancelJob_Idempotent(t *testing.T) {
	ta := setupApp(t)
	videoPath := writeUploadFixture(t, "source.mp4", 1024)

	createResp, err := ta.app.Test(createJobRequest(t, videoPath, nil), -1)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	jobID := parseJSON(t, createResp)["jobId"].(string)

	for i := 0; i < 2; i++ {
		resp, err := doAuthRequest(ta.app, http.MethodPost, "/api/jobs/"+jobID+"/cancel", nil)
		if err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		assertStatus(t, resp, http.StatusOK)
	}
}

func TestListJobs_IncludesCreated(t *testing.T) {
	ta := setupApp(t)
	videoPath := writeUploadFixture(t, "source.mp4", 1024)

	createResp, err := ta.app.Test(createJobRequest(t, videoPath, nil), -1)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	jobID := parseJSON(t, createResp)["jobId"].(string)

	// Give the worker goroutine a moment to pick the job up; the list
	// endpoint reads whatever state is current regardless of outcome.
	time.Sleep(10 * time.Millisecond)

	resp, err := doAuthRequest(ta.app, http.MethodGet, "/api/jobs/", nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := readBody(t, resp)
	if !bytes.Contains([]byte(body), []byte(jobID)) {
		t.Errorf("expected job %s in list response: %s", jobID, body)
	}
}
