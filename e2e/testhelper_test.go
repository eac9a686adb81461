package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/redubline/api/internal/client"
	"github.com/redubline/api/internal/dispatcher"
	"github.com/redubline/api/internal/downloadtoken"
	"github.com/redubline/api/internal/handler"
	"github.com/redubline/api/internal/jobmanager"
	"github.com/redubline/api/internal/middleware"
	"github.com/redubline/api/internal/pipeline"
	"github.com/redubline/api/internal/resource"
	"github.com/redubline/api/internal/translate"
)

const testAPIKey = "test-api-key-for-e2e"

// testApp wires a Fiber app the same way cmd/server does, but with
// every external engine unconfigured -- exactly the shape of a fresh
// install with no credentials set.
type testApp struct {
	app       *fiber.App
	jobs      *jobmanager.Manager
	uploadDir string
	tokens    *downloadtoken.Signer
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	uploadDir := t.TempDir()

	jobs := jobmanager.New()
	dispatch, err := dispatcher.New()
	if err != nil {
		t.Fatalf("dispatcher.New: %v", err)
	}

	translator := translate.NewTranslator(map[string]translate.ChatClient{})
	muxer := client.NewMuxer("ffmpeg")

	orchestrator := pipeline.New(pipeline.Config{
		Jobs:        jobs,
		Dispatch:    dispatch,
		Translator:  translator,
		Extractor:   muxer,
		Muxer:       muxer,
		STTClients:  map[string]pipeline.SpeechRecognizer{},
		TTSClients:  map[string]pipeline.Synthesizer{},
		ChatClients: pipeline.ChatClients{},
		Credentials: dispatcher.CredentialSet{},
		Gate:        resource.NewGate(),
		WorkDir:     uploadDir,
	})

	queue := make(chan string, 16)
	go func() {
		for jobID := range queue {
			orchestrator.Run(context.Background(), jobID)
		}
	}()
	t.Cleanup(func() { close(queue) })

	validate := validator.New()
	tokens := downloadtoken.NewSigner("test-download-secret", 15)

	apiKeyAuth := middleware.NewAPIKeyAuth(true, []string{testAPIKey})
	rateLimiter := middleware.NewRateLimiter(nil)

	jobHandler := handler.NewJobHandler(jobs, queue, validate, uploadDir, 10*1024*1024, tokens)
	systemHandler := handler.NewSystemHandler(jobs, map[string]bool{"groq": false}, muxer.Available)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", apiKeyAuth.Require())
	jobsGroup := api.Group("/jobs")
	jobsGroup.Post("/", rateLimiter.JobsLimit(10000), jobHandler.Create)
	jobsGroup.Get("/", jobHandler.List)
	jobsGroup.Get("/:id", jobHandler.Get)
	jobsGroup.Post("/:id/cancel", jobHandler.Cancel)
	api.Get("/system/status", systemHandler.Status)

	app.Get("/api/jobs/:id/download", func(c *fiber.Ctx) error {
		if c.Query("token") != "" {
			return c.Next()
		}
		return apiKeyAuth.Require()(c)
	}, jobHandler.Download)

	return &testApp{app: app, jobs: jobs, uploadDir: uploadDir, tokens: tokens}
}

func doRequest(app *fiber.App, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return app.Test(req, -1)
}

func doAuthRequest(app *fiber.App, method, path string, body io.Reader) (*http.Response, error) {
	return doRequest(app, method, path, body, map[string]string{"X-API-Key": testAPIKey})
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d: %s", expected, resp.StatusCode, readBody(t, resp))
	}
}

// writeUploadFixture writes a small fake video file to a temp dir and
// returns its path, for tests that need a real *os.File to attach to a
// multipart request.
func writeUploadFixture(t *testing.T, name string, size int) string {
	t.Helper()
	path := t.TempDir() + "/" + name
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}
