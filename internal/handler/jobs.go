package handler

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/redubline/api/internal/downloadtoken"
	"github.com/redubline/api/internal/jobmanager"
	"github.com/redubline/api/internal/model"
	"github.com/redubline/api/internal/upload"
	"github.com/redubline/api/pkg/response"
)

// JobHandler serves the job lifecycle routes (§6.1). Jobs are created
// synchronously (upload + validate + register) but run asynchronously:
// Create only enqueues a job ID onto the worker pool's queue.
type JobHandler struct {
	jobs      *jobmanager.Manager
	queue     chan<- string
	validator *validator.Validate
	uploadDir string
	maxBytes  int64
	tokens    *downloadtoken.Signer
}

// NewJobHandler builds a JobHandler. queue is the worker pool's job-ID
// channel; enqueueing blocks only if the pool is saturated, which
// naturally back-pressures POST /api/jobs.
func NewJobHandler(jobs *jobmanager.Manager, queue chan<- string, v *validator.Validate, uploadDir string, maxBytes int64, tokens *downloadtoken.Signer) *JobHandler {
	return &JobHandler{jobs: jobs, queue: queue, validator: v, uploadDir: uploadDir, maxBytes: maxBytes, tokens: tokens}
}

// Create handles POST /api/jobs: multipart file plus the settings
// fields from spec.md §6's route table.
func (h *JobHandler) Create(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "file is required", nil)
	}

	settings := model.Settings{
		SourceLang:        c.FormValue("source_lang"),
		TargetLang:        c.FormValue("target_lang"),
		CloneVoice:        c.FormValue("clone_voice") == "true",
		VerifyTranslation: c.FormValue("verify_translation") == "true",
		SyncMode:          model.SyncMode(defaultString(c.FormValue("sync_mode"), string(model.SyncModeNatural))),
		TranslationEngine: model.EngineChoice(defaultString(c.FormValue("translation_engine"), string(model.EngineAuto))),
		TTSEngine:         model.EngineChoice(defaultString(c.FormValue("tts_engine"), string(model.EngineAuto))),
		STTEngine:         model.EngineChoice(defaultString(c.FormValue("stt_engine"), string(model.EngineAuto))),
	}

	if err := h.validator.Struct(&settings); err != nil {
		return response.ValidationError(c, "validation failed", formatValidationErrors(err))
	}

	if fileHeader.Size > h.maxBytes {
		return response.Error(c, fiber.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, "file exceeds upload size limit", nil)
	}

	safeName, err := upload.SanitizeFilename(fileHeader.Filename)
	if err != nil {
		return response.Error(c, fiber.StatusUnsupportedMediaType, response.CodeUnsupportedType, err.Error(), nil)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return response.ServiceError(c, "failed to open uploaded file")
	}
	defer src.Close()

	savedPath, err := upload.Save(src, h.uploadDir, safeName, h.maxBytes)
	if err != nil {
		if _, ok := err.(upload.ErrTooLarge); ok {
			return response.Error(c, fiber.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	jobID := h.jobs.Create(settings, savedPath)

	select {
	case h.queue <- jobID:
	default:
		// Pool momentarily saturated: block until a worker frees up
		// rather than dropping the job silently.
		h.queue <- jobID
	}

	return response.Accepted(c, fiber.Map{"jobId": jobID, "status": model.JobStatusQueued})
}

// Get handles GET /api/jobs/:id.
func (h *JobHandler) Get(c *fiber.Ctx) error {
	jobID := c.Params("id")
	view, err := h.jobs.Get(jobID)
	if err != nil {
		return jobLookupError(c, err)
	}

	if view.Status == model.JobStatusCompleted && h.tokens != nil {
		if token, err := h.tokens.Issue(jobID); err == nil {
			view.DownloadURL = fmt.Sprintf("/api/jobs/%s/download?token=%s", jobID, token)
		}
	}

	return response.OK(c, view)
}

// Cancel handles POST /api/jobs/:id/cancel.
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if err := h.jobs.Cancel(jobID); err != nil {
		return jobLookupError(c, err)
	}
	return response.OK(c, fiber.Map{"jobId": jobID, "status": "cancelling"})
}

// Download handles GET /api/jobs/:id/download. The api-key middleware
// already ran; this also accepts an unauthenticated request carrying a
// valid signed token for this exact job, per §6.3.
func (h *JobHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("id")
	view, err := h.jobs.Get(jobID)
	if err != nil {
		return jobLookupError(c, err)
	}
	if view.Status != model.JobStatusCompleted {
		return response.ValidationError(c, "job is not completed", nil)
	}

	if token := c.Query("token"); token != "" && h.tokens != nil {
		if err := h.tokens.Verify(token, jobID); err != nil {
			return response.Unauthorized(c, "invalid or expired download token")
		}
	}

	artifacts, err := h.jobs.Artifacts(jobID)
	if err != nil || artifacts.OutputPath == "" {
		return response.NotFound(c, "output artifact not found")
	}
	if _, err := os.Stat(artifacts.OutputPath); err != nil {
		return response.NotFound(c, "output artifact not found")
	}

	return c.Download(artifacts.OutputPath, filepath.Base(artifacts.OutputPath))
}

// List handles GET /api/jobs, an ops-facing listing consumed by
// dubctl, gated behind the same api-key middleware as everything else.
func (h *JobHandler) List(c *fiber.Ctx) error {
	return response.OK(c, h.jobs.List())
}

func jobLookupError(c *fiber.Ctx, err error) error {
	switch err {
	case jobmanager.ErrNotFound:
		return response.Error(c, fiber.StatusNotFound, response.CodeJobNotFound, "job not found", nil)
	case jobmanager.ErrInvalidID:
		return response.ValidationError(c, "invalid job id", nil)
	default:
		return response.ServiceError(c, err.Error())
	}
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// formatValidationErrors formats validator errors for response.
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
