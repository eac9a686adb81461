package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/redubline/api/internal/jobmanager"
	"github.com/redubline/api/internal/model"
	"github.com/redubline/api/internal/resource"
	"github.com/redubline/api/pkg/response"
)

// SystemHandler serves GET /api/system/status: GPU/VRAM, active job
// count, and credential presence (never values), per spec.md §6.
type SystemHandler struct {
	jobs        *jobmanager.Manager
	credentials map[string]bool
	muxerReady  func() bool
}

// NewSystemHandler builds a SystemHandler. muxerReady reports whether
// the configured ffmpeg-compatible binary is reachable on PATH.
func NewSystemHandler(jobs *jobmanager.Manager, credentials map[string]bool, muxerReady func() bool) *SystemHandler {
	return &SystemHandler{jobs: jobs, credentials: credentials, muxerReady: muxerReady}
}

// Status handles GET /api/system/status.
func (h *SystemHandler) Status(c *fiber.Ctx) error {
	freeVRAM, vramKnown := resource.FreeVRAMGB()

	active := 0
	for _, j := range h.jobs.List() {
		if j.Status == model.JobStatusQueued || j.Status == model.JobStatusProcessing {
			active++
		}
	}

	return response.OK(c, fiber.Map{
		"activeJobs":       active,
		"localEngineReady": resource.LocalEngineViable(),
		"freeVramGb":       freeVRAM,
		"vramKnown":        vramKnown,
		"muxerAvailable":   h.muxerReady(),
		"credentials":      h.credentials,
	})
}
