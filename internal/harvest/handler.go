package harvest

import (
	"github.com/gofiber/fiber/v2"

	"menuharvest/internal/logger"
)

// Handler exposes batch submission and status over HTTP.
type Handler struct {
	enqueuer *Enqueuer
	jobs     JobStore
	log      *logger.Logger
}

func NewHandler(enqueuer *Enqueuer, jobs JobStore) *Handler {
	return &Handler{enqueuer: enqueuer, jobs: jobs, log: logger.New("HarvestAPI")}
}

type submitRequest struct {
	Sources []Source `json:"sources"`
}

// Submit accepts a batch of sources and returns 202 with the batch id.
func (h *Handler) Submit(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	batchID, err := h.enqueuer.EnqueueBatch(c.Context(), req.Sources)
	if err != nil {
		h.log.LogWarnf("batch submission rejected: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"batch_id": batchID})
}

// GetBatch returns the batch record, including the per-batch summary once
// the coordinator has finished.
func (h *Handler) GetBatch(c *fiber.Ctx) error {
	batchID := c.Params("batchId")
	batch, err := h.jobs.GetBatch(c.Context(), batchID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "batch not found"})
	}
	return c.JSON(batch)
}

// GetJob returns one job's record.
func (h *Handler) GetJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	job, err := h.jobs.GetJob(c.Context(), jobID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	return c.JSON(job)
}
