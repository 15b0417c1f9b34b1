package deadletter

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"menuharvest/internal/logger"
)

// Handler exposes the dead letter review surface: list what is stuck,
// inspect one entry, mark it resolved, and see aggregate counts.
type Handler struct {
	store *Store
	log   *logger.Logger
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store, log: logger.New("DeadLetterAPI")}
}

// List returns unresolved entries, optionally filtered by source and
// error type.
func (h *Handler) List(c *fiber.Ctx) error {
	filter := Filter{
		Source:    c.Query("source"),
		ErrorType: ErrorType(c.Query("error_type")),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be a positive integer"})
		}
		filter.Limit = n
	}
	entries, err := h.store.ListUnresolved(c.Context(), filter)
	if err != nil {
		h.log.LogErrorf("list dead letters: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list dead letters"})
	}
	return c.JSON(fiber.Map{"entries": entries, "count": len(entries)})
}

// Get returns one entry by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid id"})
	}
	entry, err := h.store.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "dead letter not found"})
		}
		h.log.LogErrorf("get dead letter %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load dead letter"})
	}
	return c.JSON(entry)
}

type resolveRequest struct {
	Resolution Resolution `json:"resolution"`
	ResolvedBy string     `json:"resolved_by"`
	Notes      string     `json:"notes"`
}

// Resolve marks an entry handled. Resolving twice is rejected with 409:
// the first resolution is the record of what actually happened.
func (h *Handler) Resolve(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid id"})
	}
	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	entry, err := h.store.Resolve(c.Context(), id, req.Resolution, req.ResolvedBy, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidResolution):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "dead letter not found"})
		case errors.Is(err, ErrAlreadyResolved):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "dead letter already resolved"})
		default:
			h.log.LogErrorf("resolve dead letter %d: %v", id, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve dead letter"})
		}
	}
	return c.JSON(entry)
}

// Stats returns unresolved counts grouped by error type.
func (h *Handler) Stats(c *fiber.Ctx) error {
	stats, err := h.store.StatsByErrorType(c.Context())
	if err != nil {
		h.log.LogErrorf("dead letter stats: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to compute stats"})
	}
	return c.JSON(fiber.Map{"by_error_type": stats})
}
