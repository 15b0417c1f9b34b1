package server

import (
	"github.com/gofiber/fiber/v2"

	"menuharvest/internal/deadletter"
	"menuharvest/internal/harvest"
	"menuharvest/internal/health"
	"menuharvest/internal/platform/redis"
)

type Dependencies struct {
	Enqueuer   *harvest.Enqueuer
	Jobs       harvest.JobStore
	DeadLetter *deadletter.Store
	Redis      *redis.Service
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	// Health endpoints
	healthHandler := health.NewHealthHandler(map[string]health.Checker{
		"redis":       d.Redis.HealthCheck,
		"dead_letter": d.DeadLetter.HealthCheck,
	})
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	harvestHandler := harvest.NewHandler(d.Enqueuer, d.Jobs)
	api.Post("/harvest", harvestHandler.Submit)
	api.Get("/harvest/:batchId", harvestHandler.GetBatch)
	api.Get("/jobs/:jobId", harvestHandler.GetJob)

	dlHandler := deadletter.NewHandler(d.DeadLetter)
	api.Get("/deadletters", dlHandler.List)
	api.Get("/deadletters/stats", dlHandler.Stats)
	api.Get("/deadletters/:id", dlHandler.Get)
	api.Post("/deadletters/:id/resolve", dlHandler.Resolve)

	return healthHandler
}
