package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"menuharvest/internal/config"
	"menuharvest/internal/deadletter"
	"menuharvest/internal/harvest"
	"menuharvest/internal/ingest"
	"menuharvest/internal/logger"
	rds "menuharvest/internal/platform/redis"
	tasks "menuharvest/internal/platform/tasks"
	"menuharvest/internal/server"
	"menuharvest/internal/session"
	"menuharvest/internal/worker"
)

func main() {
	cfg := config.Load()
	log.Printf("[menuharvest] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	// Dead letter store (sqlite)
	dlStore, err := deadletter.Open(cfg.DeadLetterDBPath)
	if err != nil {
		log.Fatalf("failed to open dead letter store: %v", err)
	}
	defer dlStore.Close()

	// Browser session manager
	sessionMgr, err := session.NewManager()
	if err != nil {
		log.Fatalf("failed to start browser: %v", err)
	}
	defer sessionMgr.Close()

	// Site profiles merged over defaults
	profiles, err := config.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		log.Fatalf("failed to load site profiles: %v", err)
	}

	// Asynq client and server
	taskClient := tasks.New(redisSvc)
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: cfg.MaxSessions,
		Queues:      map[string]int{"default": 1},
	})

	// Core services
	jobStore := harvest.NewRedisJobStore(redisSvc)
	ingestClient := ingest.NewClient(cfg.IngestURL, cfg.MaxRetries)
	coordinator := harvest.NewCoordinator(cfg, profiles, sessionMgr, jobStore, dlStore, ingestClient, redisSvc)
	enqueuer := harvest.NewEnqueuer(taskClient, jobStore, cfg.TaskMaxRetries)

	// Worker mux
	mux := worker.NewMux()
	mux.HandleFunc(tasks.TaskTypeHarvestBatch, coordinator.HandleBatchTask)

	go func() {
		if err := asynqServer.Start(mux.Mux()); err != nil {
			log.Printf("[worker] stopped: %v\n", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Menu Harvest Engine",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})
	// Serve saved artifacts (diagnostic screenshots) from DATA_DIR under /files
	app.Static("/files", cfg.DataDir)

	deps := server.Dependencies{
		Enqueuer:   enqueuer,
		Jobs:       jobStore,
		DeadLetter: dlStore,
		Redis:      redisSvc,
	}
	healthHandler := server.RegisterRoutes(app, deps)

	// Mark application as ready after all services are initialized
	go func() {
		time.Sleep(5 * time.Second)
		healthHandler.SetReady()
	}()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		asynqServer.Shutdown()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
