package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dvloznov/merchant-categorizer/internal/api"
	"github.com/dvloznov/merchant-categorizer/internal/api/handlers"
	"github.com/dvloznov/merchant-categorizer/internal/app"
	"github.com/dvloznov/merchant-categorizer/internal/config"
	"github.com/dvloznov/merchant-categorizer/internal/jobs"
	"github.com/dvloznov/merchant-categorizer/internal/jobs/inmemory"
	"github.com/dvloznov/merchant-categorizer/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.NewForFormat(cfg.LogFormat, cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize categorizer")
	}
	defer a.Close()

	// Warm the reference tables so the first request does not pay for them.
	if _, err := a.Categorizer.Prepare(ctx); err != nil {
		log.Warn().Err(err).Msg("Reference tables not available yet")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStoreWithLimit(cfg.JobMaxFinished)
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, cfg.JobWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.JobWorkers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, jobs.NewCategorizeHandler(a.Categorizer, a.Sink())); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	routes := api.RouterConfig{
		Categorize:   handlers.NewCategorizeHandler(a.Categorizer, jobQueue, a.Storage, log),
		Categories:   handlers.NewCategoriesHandler(a.Categorizer),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
		APIKey:       cfg.APIKey,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}
	if a.Results != nil {
		routes.Transactions = handlers.NewTransactionsHandler(a.Results, log)
	}

	scheduler := cron.New()

	if cfg.JobRetention > 0 {
		_, err := scheduler.AddFunc("@every 10m", func() {
			if removed := jobStore.Prune(time.Now().Add(-cfg.JobRetention)); removed > 0 {
				log.Debug().Int("removed", removed).Msg("Pruned finished jobs")
			}
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule job pruning")
		}
	}

	// Scheduled reload applies to static tables only; BigQuery is read per pass.
	if a.Static != nil {
		routes.Reference = handlers.NewReferenceHandler(a.Static, log)

		if cfg.ReferenceFile != "" && cfg.ReferenceReloadSchedule != "" {
			_, err := scheduler.AddFunc(cfg.ReferenceReloadSchedule, func() {
				reloadCtx, cancel := context.WithTimeout(ctx, time.Minute)
				defer cancel()
				if err := a.Static.Reload(reloadCtx); err != nil {
					log.Error().Err(err).Msg("Scheduled reference reload failed")
				}
			})
			if err != nil {
				log.Fatal().Err(err).Str("schedule", cfg.ReferenceReloadSchedule).Msg("Invalid reload schedule")
			}
			log.Info().Str("schedule", cfg.ReferenceReloadSchedule).Msg("Reference reload scheduled")
		}
	}
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(routes, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight jobs finish before cancelling the workers.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
