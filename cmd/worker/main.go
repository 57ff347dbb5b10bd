package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/merchant-categorizer/internal/app"
	"github.com/dvloznov/merchant-categorizer/internal/config"
	"github.com/dvloznov/merchant-categorizer/internal/gcsuploader"
	"github.com/dvloznov/merchant-categorizer/internal/importer"
	"github.com/dvloznov/merchant-categorizer/internal/jobs"
	"github.com/dvloznov/merchant-categorizer/internal/jobs/inmemory"
	"github.com/dvloznov/merchant-categorizer/internal/logger"
)

// The worker categorizes a set of files concurrently through the job queue
// and writes one NDJSON result file per input.
func main() {
	var inputs []string
	flag.Func("in", "Input file path or gs:// URI (repeatable)", func(s string) error {
		inputs = append(inputs, s)
		return nil
	})
	outPrefix := flag.String("out-prefix", "", "Directory or gs://bucket/prefix for result files (default: alongside each input)")
	flag.Parse()
	inputs = append(inputs, flag.Args()...)

	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log := logger.NewForFormat(cfg.LogFormat, cfg.LogLevel)

	if len(inputs) == 0 {
		log.Fatal().Msg("Usage: worker -in FILE|gs://... [-in ...] [-out-prefix DIR|gs://bucket/prefix]")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize categorizer")
	}
	defer a.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(inputs), cfg.JobWorkers, jobStore)

	log.Info().Int("workers", cfg.JobWorkers).Int("inputs", len(inputs)).Msg("Starting worker service")
	if err := jobQueue.Start(ctx, jobs.NewCategorizeHandler(a.Categorizer, a.Sink())); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	outputs := make(map[string]string, len(inputs))
	for _, in := range inputs {
		job, err := newJob(ctx, a.Storage, in)
		if err != nil {
			log.Error().Err(err).Str("in", in).Msg("Skipping input")
			continue
		}
		if err := jobQueue.PublishCategorize(ctx, job); err != nil {
			log.Fatal().Err(err).Msg("Failed to enqueue job")
		}
		outputs[job.JobID] = outputLocation(in, *outPrefix)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	failed := 0
	pending := len(outputs)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for pending > 0 {
		select {
		case <-quit:
			log.Warn().Int("pending", pending).Msg("Interrupted, abandoning remaining jobs")
			pending = 0
			continue
		case <-ticker.C:
		}

		for jobID, out := range outputs {
			job, err := jobStore.GetJob(ctx, jobID)
			if err != nil {
				continue
			}
			switch job.Status {
			case jobs.JobStatusCompleted:
				if err := writeResults(ctx, a.Storage, out, job); err != nil {
					log.Error().Err(err).Str("out", out).Msg("Failed to write results")
					failed++
				} else {
					log.Info().
						Str("source", job.Source).
						Str("out", out).
						Int("records", job.RecordCount).
						Int("failed", job.FailedCount).
						Msg("Results written")
				}
			case jobs.JobStatusFailed:
				log.Error().Str("source", job.Source).Str("error", job.Error).Msg("Job failed")
				failed++
			default:
				continue
			}
			delete(outputs, jobID)
			pending--
		}
	}

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Int("failed", failed).Msg("Worker service exited")
	if failed > 0 {
		a.Close()
		os.Exit(1)
	}
}

func newJob(ctx context.Context, storage gcsuploader.StorageService, in string) (*jobs.CategorizeJob, error) {
	data, err := storage.Fetch(ctx, in)
	if err != nil {
		return nil, err
	}
	records, err := importer.Decode(data, importer.FormatFromName(in))
	if err != nil {
		return nil, err
	}
	return &jobs.CategorizeJob{Source: in, Records: records}, nil
}

// outputLocation derives "<name>.categorized.jsonl" next to the input, or
// under prefix when one is given.
func outputLocation(in, prefix string) string {
	name := strings.TrimSuffix(in, path.Ext(in)) + ".categorized.jsonl"
	if prefix == "" {
		return name
	}
	base := path.Base(name)
	if gcsuploader.IsGCSURI(in) {
		base = gcsuploader.ExtractFilenameFromGCSURI(name)
	}
	return strings.TrimSuffix(prefix, "/") + "/" + base
}

func writeResults(ctx context.Context, storage gcsuploader.StorageService, out string, job *jobs.CategorizeJob) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range job.Results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	if gcsuploader.IsGCSURI(out) {
		return storage.UploadToGCS(ctx, out, "application/x-ndjson", buf.Bytes())
	}
	return os.WriteFile(out, buf.Bytes(), 0o644)
}
