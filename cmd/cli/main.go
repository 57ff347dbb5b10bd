package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/merchant-categorizer/internal/app"
	"github.com/dvloznov/merchant-categorizer/internal/categorizer"
	"github.com/dvloznov/merchant-categorizer/internal/config"
	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/gcsuploader"
	"github.com/dvloznov/merchant-categorizer/internal/importer"
	"github.com/dvloznov/merchant-categorizer/internal/logger"
)

const dateLayout = "2006-01-02"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	// Logs go to stderr so categorize output can be piped.
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().
		Level(logger.ParseLevel(cfg.LogLevel))

	switch os.Args[1] {
	case "categorize":
		runCategorize(cfg, log)
	case "explain":
		runExplain(cfg, log)
	case "reference":
		runReference(cfg, log)
	case "transactions":
		runTransactions(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Merchant Categorizer CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  categorize     Categorize a JSON or CSV file (local path or gs:// URI)")
	fmt.Println("  explain        Categorize a single description and show the evidence")
	fmt.Println("  reference      Show the loaded reference tables")
	fmt.Println("  transactions   List persisted transactions in a date range")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nConfiguration is read from the environment (REFERENCE_SOURCE, REFERENCE_FILE, BQ_PROJECT, ...).")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

func setup(cfg *config.Config, log zerolog.Logger, timeout time.Duration) (context.Context, context.CancelFunc, *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = logger.WithContext(ctx, log)

	if err := cfg.Validate(); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to initialize categorizer")
	}
	return ctx, cancel, a
}

func runCategorize(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("categorize", flag.ExitOnError)
	in := fs.String("in", "", "Input file path or gs:// URI")
	format := fs.String("format", "", "Input format: json or csv (default: from extension)")
	out := fs.String("out", "", "Output file path or gs:// URI (default: stdout)")
	persist := fs.Bool("persist", cfg.PersistResults, "Write results to BigQuery")
	fs.Parse(os.Args[2:])

	if *in == "" {
		log.Fatal().Msg("Usage: cli categorize -in FILE|gs://bucket/object [-format json|csv] [-out FILE|gs://...]")
	}

	cfg.PersistResults = *persist
	ctx, cancel, a := setup(cfg, log, 10*time.Minute)
	defer cancel()
	defer a.Close()

	inputFormat := importer.FormatFromName(*in)
	if *format != "" {
		var err error
		if inputFormat, err = importer.ParseFormat(*format); err != nil {
			log.Fatal().Err(err).Msg("Invalid -format")
		}
	}

	data, err := a.Storage.Fetch(ctx, *in)
	if err != nil {
		log.Fatal().Err(err).Str("in", *in).Msg("Failed to read input")
	}
	records, err := importer.Decode(data, inputFormat)
	if err != nil {
		log.Fatal().Err(err).Str("in", *in).Msg("Failed to decode input")
	}

	log.Info().Str("in", *in).Int("records", len(records)).Msg("Categorizing")

	results, err := a.Categorizer.ClassifyBatch(ctx, records)
	if err != nil {
		log.Fatal().Err(err).Msg("Categorization failed")
	}
	failed := categorizer.CountFailed(results)

	if sink := a.Sink(); sink != nil {
		runID := uuid.NewString()
		if err := sink.SaveBatch(ctx, runID, *in, results, failed); err != nil {
			log.Fatal().Err(err).Msg("Failed to persist results")
		}
		log.Info().Str("run_id", runID).Msg("Results persisted")
	}

	var buf bytes.Buffer
	if err := writeJSONLines(&buf, results); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode results")
	}
	if err := writeOutput(ctx, a.Storage, *out, buf.Bytes()); err != nil {
		log.Fatal().Err(err).Str("out", *out).Msg("Failed to write results")
	}

	log.Info().
		Int("records", len(results)).
		Int("failed", failed).
		Msg("Categorization completed")
}

func writeJSONLines(w io.Writer, results []domain.CategorizedRecord) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func writeOutput(ctx context.Context, storage gcsuploader.StorageService, out string, data []byte) error {
	switch {
	case out == "" || out == "-":
		_, err := os.Stdout.Write(data)
		return err
	case gcsuploader.IsGCSURI(out):
		return storage.UploadToGCS(ctx, out, "application/x-ndjson", data)
	default:
		return os.WriteFile(out, data, 0o644)
	}
}

func runExplain(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("explain", flag.ExitOnError)
	description := fs.String("description", "", "Transaction description as printed by the bank")
	amount := fs.String("amount", "-1", "Signed amount; negative is money out")
	date := fs.String("date", time.Now().Format(dateLayout), "Transaction date (YYYY-MM-DD)")
	fs.Parse(os.Args[2:])

	if *description == "" {
		log.Fatal().Msg("Usage: cli explain -description TEXT [-amount -12.34] [-date YYYY-MM-DD]")
	}
	value, ok := importer.ParseAmountString(*amount)
	if !ok {
		log.Fatal().Str("amount", *amount).Msg("Invalid -amount")
	}

	ctx, cancel, a := setup(cfg, log, time.Minute)
	defer cancel()
	defer a.Close()

	result, err := a.Categorizer.Classify(ctx, domain.RawRecord{
		Date:        *date,
		Description: *description,
		Amount:      value,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Categorization failed")
	}

	printRecord(result)
}

func printRecord(r domain.CategorizedRecord) {
	fmt.Println("\n=== Categorization ===")
	fmt.Printf("Description: %s\n", r.RawDescription)
	fmt.Printf("Kind:        %s (%s)\n", r.Kind, r.Direction)
	fmt.Printf("Amount:      %s\n", r.Amount.StringFixed(2))
	fmt.Printf("Merchant:    %s\n", orDash(r.CanonicalMerchantName))
	fmt.Printf("Normalized:  %s\n", orDash(r.MerchantNormalized))
	fmt.Printf("Category:    %s\n", r.Category)
	if r.RegistryID != nil {
		fmt.Printf("Registry ID: %s\n", *r.RegistryID)
	}
	fmt.Printf("Confidence:  %.2f\n", r.Confidence)
	fmt.Printf("Evidence:    %s\n", strings.Join(r.EvidenceChain, " -> "))
	fmt.Println()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runReference(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("reference", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel, a := setup(cfg, log, time.Minute)
	defer cancel()
	defer a.Close()

	pass, err := a.Categorizer.Prepare(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load reference tables")
	}

	fmt.Println("\n=== Reference Tables ===")
	fmt.Printf("Source:      %s\n", cfg.ReferenceSource)
	fmt.Printf("Scope:       %s\n", cfg.DictionaryScope)
	fmt.Printf("Dictionary:  %d entries\n", pass.DictionarySize())
	if a.Static != nil {
		stats := a.Static.Stats()
		fmt.Printf("Registry:    %d entities\n", stats.RegistryEntities)
		fmt.Printf("Mappings:    %d activity prefixes\n", stats.ActivityMappings)
		fmt.Printf("Loaded at:   %s\n", a.Static.LoadedAt().Format(time.RFC3339))
	}
	fmt.Printf("Categories:  %s\n", strings.Join(a.Categorizer.Categories(), ", "))
	fmt.Println()
}

func runTransactions(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("transactions", flag.ExitOnError)
	start := fs.String("start", time.Now().AddDate(0, -1, 0).Format(dateLayout), "Start date (YYYY-MM-DD)")
	end := fs.String("end", time.Now().Format(dateLayout), "End date (YYYY-MM-DD)")
	fs.Parse(os.Args[2:])

	startDate, err := time.Parse(dateLayout, *start)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -start")
	}
	endDate, err := time.Parse(dateLayout, *end)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -end")
	}

	cfg.PersistResults = true
	ctx, cancel, a := setup(cfg, log, 5*time.Minute)
	defer cancel()
	defer a.Close()

	txns, err := a.Results.QueryByDateRange(ctx, startDate, endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query transactions")
	}

	fmt.Printf("\n=== Transactions (%d) ===\n", len(txns))
	for i, t := range txns {
		fmt.Printf("\n%d. %s\n", i+1, t.RawDescription)
		fmt.Printf("   Date:     %s\n", t.Date)
		fmt.Printf("   Amount:   %s\n", t.Amount.StringFixed(2))
		fmt.Printf("   Merchant: %s\n", orDash(t.CanonicalMerchantName))
		fmt.Printf("   Category: %s (%.2f)\n", t.Category, t.Confidence)
		if t.Balance != nil {
			fmt.Printf("   Balance:  %s\n", t.Balance.StringFixed(2))
		}
	}
	fmt.Println()
}
