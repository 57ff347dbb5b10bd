package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/merchant-categorizer/internal/api/middleware"
	"github.com/dvloznov/merchant-categorizer/internal/categorizer"
	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/gcsuploader"
	"github.com/dvloznov/merchant-categorizer/internal/importer"
	"github.com/dvloznov/merchant-categorizer/internal/jobs"
	"github.com/dvloznov/merchant-categorizer/internal/reference/inmemory"
)

// Classifier is the part of categorizer.Categorizer the HTTP surface needs.
type Classifier interface {
	ClassifyBatch(ctx context.Context, recs []domain.RawRecord) ([]domain.CategorizedRecord, error)
	Categories() []string
}

// Fetcher reads input files by local path or gs:// URI.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

// CategorizeHandler handles categorization endpoints.
type CategorizeHandler struct {
	classifier Classifier
	publisher  jobs.Publisher
	fetcher    Fetcher
	log        zerolog.Logger
}

// NewCategorizeHandler creates a new categorize handler. fetcher may be nil,
// in which case requests naming a "uri" are rejected.
func NewCategorizeHandler(classifier Classifier, publisher jobs.Publisher, fetcher Fetcher, log zerolog.Logger) *CategorizeHandler {
	return &CategorizeHandler{
		classifier: classifier,
		publisher:  publisher,
		fetcher:    fetcher,
		log:        log,
	}
}

// Categorize handles POST /api/categorize
//
// The body is a JSON record, an array of records, {"records": [...]}, a CSV
// file (Content-Type: text/csv), or {"uri": "gs://...", "format": "csv"}.
func (h *CategorizeHandler) Categorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recs, _, err := h.decodeRecords(ctx, r)
	if err != nil {
		h.writeDecodeError(w, err)
		return
	}

	results, err := h.classifier.ClassifyBatch(ctx, recs)
	if err != nil {
		h.writeClassifyError(w, err)
		return
	}
	if results == nil {
		results = []domain.CategorizedRecord{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
		"failed":  categorizer.CountFailed(results),
	})
}

// EnqueueCategorize handles POST /api/categorize/jobs
func (h *CategorizeHandler) EnqueueCategorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recs, source, err := h.decodeRecords(ctx, r)
	if err != nil {
		h.writeDecodeError(w, err)
		return
	}
	if len(recs) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "At least one record is required")
		return
	}

	job := &jobs.CategorizeJob{
		Source:  source,
		Records: recs,
	}

	// The job outlives the request.
	if err := h.publisher.PublishCategorize(context.WithoutCancel(ctx), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue categorize job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue categorize job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Int("records", len(recs)).Msg("Categorize job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":       job.JobID,
		"status":       job.Status,
		"record_count": len(recs),
	})
}

type uriRequest struct {
	URI    string `json:"uri"`
	Format string `json:"format"`
}

// decodeRecords returns the records of the request and a source label.
func (h *CategorizeHandler) decodeRecords(ctx context.Context, r *http.Request) ([]domain.RawRecord, string, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, maxErr.Limit)
		}
		return nil, "", fmt.Errorf("%w: reading body: %v", errBadRequest, err)
	}

	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "text/csv" {
		recs, err := importer.DecodeCSV(body)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return recs, "api", nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var req uriRequest
		if json.Unmarshal(trimmed, &req) == nil && req.URI != "" {
			return h.fetchRecords(ctx, req)
		}
	}

	recs, err := importer.DecodeJSON(body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return recs, "api", nil
}

func (h *CategorizeHandler) fetchRecords(ctx context.Context, req uriRequest) ([]domain.RawRecord, string, error) {
	if h.fetcher == nil {
		return nil, "", fmt.Errorf("%w: uri input is not enabled", errBadRequest)
	}
	// Only Cloud Storage objects; the server's filesystem is not an input.
	if _, _, err := gcsuploader.SplitGCSURI(req.URI); err != nil {
		return nil, "", fmt.Errorf("%w: uri must be gs://bucket/object", errBadRequest)
	}

	format := importer.FormatFromName(req.URI)
	if req.Format != "" {
		f, err := importer.ParseFormat(req.Format)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", errBadRequest, err)
		}
		format = f
	}

	data, err := h.fetcher.Fetch(ctx, req.URI)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", req.URI, err)
	}
	recs, err := importer.Decode(data, format)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return recs, req.URI, nil
}

func (h *CategorizeHandler) writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBadRequest) {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Error().Err(err).Msg("Failed to read input")
	middleware.WriteError(w, http.StatusBadGateway, "Failed to read input")
}

func (h *CategorizeHandler) writeClassifyError(w http.ResponseWriter, err error) {
	h.log.Error().Err(err).Msg("Failed to categorize batch")
	switch {
	case errors.Is(err, categorizer.ErrReferenceLoad), errors.Is(err, categorizer.ErrEmptyDictionary):
		middleware.WriteError(w, http.StatusServiceUnavailable, "Reference data unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		middleware.WriteError(w, http.StatusGatewayTimeout, "Categorization cancelled")
	default:
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to categorize batch")
	}
}

// TransactionQuerier reads persisted categorized records.
type TransactionQuerier interface {
	QueryByDateRange(ctx context.Context, startDate, endDate time.Time) ([]domain.CategorizedRecord, error)
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	repo TransactionQuerier
	log  zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo TransactionQuerier, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		repo: repo,
		log:  log,
	}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	startDateStr := query.Get("start_date")
	endDateStr := query.Get("end_date")

	var startDate, endDate time.Time
	var err error

	if startDateStr != "" {
		startDate, err = time.Parse("2006-01-02", startDateStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
	} else {
		startDate = time.Now().AddDate(-1, 0, 0) // 1 year ago
	}

	if endDateStr != "" {
		endDate, err = time.Parse("2006-01-02", endDateStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
	} else {
		endDate = time.Now()
	}

	if endDate.Before(startDate) {
		middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	transactions, err := h.repo.QueryByDateRange(ctx, startDate, endDate)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	if transactions == nil {
		transactions = []domain.CategorizedRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	classifier Classifier
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(classifier Classifier) *CategoriesHandler {
	return &CategoriesHandler{classifier: classifier}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := h.classifier.Categories()

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// ReferenceReloader is a reference source that can be re-read at runtime.
type ReferenceReloader interface {
	Reload(ctx context.Context) error
	Stats() inmemory.Stats
	LoadedAt() time.Time
}

// ReferenceHandler handles reference-table endpoints.
type ReferenceHandler struct {
	reloader ReferenceReloader
	log      zerolog.Logger
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(reloader ReferenceReloader, log zerolog.Logger) *ReferenceHandler {
	return &ReferenceHandler{
		reloader: reloader,
		log:      log,
	}
}

// GetReference handles GET /api/reference
func (h *ReferenceHandler) GetReference(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stats":     h.reloader.Stats(),
		"loaded_at": h.reloader.LoadedAt().Format(time.RFC3339),
	})
}

// Reload handles POST /api/reference/reload
func (h *ReferenceHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.reloader.Reload(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Failed to reload reference tables")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to reload reference tables")
		return
	}
	h.GetReference(w, r)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Source: query.Get("source"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
