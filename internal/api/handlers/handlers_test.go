package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/merchant-categorizer/internal/categorizer"
	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/jobs"
	jobsmem "github.com/dvloznov/merchant-categorizer/internal/jobs/inmemory"
	"github.com/dvloznov/merchant-categorizer/internal/logger"
	"github.com/dvloznov/merchant-categorizer/internal/reference/inmemory"
)

var testLog = logger.NewWithWriter(io.Discard)

func newCategorizer() *categorizer.Categorizer {
	provider := inmemory.NewProvider(inmemory.ProviderConfig{})
	return categorizer.New(provider, provider, categorizer.Options{})
}

type failingClassifier struct {
	err error
}

func (f failingClassifier) ClassifyBatch(ctx context.Context, recs []domain.RawRecord) ([]domain.CategorizedRecord, error) {
	return nil, f.err
}

func (f failingClassifier) Categories() []string { return nil }

type mapFetcher map[string]string

func (m mapFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	data, ok := m[location]
	if !ok {
		return nil, fmt.Errorf("object %s not found", location)
	}
	return []byte(data), nil
}

type categorizeResponse struct {
	Results []domain.CategorizedRecord `json:"results"`
	Count   int                        `json:"count"`
	Failed  int                        `json:"failed"`
}

func postCategorize(t *testing.T, h *CategorizeHandler, contentType, body string) (*httptest.ResponseRecorder, categorizeResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/categorize", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.Categorize(rec, req)

	var resp categorizeResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestCategorize_JSONArray(t *testing.T) {
	h := NewCategorizeHandler(newCategorizer(), nil, nil, testLog)

	rec, resp := postCategorize(t, h, "application/json", `[
		{"date": "2024-03-05", "description": "COMPRA CARTAO NETFLIX", "amount": -39.90},
		{"date": "2024-03-06", "description": "", "amount": "abc"}
	]`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, categorizer.CategorySubscriptions, resp.Results[0].Category)
	assert.Equal(t, "Netflix", resp.Results[0].CanonicalMerchantName)
	assert.True(t, decimal.RequireFromString("-39.90").Equal(resp.Results[0].Amount))
	// The damaged record still gets a category.
	assert.Equal(t, categorizer.DefaultCategory, resp.Results[1].Category)
}

func TestCategorize_SingleRecordAndCSV(t *testing.T) {
	h := NewCategorizeHandler(newCategorizer(), nil, nil, testLog)

	rec, resp := postCategorize(t, h, "", `{"description": "UBER TRIP", "amount": "-23,50"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, categorizer.CategoryTransport, resp.Results[0].Category)

	rec, resp = postCategorize(t, h, "text/csv; charset=utf-8", "data;historico;valor\n05/03/2024;COMPRA CARTAO SPOTIFY;-21,90\n")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "2024-03-05", resp.Results[0].Date)
	assert.Equal(t, categorizer.CategorySubscriptions, resp.Results[0].Category)
}

func TestCategorize_URI(t *testing.T) {
	fetcher := mapFetcher{"gs://statements/march.csv": "date,description,amount\n2024-03-05,COMPRA CARTAO IFOOD,-45.00\n"}
	h := NewCategorizeHandler(newCategorizer(), nil, fetcher, testLog)

	rec, resp := postCategorize(t, h, "application/json", `{"uri": "gs://statements/march.csv"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, categorizer.CategoryFood, resp.Results[0].Category)

	rec, _ = postCategorize(t, h, "application/json", `{"uri": "gs://statements/missing.csv"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	noFetcher := NewCategorizeHandler(newCategorizer(), nil, nil, testLog)
	rec, _ = postCategorize(t, noFetcher, "application/json", `{"uri": "gs://statements/march.csv"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategorize_URIRejectsLocalPaths(t *testing.T) {
	fetcher := mapFetcher{
		"/srv/app/secrets.json":    `[{"description": "DB_PASSWORD=hunter2", "amount": 1}]`,
		"file:///srv/app/rows.csv": "description,amount\nSECRET,1\n",
	}
	h := NewCategorizeHandler(newCategorizer(), nil, fetcher, testLog)

	for _, uri := range []string{"/srv/app/secrets.json", "file:///srv/app/rows.csv", "/srv/app/missing.json", "gs://bucket-only"} {
		t.Run(uri, func(t *testing.T) {
			rec, _ := postCategorize(t, h, "application/json", `{"uri": "`+uri+`"}`)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotContains(t, rec.Body.String(), "hunter2")
		})
	}
}

func TestCategorize_Errors(t *testing.T) {
	tests := []struct {
		name       string
		classifier Classifier
		body       string
		want       int
	}{
		{"malformed body", newCategorizer(), `[{"description": "x"`, http.StatusBadRequest},
		{"reference load", failingClassifier{err: fmt.Errorf("Prepare: %w", categorizer.ErrReferenceLoad)}, `[]`, http.StatusServiceUnavailable},
		{"empty dictionary", failingClassifier{err: categorizer.ErrEmptyDictionary}, `[]`, http.StatusServiceUnavailable},
		{"cancelled", failingClassifier{err: context.Canceled}, `[]`, http.StatusGatewayTimeout},
		{"other", failingClassifier{err: errors.New("boom")}, `[]`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCategorizeHandler(tt.classifier, nil, nil, testLog)
			rec, _ := postCategorize(t, h, "application/json", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestEnqueueCategorize(t *testing.T) {
	store := jobsmem.NewStore()
	queue := jobsmem.NewQueue(10, 1, store)
	defer queue.Close()

	h := NewCategorizeHandler(newCategorizer(), queue, nil, testLog)

	req := httptest.NewRequest(http.MethodPost, "/api/categorize/jobs",
		strings.NewReader(`{"records": [{"description": "COMPRA CARTAO NETFLIX", "amount": -39.90}]}`))
	rec := httptest.NewRecorder()
	h.EnqueueCategorize(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		JobID       string         `json:"job_id"`
		Status      jobs.JobStatus `json:"status"`
		RecordCount int            `json:"record_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, jobs.JobStatusPending, resp.Status)
	assert.Equal(t, 1, resp.RecordCount)

	stored, err := store.GetJob(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "api", stored.Source)

	rec = httptest.NewRecorder()
	h.EnqueueCategorize(rec, httptest.NewRequest(http.MethodPost, "/api/categorize/jobs", strings.NewReader(`[]`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueCategorize_QueueClosed(t *testing.T) {
	queue := jobsmem.NewQueue(1, 1, nil)
	require.NoError(t, queue.Close())

	h := NewCategorizeHandler(newCategorizer(), queue, nil, testLog)
	rec := httptest.NewRecorder()
	h.EnqueueCategorize(rec, httptest.NewRequest(http.MethodPost, "/api/categorize/jobs",
		strings.NewReader(`[{"description": "X", "amount": 1}]`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeTransactions struct {
	start, end time.Time
	recs       []domain.CategorizedRecord
	err        error
}

func (f *fakeTransactions) QueryByDateRange(ctx context.Context, startDate, endDate time.Time) ([]domain.CategorizedRecord, error) {
	f.start, f.end = startDate, endDate
	return f.recs, f.err
}

func TestListTransactions(t *testing.T) {
	repo := &fakeTransactions{}
	h := NewTransactionsHandler(repo, testLog)

	rec := httptest.NewRecorder()
	h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions?start_date=2024-03-01&end_date=2024-03-31", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, "2024-03-01", repo.start.Format("2006-01-02"))
	assert.Equal(t, "2024-03-31", repo.end.Format("2006-01-02"))

	for _, q := range []string{"start_date=03/01/2024", "end_date=x", "start_date=2024-04-01&end_date=2024-03-01"} {
		rec = httptest.NewRecorder()
		h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}

	repo.err = errors.New("bigquery down")
	rec = httptest.NewRecorder()
	h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListCategories(t *testing.T) {
	h := NewCategoriesHandler(newCategorizer())

	rec := httptest.NewRecorder()
	h.ListCategories(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Categories []string `json:"categories"`
		Count      int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Categories, categorizer.DefaultCategory)
	assert.Equal(t, len(resp.Categories), resp.Count)
}

func TestReferenceHandler(t *testing.T) {
	provider := inmemory.NewProvider(inmemory.ProviderConfig{
		Source:  "gs://reference/tables.yaml",
		Fetcher: mapFetcher{},
	})
	h := NewReferenceHandler(provider, testLog)

	rec := httptest.NewRecorder()
	h.GetReference(rec, httptest.NewRequest(http.MethodGet, "/api/reference", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dictionary_entries"`)

	// The fetcher has no such object, so the reload fails and the tables stay.
	rec = httptest.NewRecorder()
	h.Reload(rec, httptest.NewRequest(http.MethodPost, "/api/reference/reload", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Greater(t, provider.Stats().DictionaryEntries, 0)
}

func TestReferenceHandler_ReloadSucceeds(t *testing.T) {
	fetcher := mapFetcher{"tables.yaml": `
dictionary:
  default:
    - pattern: PADOCA
      canonical_name: Padoca do Zé
      category: Alimentação
      confidence: 0.97
registry: []
`}
	provider := inmemory.NewProvider(inmemory.ProviderConfig{Source: "tables.yaml", Fetcher: fetcher})
	h := NewReferenceHandler(provider, testLog)

	rec := httptest.NewRecorder()
	h.Reload(rec, httptest.NewRequest(http.MethodPost, "/api/reference/reload", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, provider.Stats().DictionaryEntries)
}

func TestJobsHandler(t *testing.T) {
	store := jobsmem.NewStore()
	ctx := context.Background()
	require.NoError(t, store.SaveJob(ctx, &jobs.CategorizeJob{JobID: "job-1", Source: "api", Status: jobs.JobStatusCompleted, CreatedAt: time.Now()}))
	require.NoError(t, store.SaveJob(ctx, &jobs.CategorizeJob{JobID: "job-2", Source: "cli", Status: jobs.JobStatusFailed, CreatedAt: time.Now()}))

	h := NewJobsHandler(store, testLog)

	rec := httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil), "job-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"job_id":"job-1"`)

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil), "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=failed&limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Jobs  []jobs.CategorizeJob `json:"jobs"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "job-2", resp.Jobs[0].JobID)
}
