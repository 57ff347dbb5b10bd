// Package api assembles the HTTP surface of the categorizer service.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/merchant-categorizer/internal/api/handlers"
	"github.com/dvloznov/merchant-categorizer/internal/api/middleware"
)

// DefaultMaxBodyBytes caps request bodies when RouterConfig leaves it zero.
const DefaultMaxBodyBytes = 10 << 20

// RouterConfig lists the handlers to mount. Nil optional handlers leave
// their routes unregistered.
type RouterConfig struct {
	Categorize *handlers.CategorizeHandler
	Categories *handlers.CategoriesHandler
	Jobs       *handlers.JobsHandler

	// Transactions is set only when results are persisted.
	Transactions *handlers.TransactionsHandler
	// Reference is set only for reloadable reference sources.
	Reference *handlers.ReferenceHandler

	APIKey       string
	MaxBodyBytes int64
}

// NewRouter registers the routes and wraps them in the middleware chain.
func NewRouter(cfg RouterConfig, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/categorize", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			cfg.Categorize.Categorize(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categorize/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			cfg.Categorize.EnqueueCategorize(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			cfg.Categories.ListCategories(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			cfg.Jobs.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			cfg.Jobs.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	if cfg.Transactions != nil {
		mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				cfg.Transactions.ListTransactions(w, r)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		})
	}

	if cfg.Reference != nil {
		mux.HandleFunc("/api/reference", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				cfg.Reference.GetReference(w, r)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		})

		mux.HandleFunc("/api/reference/reload", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				cfg.Reference.Reload(w, r)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		})
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(cfg.APIKey)(
						middleware.BodyLimit(maxBody)(mux),
					),
				),
			),
		),
	)
}
