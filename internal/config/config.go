// Package config reads service and CLI settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Reference sources.
const (
	ReferenceStatic   = "static"
	ReferenceBigQuery = "bigquery"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every setting of the api and cli commands.
type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// APIKey protects the HTTP API when set.
	APIKey       string `env:"API_KEY"`
	MaxBodyBytes int64  `env:"MAX_BODY_BYTES" envDefault:"10485760"`

	// ReferenceSource selects where the dictionary and registry come from.
	ReferenceSource string `env:"REFERENCE_SOURCE" envDefault:"static"`
	// ReferenceFile is an optional YAML path or gs:// URI for the static source.
	ReferenceFile           string `env:"REFERENCE_FILE"`
	ReferenceReloadSchedule string `env:"REFERENCE_RELOAD_SCHEDULE" envDefault:"@every 15m"`
	RegistryIndexed         bool   `env:"REGISTRY_INDEXED" envDefault:"false"`

	DictionaryScope         string  `env:"DICTIONARY_SCOPE" envDefault:"default"`
	DefaultCategory         string  `env:"DEFAULT_CATEGORY" envDefault:"Outros"`
	DictionarySkipThreshold float64 `env:"DICTIONARY_SKIP_THRESHOLD" envDefault:"0.95"`
	RegistryThreshold       float64 `env:"REGISTRY_THRESHOLD" envDefault:"0.75"`

	BQProject      string `env:"BQ_PROJECT"`
	BQDataset      string `env:"BQ_DATASET" envDefault:"finance"`
	PersistResults bool   `env:"PERSIST_RESULTS" envDefault:"false"`

	BatchWorkers int `env:"BATCH_WORKERS" envDefault:"1"`
	JobWorkers   int `env:"JOB_WORKERS" envDefault:"5"`
	JobQueueSize int `env:"JOB_QUEUE_SIZE" envDefault:"100"`
	// JobRetention is how long finished jobs stay queryable.
	JobRetention   time.Duration `env:"JOB_RETENTION" envDefault:"24h"`
	JobMaxFinished int           `env:"JOB_MAX_FINISHED" envDefault:"1000"`
}

// Load parses the process environment, or opts.Environment when given, and
// validates the result.
func Load(opts ...env.Options) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg, opts...); err != nil {
		return nil, fmt.Errorf("Load: parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.ReferenceSource {
	case ReferenceStatic:
	case ReferenceBigQuery:
		if c.BQProject == "" {
			return fmt.Errorf("%w: REFERENCE_SOURCE=bigquery requires BQ_PROJECT", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown REFERENCE_SOURCE %q", ErrInvalidConfig, c.ReferenceSource)
	}
	if c.PersistResults && c.BQProject == "" {
		return fmt.Errorf("%w: PERSIST_RESULTS requires BQ_PROJECT", ErrInvalidConfig)
	}
	if c.DictionarySkipThreshold <= 0 || c.DictionarySkipThreshold > 1 {
		return fmt.Errorf("%w: DICTIONARY_SKIP_THRESHOLD must be in (0,1], got %v", ErrInvalidConfig, c.DictionarySkipThreshold)
	}
	if c.RegistryThreshold <= 0 || c.RegistryThreshold > 1 {
		return fmt.Errorf("%w: REGISTRY_THRESHOLD must be in (0,1], got %v", ErrInvalidConfig, c.RegistryThreshold)
	}
	if c.BatchWorkers < 1 || c.JobWorkers < 1 || c.JobQueueSize < 1 || c.MaxBodyBytes < 1 {
		return fmt.Errorf("%w: worker, queue and body sizes must be positive", ErrInvalidConfig)
	}
	if c.JobRetention < 0 {
		return fmt.Errorf("%w: JOB_RETENTION must not be negative", ErrInvalidConfig)
	}
	return nil
}

// NeedsBigQuery reports whether any component talks to BigQuery.
func (c *Config) NeedsBigQuery() bool {
	return c.ReferenceSource == ReferenceBigQuery || c.PersistResults
}
