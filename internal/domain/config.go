package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Reference   ReferenceConfig  `mapstructure:"reference"`
	Evaluation  EvaluationConfig `mapstructure:"evaluation"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// ReferenceConfig locates the three reference tables.
// File names are resolved relative to Dir unless absolute.
type ReferenceConfig struct {
	Dir                  string `mapstructure:"dir"`
	ComorbidityFile      string `mapstructure:"comorbidity_file"`
	IndicationFile       string `mapstructure:"indication_file"`
	ClassificationFile   string `mapstructure:"classification_file"`
	ClassificationDriver string `mapstructure:"classification_driver"` // "csv", "sqlite", "postgres", "pgx"
	ClassificationDSN    string `mapstructure:"classification_dsn"`
	ClassificationTable  string `mapstructure:"classification_table"`
	CSVDelimiter         string `mapstructure:"csv_delimiter"`
	CacheSize            int    `mapstructure:"cache_size"`
}

// EvaluationConfig controls the per-patient pipeline.
type EvaluationConfig struct {
	MaxComorbidities int  `mapstructure:"max_comorbidities"`
	StrictSlots      bool `mapstructure:"strict_slots"`
	MedicationSlots  int  `mapstructure:"medication_slots"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// RateLimitConfig configures the token bucket guarding the HTTP API.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Classification source drivers
const (
	DriverCSV      = "csv"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)
