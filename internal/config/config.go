package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/forta-classifier/internal/domain"
)

// EnvPrefix prefixes every environment variable read by the manager, e.g.
// FORTA_REFERENCE_DIR for reference.dir.
const EnvPrefix = "FORTA"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	overrides  map[string]any
	config     *domain.Config
}

// Option customizes a Manager.
type Option func(*Manager)

// WithConfigFile reads the given file instead of searching for config.yaml.
func WithConfigFile(path string) Option {
	return func(m *Manager) {
		m.configFile = path
	}
}

// WithOverride sets a key with the highest precedence, e.g. from a command line flag.
func WithOverride(key string, value any) Option {
	return func(m *Manager) {
		m.overrides[key] = value
	}
}

// NewManager creates a new configuration manager
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{overrides: make(map[string]any)}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/forta-classifier/")
	}

	// Set environment variable prefix and enable automatic env binding
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || m.configFile != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for key, value := range m.overrides {
		v.Set(key, value)
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// Reference data defaults
	v.SetDefault("reference.dir", "./data")
	v.SetDefault("reference.comorbidity_file", "COMORBIDITY_MAPPING.json")
	v.SetDefault("reference.indication_file", "FORTA_MAPPING.json")
	v.SetDefault("reference.classification_file", "FORTA_database.csv")
	v.SetDefault("reference.classification_driver", domain.DriverCSV)
	v.SetDefault("reference.classification_dsn", "")
	v.SetDefault("reference.classification_table", "forta_classification")
	v.SetDefault("reference.csv_delimiter", ",")
	v.SetDefault("reference.cache_size", 8)

	// Evaluation defaults
	v.SetDefault("evaluation.max_comorbidities", 20)
	v.SetDefault("evaluation.strict_slots", false)
	v.SetDefault("evaluation.medication_slots", domain.DefaultMedicationSlots)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Rate limiting defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50.0)
	v.SetDefault("rate_limit.burst", 100)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetReferenceConfig returns the reference data configuration
func (m *Manager) GetReferenceConfig() *domain.ReferenceConfig {
	return &m.config.Reference
}

// GetEvaluationConfig returns the evaluation configuration
func (m *Manager) GetEvaluationConfig() *domain.EvaluationConfig {
	return &m.config.Evaluation
}

// ConfigFileUsed returns the configuration file that was read, if any.
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d: %w", config.Server.Port, domain.ErrInvalidConfiguration)
	}
	if config.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive: %w", domain.ErrInvalidConfiguration)
	}

	// Validate reference configuration
	switch config.Reference.ClassificationDriver {
	case domain.DriverCSV:
		if config.Reference.ClassificationFile == "" {
			return fmt.Errorf("classification file is required for the csv driver: %w", domain.ErrInvalidConfiguration)
		}
	case domain.DriverSQLite, domain.DriverPostgres, domain.DriverPgx:
		if config.Reference.ClassificationDSN == "" {
			return fmt.Errorf("classification DSN is required for the %s driver: %w", config.Reference.ClassificationDriver, domain.ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("unsupported classification driver %q: %w", config.Reference.ClassificationDriver, domain.ErrInvalidConfiguration)
	}
	if config.Reference.ComorbidityFile == "" || config.Reference.IndicationFile == "" {
		return fmt.Errorf("comorbidity and indication files are required: %w", domain.ErrInvalidConfiguration)
	}

	// Validate evaluation configuration
	if config.Evaluation.MaxComorbidities <= 0 {
		return fmt.Errorf("max comorbidities must be positive, got %d: %w", config.Evaluation.MaxComorbidities, domain.ErrInvalidConfiguration)
	}
	if config.Evaluation.MedicationSlots <= 0 {
		return fmt.Errorf("medication slots must be positive, got %d: %w", config.Evaluation.MedicationSlots, domain.ErrInvalidConfiguration)
	}

	// Validate rate limiting
	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerSecond <= 0 || config.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive requests per second and burst: %w", domain.ErrInvalidConfiguration)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level %q: %w", config.Logging.Level, domain.ErrInvalidConfiguration)
	}
	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q: %w", config.Logging.Format, domain.ErrInvalidConfiguration)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
