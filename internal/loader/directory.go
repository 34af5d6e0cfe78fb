package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/rules"
)

// Default reference file names inside the reference directory.
const (
	DefaultComorbidityFile    = "COMORBIDITY_MAPPING.json"
	DefaultIndicationFile     = "FORTA_MAPPING.json"
	DefaultClassificationFile = "FORTA_database.csv"
)

// CSVFileSource reads the classification table from a CSV file on every call.
type CSVFileSource struct {
	Path    string
	Options CSVOptions
}

// LoadClassification implements domain.ClassificationSource.
func (s CSVFileSource) LoadClassification(ctx context.Context) ([]domain.ClassificationRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open classification table: %w", err)
	}
	defer f.Close()

	opts := s.Options
	if opts.Source == "" {
		opts.Source = filepath.Base(s.Path)
	}
	return LoadClassificationCSV(f, opts)
}

// Loader assembles reference data from configured files and databases.
type Loader struct {
	logger *logrus.Logger
}

// NewLoader creates a reference data loader.
func NewLoader(logger *logrus.Logger) *Loader {
	return &Loader{logger: logger}
}

// LoadDirectory loads the reference data described by cfg with a one-off loader.
func LoadDirectory(ctx context.Context, logger *logrus.Logger, cfg domain.ReferenceConfig) (*rules.ReferenceData, error) {
	return NewLoader(logger).Load(ctx, cfg)
}

// Load reads all three tables, validates them and logs structural warnings.
func (l *Loader) Load(ctx context.Context, cfg domain.ReferenceConfig) (*rules.ReferenceData, error) {
	startTime := time.Now()
	cfg = withDefaultFiles(cfg)

	comorbidityPath := resolvePath(cfg.Dir, cfg.ComorbidityFile)
	comorbidities, err := loadComorbidityFile(comorbidityPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load comorbidity mapping: %w", err)
	}

	indicationPath := resolvePath(cfg.Dir, cfg.IndicationFile)
	indications, err := loadIndicationFile(indicationPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load indication mapping: %w", err)
	}

	source, closeSource, err := l.classificationSource(cfg)
	if err != nil {
		return nil, err
	}
	defer closeSource()

	classification, err := source.LoadClassification(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load classification table: %w", err)
	}

	reference, err := rules.NewReferenceData(comorbidities, indications, classification, nil)
	if err != nil {
		return nil, err
	}

	warnings := reference.Validate()
	for _, w := range warnings {
		l.logger.WithFields(logrus.Fields{
			"kind":    w.Kind,
			"subject": w.Subject,
		}).Warn(w.Message)
	}

	l.logger.WithFields(logrus.Fields{
		"comorbidity_rules":   comorbidities.Len(),
		"indication_labels":   len(indications),
		"classification_rows": len(classification),
		"warnings":            len(warnings),
		"load_time":           time.Since(startTime),
	}).Info("Reference data loaded")

	return reference, nil
}

func (l *Loader) classificationSource(cfg domain.ReferenceConfig) (domain.ClassificationSource, func(), error) {
	switch cfg.ClassificationDriver {
	case "", domain.DriverCSV:
		delimiter, err := ParseDelimiter(cfg.CSVDelimiter)
		if err != nil {
			return nil, nil, err
		}
		return CSVFileSource{
			Path:    resolvePath(cfg.Dir, cfg.ClassificationFile),
			Options: CSVOptions{Delimiter: delimiter},
		}, func() {}, nil
	case domain.DriverSQLite, domain.DriverPostgres, domain.DriverPgx:
		source, err := OpenSQLSource(cfg.ClassificationDriver, cfg.ClassificationDSN, cfg.ClassificationTable)
		if err != nil {
			return nil, nil, err
		}
		return source, func() {
			if err := source.Close(); err != nil {
				l.logger.WithError(err).Warn("Failed to close classification database")
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported classification driver %q: %w", cfg.ClassificationDriver, domain.ErrInvalidConfiguration)
	}
}

// ParseDelimiter converts a configured delimiter into a rune. Empty selects ','; "tab" and
// "\t" select a tab.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("csv delimiter must be a single character, got %q: %w", s, domain.ErrInvalidConfiguration)
	}
	return r, nil
}

func withDefaultFiles(cfg domain.ReferenceConfig) domain.ReferenceConfig {
	if cfg.ComorbidityFile == "" {
		cfg.ComorbidityFile = DefaultComorbidityFile
	}
	if cfg.IndicationFile == "" {
		cfg.IndicationFile = DefaultIndicationFile
	}
	if cfg.ClassificationFile == "" {
		cfg.ClassificationFile = DefaultClassificationFile
	}
	return cfg
}

func resolvePath(dir, name string) string {
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func loadComorbidityFile(path string) (*rules.ComorbidityTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if isYAML(path) {
		return LoadComorbidityTableYAML(f)
	}
	return LoadComorbidityTableJSON(f)
}

func loadIndicationFile(path string) (rules.IndicationTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if isYAML(path) {
		return LoadIndicationTableYAML(f)
	}
	return LoadIndicationTableJSON(f)
}
