package loader

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/normalize"
	"github.com/forta-classifier/internal/rules"
)

// DefaultClassificationTable is the table queried when none is configured.
const DefaultClassificationTable = "forta_classification"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSource reads the FORTA classification table from a relational database.
// The table needs the columns substance, indication and rating.
type SQLSource struct {
	db    *sql.DB
	table string
	owned bool
}

// OpenSQLSource opens a database with driver "sqlite", "postgres" (lib/pq) or "pgx".
func OpenSQLSource(driver, dsn, table string) (*SQLSource, error) {
	switch driver {
	case domain.DriverSQLite, domain.DriverPostgres, domain.DriverPgx:
	default:
		return nil, fmt.Errorf("unsupported classification driver %q: %w", driver, domain.ErrInvalidConfiguration)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	source, err := NewSQLSource(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	source.owned = true
	return source, nil
}

// NewSQLSource wraps an open database. The caller keeps ownership of db.
func NewSQLSource(db *sql.DB, table string) (*SQLSource, error) {
	if table == "" {
		table = DefaultClassificationTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q: %w", table, domain.ErrInvalidConfiguration)
	}
	return &SQLSource{db: db, table: table}, nil
}

// LoadClassification implements domain.ClassificationSource.
func (s *SQLSource) LoadClassification(ctx context.Context) ([]domain.ClassificationRow, error) {
	query := fmt.Sprintf("SELECT substance, indication, rating FROM %s", s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query classification table: %w", err)
	}
	defer rows.Close()

	table := make(rules.ClassificationTable, 0)
	for rows.Next() {
		var substance, indication, rating sql.NullString
		if err := rows.Scan(&substance, &indication, &rating); err != nil {
			return nil, fmt.Errorf("failed to scan classification row: %w", err)
		}
		table = append(table, domain.ClassificationRow{
			Substance:  normalize.Text(strings.TrimSpace(substance.String)),
			Indication: domain.Indication(normalize.Text(strings.TrimSpace(indication.String))),
			Rating:     domain.Rating(strings.TrimSpace(rating.String)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate classification rows: %w", err)
	}

	return table, nil
}

// Close closes the database when the source opened it.
func (s *SQLSource) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
