package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/normalize"
	"github.com/forta-classifier/internal/rules"
)

// Column header aliases of the FORTA classification CSV, matched case-insensitively.
var (
	substanceHeaders  = []string{"Wirkstoff", "substance"}
	indicationHeaders = []string{"Indikation", "indication"}
	ratingHeaders     = []string{"FORTA-Klassifikation", "FORTA", "rating"}
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions configures LoadClassificationCSV.
type CSVOptions struct {
	// Delimiter defaults to ','.
	Delimiter rune
	// Source names the input in errors.
	Source string
}

// LoadClassificationCSV reads the FORTA classification table. Input that is not valid UTF-8
// is decoded as Windows-1252. Additional columns are ignored.
func LoadClassificationCSV(r io.Reader, opts CSVOptions) (rules.ClassificationTable, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.Source == "" {
		opts.Source = "classification table"
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", opts.Source, err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	var reader io.Reader = bytes.NewReader(raw)
	if !utf8.Valid(raw) {
		reader = charmap.Windows1252.NewDecoder().Reader(bytes.NewReader(raw))
	}

	cr := csv.NewReader(reader)
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &domain.ReferenceDataError{Source: opts.Source, Line: 1, Reason: "missing header row"}
		}
		return nil, &domain.ReferenceDataError{Source: opts.Source, Line: 1, Reason: err.Error()}
	}

	columns, err := resolveColumns(header)
	if err != nil {
		return nil, &domain.ReferenceDataError{Source: opts.Source, Line: 1, Reason: err.Error()}
	}

	table := make(rules.ClassificationTable, 0)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &domain.ReferenceDataError{Source: opts.Source, Line: parseErr.Line, Reason: parseErr.Err.Error()}
			}
			return nil, fmt.Errorf("failed to read %s: %w", opts.Source, err)
		}
		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}
		if len(record) <= columns.max() {
			return nil, &domain.ReferenceDataError{
				Source: opts.Source,
				Line:   line,
				Reason: fmt.Sprintf("expected at least %d columns, got %d", columns.max()+1, len(record)),
			}
		}

		table = append(table, domain.ClassificationRow{
			Substance:  normalize.Text(strings.TrimSpace(record[columns.substance])),
			Indication: domain.Indication(normalize.Text(strings.TrimSpace(record[columns.indication]))),
			Rating:     domain.Rating(strings.TrimSpace(record[columns.rating])),
		})
	}

	return table, nil
}

type columnIndex struct {
	substance, indication, rating int
}

func (c columnIndex) max() int {
	m := c.substance
	if c.indication > m {
		m = c.indication
	}
	if c.rating > m {
		m = c.rating
	}
	return m
}

func resolveColumns(header []string) (columnIndex, error) {
	find := func(aliases []string) (int, error) {
		for i, h := range header {
			h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
			for _, alias := range aliases {
				if strings.EqualFold(h, alias) {
					return i, nil
				}
			}
		}
		return -1, fmt.Errorf("missing column %s", strings.Join(aliases, "|"))
	}

	var (
		idx columnIndex
		err error
	)
	if idx.substance, err = find(substanceHeaders); err != nil {
		return idx, err
	}
	if idx.indication, err = find(indicationHeaders); err != nil {
		return idx, err
	}
	if idx.rating, err = find(ratingHeaders); err != nil {
		return idx, err
	}
	return idx, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
