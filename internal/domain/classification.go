package domain

import (
	"sort"
)

// Rating is a FORTA classification category. The FORTA list uses A (indispensable),
// B (beneficial), C (questionable) and D (avoid); later letters are more severe.
type Rating string

const (
	RATING_A Rating = "A"
	RATING_B Rating = "B"
	RATING_C Rating = "C"
	RATING_D Rating = "D"
)

// IsValid reports whether the rating is one of the four FORTA categories.
func (r Rating) IsValid() bool {
	switch r {
	case RATING_A, RATING_B, RATING_C, RATING_D:
		return true
	default:
		return false
	}
}

// String returns the string representation of the rating.
func (r Rating) String() string {
	return string(r)
}

// Description returns a human-readable description of the rating.
func (r Rating) Description() string {
	switch r {
	case RATING_A:
		return "A - Indispensable, clear-cut benefit"
	case RATING_B:
		return "B - Beneficial, proven efficacy with limitations"
	case RATING_C:
		return "C - Questionable efficacy/safety profile"
	case RATING_D:
		return "D - Avoid, find alternatives"
	default:
		return "Unrated"
	}
}

// Placeholder values of the summary row appended to every classification result.
const (
	SummaryIndication        = "Indikation ggf. prüfen"
	SummaryRating     Rating = "-"
)

// Indication is a clinical justification under which a medication may be appropriate.
type Indication string

// IndicationSet is the unordered set of indications resolved for one patient.
type IndicationSet map[Indication]struct{}

// NewIndicationSet creates a set holding the given indications.
func NewIndicationSet(indications ...Indication) IndicationSet {
	s := make(IndicationSet, len(indications))
	for _, i := range indications {
		s.Add(i)
	}
	return s
}

// Add inserts an indication; adding an existing one is a no-op.
func (s IndicationSet) Add(i Indication) {
	s[i] = struct{}{}
}

// Has reports whether the set holds the indication.
func (s IndicationSet) Has(i Indication) bool {
	_, ok := s[i]
	return ok
}

// Sorted returns the indications in ascending order.
func (s IndicationSet) Sorted() []Indication {
	out := make([]Indication, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// ClassificationRow is one row of the FORTA reference table or of a classification result.
type ClassificationRow struct {
	Substance  string     `json:"substance"`
	Indication Indication `json:"indication"`
	Rating     Rating     `json:"rating"`
}

// ClassificationResult holds the matched rows of one patient followed by exactly one
// summary row listing prescribed substances without any matched indication.
type ClassificationResult struct {
	Rows []ClassificationRow `json:"rows"`
}

// Matched returns the rows preceding the summary row.
func (c *ClassificationResult) Matched() []ClassificationRow {
	if len(c.Rows) == 0 {
		return nil
	}
	return c.Rows[:len(c.Rows)-1]
}

// Summary returns the trailing summary row.
func (c *ClassificationResult) Summary() ClassificationRow {
	if len(c.Rows) == 0 {
		return ClassificationRow{Indication: SummaryIndication, Rating: SummaryRating}
	}
	return c.Rows[len(c.Rows)-1]
}
