package service

import (
	"sort"
	"strings"

	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/normalize"
	"github.com/forta-classifier/internal/rules"
)

// Reconcile matches medications against the classification table and appends the
// summary row of medications without any matched indication.
func Reconcile(medications []string, indications domain.IndicationSet, table rules.ClassificationTable) *domain.ClassificationResult {
	matched := MatchClassifications(medications, indications, table)
	return &domain.ClassificationResult{
		Rows: append(matched, SummaryRow(matched, medications)),
	}
}

// MatchClassifications returns the reference rows whose substance is prescribed and whose
// indication applies, sorted by substance ascending and rating descending.
// Each reference row appears at most once regardless of how often a substance is listed.
func MatchClassifications(medications []string, indications domain.IndicationSet, table rules.ClassificationTable) []domain.ClassificationRow {
	prescribed := substanceSet(medications)
	applicable := make(map[string]struct{}, len(indications))
	for i := range indications {
		applicable[normalize.Text(string(i))] = struct{}{}
	}

	matched := make([]domain.ClassificationRow, 0)
	for _, row := range table {
		if _, ok := prescribed[normalize.Text(row.Substance)]; !ok {
			continue
		}
		if _, ok := applicable[normalize.Text(string(row.Indication))]; !ok {
			continue
		}
		matched = append(matched, row)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Substance != matched[j].Substance {
			return matched[i].Substance < matched[j].Substance
		}
		return matched[i].Rating > matched[j].Rating
	})

	return matched
}

// SummaryRow lists, sorted and comma separated, the medications that have no row in matched.
func SummaryRow(matched []domain.ClassificationRow, medications []string) domain.ClassificationRow {
	return domain.ClassificationRow{
		Substance:  strings.Join(Unmatched(matched, medications), ", "),
		Indication: domain.SummaryIndication,
		Rating:     domain.SummaryRating,
	}
}

// Unmatched returns the distinct medications without a matched row, in ascending order.
func Unmatched(matched []domain.ClassificationRow, medications []string) []string {
	covered := make(map[string]struct{}, len(matched))
	for _, row := range matched {
		covered[normalize.Text(row.Substance)] = struct{}{}
	}

	unmatched := make([]string, 0)
	for name := range substanceSet(medications) {
		if _, ok := covered[name]; !ok {
			unmatched = append(unmatched, name)
		}
	}
	sort.Strings(unmatched)
	return unmatched
}

func substanceSet(medications []string) map[string]struct{} {
	set := make(map[string]struct{}, len(medications))
	for _, m := range medications {
		set[normalize.Text(m)] = struct{}{}
	}
	return set
}
