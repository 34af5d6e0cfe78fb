package service

import (
	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/rules"
)

// ResolveIndications maps comorbidities to FORTA indications.
//
// Suspected labels are looked up by their confirmed form; labels without an entry are
// skipped. Conditional entries contribute each indication whose predicate holds for the
// record and the full comorbidity sequence.
func ResolveIndications(record domain.Record, comorbidities domain.Comorbidities, table rules.IndicationTable, predicates *rules.Registry) domain.IndicationSet {
	indications := domain.NewIndicationSet()

	for _, label := range comorbidities {
		entries, ok := table[label.Confirmed()]
		if !ok {
			continue
		}

		for _, entry := range entries {
			if !entry.IsConditional() {
				indications.Add(entry.Indication)
				continue
			}
			for key, indication := range entry.Conditional {
				if predicates.Evaluate(key, record, comorbidities) {
					indications.Add(indication)
				}
			}
		}
	}

	return indications
}
