package rules

import (
	"fmt"
	"sort"

	"github.com/forta-classifier/internal/domain"
)

// ReferenceData bundles the reference tables for one evaluation context.
// It is built once, never mutated afterwards and safe for concurrent readers.
type ReferenceData struct {
	Comorbidities  *ComorbidityTable
	Indications    IndicationTable
	Classification ClassificationTable
	Predicates     *Registry
}

// NewReferenceData assembles reference data. A nil registry selects DefaultRegistry.
func NewReferenceData(comorbidities *ComorbidityTable, indications IndicationTable, classification ClassificationTable, predicates *Registry) (*ReferenceData, error) {
	if comorbidities == nil {
		return nil, fmt.Errorf("comorbidity table is required: %w", domain.ErrReferenceData)
	}
	if indications == nil {
		indications = IndicationTable{}
	}
	if predicates == nil {
		predicates = DefaultRegistry()
	}
	return &ReferenceData{
		Comorbidities:  comorbidities,
		Indications:    indications,
		Classification: classification,
		Predicates:     predicates,
	}, nil
}

// WarningKind classifies a structural finding in the reference data.
type WarningKind string

const (
	WarnUnknownPredicate WarningKind = "unknown_predicate"
	WarnOrphanIndication WarningKind = "orphan_indication"
	WarnNoConditionSets  WarningKind = "no_condition_sets"
	WarnEmptyAcceptedSet WarningKind = "empty_accepted_values"
	WarnIncompleteRow    WarningKind = "incomplete_classification_row"
	WarnUnratedSubstance WarningKind = "unrated_substance"
)

// Warning is a non-fatal finding reported by Validate.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Subject string      `json:"subject"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Subject, w.Message)
}

// Validate reports structural findings. None of them prevents evaluation: unknown
// predicates still fail open and labels that never match are simply never emitted.
func (d *ReferenceData) Validate() []Warning {
	var warnings []Warning

	for _, key := range d.Indications.PredicateKeys() {
		if _, ok := d.Predicates.Lookup(key); !ok {
			warnings = append(warnings, Warning{
				Kind:    WarnUnknownPredicate,
				Subject: key,
				Message: "predicate is not registered and always evaluates to true",
			})
		}
	}

	for label := range d.Indications {
		if !d.Comorbidities.Has(label) && !d.Comorbidities.Has(domain.Label(domain.SuspectedPrefix)+label) {
			warnings = append(warnings, Warning{
				Kind:    WarnOrphanIndication,
				Subject: string(label),
				Message: "indication mapping has no comorbidity rule",
			})
		}
	}

	for _, rule := range d.Comorbidities.Rules() {
		if len(rule.Conditions) == 0 {
			warnings = append(warnings, Warning{
				Kind:    WarnNoConditionSets,
				Subject: string(rule.Label),
				Message: "label has no condition sets and can never match",
			})
		}
		for i, cs := range rule.Conditions {
			for field, accepted := range cs {
				if len(accepted) == 0 {
					warnings = append(warnings, Warning{
						Kind:    WarnEmptyAcceptedSet,
						Subject: string(rule.Label),
						Message: fmt.Sprintf("condition set %d: field %q accepts no values", i+1, field),
					})
				}
			}
		}
	}

	for i, row := range d.Classification {
		switch {
		case row.Substance == "" || row.Indication == "":
			warnings = append(warnings, Warning{
				Kind:    WarnIncompleteRow,
				Subject: fmt.Sprintf("row %d", i+1),
				Message: "substance and indication are required",
			})
		case !row.Rating.IsValid():
			warnings = append(warnings, Warning{
				Kind:    WarnUnratedSubstance,
				Subject: row.Substance,
				Message: fmt.Sprintf("rating %q is not a FORTA category", row.Rating),
			})
		}
	}

	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].Kind != warnings[j].Kind {
			return warnings[i].Kind < warnings[j].Kind
		}
		return warnings[i].Subject < warnings[j].Subject
	})
	return warnings
}
