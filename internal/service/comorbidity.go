package service

import (
	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/normalize"
	"github.com/forta-classifier/internal/rules"
)

// ResolveComorbidities evaluates record against the comorbidity rule table in table order.
//
// A suspected label is skipped without evaluating its condition sets when its confirmed
// label was already resolved. A confirmed label displaces its suspected form when the
// table lists the suspected form first. A label is resolved by the first satisfied
// condition set.
func ResolveComorbidities(record domain.Record, table *rules.ComorbidityTable) domain.Comorbidities {
	var resolved domain.Comorbidities

	for _, rule := range table.Rules() {
		if rule.Label.IsSuspected() && resolved.Contains(rule.Label.Confirmed()) {
			continue
		}

		for _, cs := range rule.Conditions {
			if conditionSetSatisfied(record, cs) {
				if !rule.Label.IsSuspected() {
					resolved = withoutLabel(resolved, domain.SuspectedPrefix+rule.Label)
				}
				resolved = append(resolved, rule.Label)
				break
			}
		}
	}

	return resolved
}

// conditionSetSatisfied requires every field to normalize into its accepted values.
// An empty accepted list never matches; a set without fields always does.
func conditionSetSatisfied(record domain.Record, cs rules.ConditionSet) bool {
	for field, accepted := range cs {
		if !normalize.In(normalize.Normalize(record, field, nil, normalize.CastInt), accepted) {
			return false
		}
	}
	return true
}

func withoutLabel(c domain.Comorbidities, label domain.Label) domain.Comorbidities {
	for i, l := range c {
		if l == label {
			return append(c[:i:i], c[i+1:]...)
		}
	}
	return c
}
