// Package rules holds the read-only reference tables consumed by the resolvers:
// the comorbidity condition mapping, the comorbidity-to-indication mapping, the FORTA
// classification table and the registry of indication predicates.
package rules

import (
	"fmt"

	"github.com/forta-classifier/internal/domain"
)

// ConditionSet is a conjunction of field checks: every field must normalize to one of
// its accepted values.
type ConditionSet map[string][]any

// ComorbidityRule lists the alternative condition sets that establish a label.
type ComorbidityRule struct {
	Label      domain.Label
	Conditions []ConditionSet
}

// ComorbidityTable is the ordered comorbidity rule table.
// Evaluation follows insertion order.
type ComorbidityTable struct {
	rules []ComorbidityRule
	index map[domain.Label]int
}

// NewComorbidityTable builds a table from rules in evaluation order.
// Duplicate labels are rejected.
func NewComorbidityTable(rules ...ComorbidityRule) (*ComorbidityTable, error) {
	t := &ComorbidityTable{
		rules: make([]ComorbidityRule, 0, len(rules)),
		index: make(map[domain.Label]int, len(rules)),
	}
	for _, r := range rules {
		if _, exists := t.index[r.Label]; exists {
			return nil, fmt.Errorf("duplicate comorbidity label %q: %w", r.Label, domain.ErrReferenceData)
		}
		t.index[r.Label] = len(t.rules)
		t.rules = append(t.rules, r)
	}
	return t, nil
}

// MustComorbidityTable is NewComorbidityTable for static tables; it panics on duplicates.
func MustComorbidityTable(rules ...ComorbidityRule) *ComorbidityTable {
	t, err := NewComorbidityTable(rules...)
	if err != nil {
		panic(err)
	}
	return t
}

// Rules returns the rules in evaluation order. Callers must not modify the result.
func (t *ComorbidityTable) Rules() []ComorbidityRule {
	if t == nil {
		return nil
	}
	return t.rules
}

// Len returns the number of labels in the table.
func (t *ComorbidityTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Has reports whether the table defines label.
func (t *ComorbidityTable) Has(label domain.Label) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[label]
	return ok
}

// IndicationEntry is either a plain indication or a conditional mapping from predicate
// key to indication.
type IndicationEntry struct {
	Indication  domain.Indication
	Conditional map[string]domain.Indication
}

// Plain creates an unconditional entry.
func Plain(indication domain.Indication) IndicationEntry {
	return IndicationEntry{Indication: indication}
}

// When creates a conditional entry.
func When(conditional map[string]domain.Indication) IndicationEntry {
	return IndicationEntry{Conditional: conditional}
}

// IsConditional reports whether the entry depends on predicates.
func (e IndicationEntry) IsConditional() bool {
	return e.Conditional != nil
}

// IndicationTable maps confirmed comorbidity labels to indication entries.
type IndicationTable map[domain.Label][]IndicationEntry

// PredicateKeys returns every predicate key referenced by the table.
func (t IndicationTable) PredicateKeys() []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, entries := range t {
		for _, e := range entries {
			for key := range e.Conditional {
				if _, ok := seen[key]; !ok {
					seen[key] = struct{}{}
					keys = append(keys, key)
				}
			}
		}
	}
	return keys
}

// ClassificationTable is the FORTA reference table.
type ClassificationTable []domain.ClassificationRow
