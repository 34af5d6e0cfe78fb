package rules

import (
	"sort"

	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/normalize"
)

// Predicate decides whether a conditional indication applies to a patient.
type Predicate func(record domain.Record, comorbidities domain.Comorbidities) bool

// PredicateDef documents a registered predicate.
type PredicateDef struct {
	Key         string
	Description string
	Default     string
	Evaluate    Predicate
}

// Registry is the table of named indication predicates.
// A Registry is immutable once built; With returns an extended copy.
type Registry struct {
	predicates map[string]*PredicateDef
}

// Clinical thresholds and the values assumed when a field is missing.
const (
	OldAgeThreshold  = 85.0
	RenalFailureEGFR = 30.0
	DefaultAge       = 70.0  // below the old-age threshold
	DefaultEGFR      = 120.0 // normal renal function
	DefaultSex       = 1.0   // male
	SexFemale        = 0.0
)

// Predicate keys understood by DefaultRegistry.
const (
	HasDepression     = "has_depression"
	HasInsomnia       = "has_insomnia"
	IsWoman           = "is_woman"
	HasRenalFailure   = "has_renal_failure"
	HasNoRenalFailure = "has_no_renal_failure"
	IsOld             = "is_old"
	IsNotOld          = "is_not_old"
	NoHypertension    = "no_hypertension"
	HasPneumonia      = "has_pneumonia"
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{predicates: make(map[string]*PredicateDef)}
}

// DefaultRegistry returns the built-in FORTA predicates.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.initializePredicates()
	return r
}

func (r *Registry) initializePredicates() {
	r.add(HasDepression, "Depression among the comorbidities", "", hasComorbidity(domain.LabelDepression))
	r.add(HasInsomnia, "Insomnia among the comorbidities", "", hasComorbidity(domain.LabelInsomnia))
	r.add(IsWoman, "Patient sex is female", "sex=1 (male)", func(rec domain.Record, _ domain.Comorbidities) bool {
		return numberField(rec, domain.FieldSex, DefaultSex) == SexFemale
	})
	r.add(HasRenalFailure, "eGFR below 30 ml/min", "eGFR=120 (normal)", func(rec domain.Record, _ domain.Comorbidities) bool {
		return numberField(rec, domain.FieldEGFR, DefaultEGFR) < RenalFailureEGFR
	})
	r.add(HasNoRenalFailure, "eGFR of at least 30 ml/min", "eGFR=120 (normal)", func(rec domain.Record, _ domain.Comorbidities) bool {
		return numberField(rec, domain.FieldEGFR, DefaultEGFR) >= RenalFailureEGFR
	})
	r.add(IsOld, "Age at admission of at least 85", "age=70", func(rec domain.Record, _ domain.Comorbidities) bool {
		return numberField(rec, domain.FieldAge, DefaultAge) >= OldAgeThreshold
	})
	r.add(IsNotOld, "Age at admission below 85", "age=70", func(rec domain.Record, _ domain.Comorbidities) bool {
		return numberField(rec, domain.FieldAge, DefaultAge) < OldAgeThreshold
	})
	r.add(NoHypertension, "No arterial hypertension among the comorbidities", "", func(_ domain.Record, c domain.Comorbidities) bool {
		return !c.Contains(domain.LabelHypertension)
	})
	r.add(HasPneumonia, "Pneumonia among the comorbidities", "", hasComorbidity(domain.LabelPneumonia))
}

func (r *Registry) add(key, description, def string, fn Predicate) {
	r.predicates[key] = &PredicateDef{
		Key:         key,
		Description: description,
		Default:     def,
		Evaluate:    fn,
	}
}

// With returns a copy of the registry with an additional or replaced predicate.
func (r *Registry) With(key, description string, fn Predicate) *Registry {
	clone := NewRegistry()
	for k, v := range r.predicates {
		clone.predicates[k] = v
	}
	clone.add(key, description, "", fn)
	return clone
}

// Lookup returns the predicate registered under key.
func (r *Registry) Lookup(key string) (*PredicateDef, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.predicates[key]
	return p, ok
}

// Evaluate runs the predicate registered under key.
// Unknown keys evaluate to true; ReferenceData.Validate reports them at load time.
func (r *Registry) Evaluate(key string, record domain.Record, comorbidities domain.Comorbidities) bool {
	p, ok := r.Lookup(key)
	if !ok {
		return true
	}
	return p.Evaluate(record, comorbidities)
}

// Keys returns the registered keys in ascending order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.predicates))
	for k := range r.predicates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func hasComorbidity(label domain.Label) Predicate {
	return func(_ domain.Record, c domain.Comorbidities) bool {
		return c.Contains(label)
	}
}

// numberField reads a numeric field; missing, non-numeric and boolean values yield def.
func numberField(record domain.Record, key string, def float64) float64 {
	v, ok := normalize.Normalize(record, key, def, normalize.CastFloat).(float64)
	if !ok {
		return def
	}
	return v
}
