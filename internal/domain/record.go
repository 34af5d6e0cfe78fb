// Package domain contains the core entities shared by the multimorbidity and FORTA
// (Fit fOR The Aged) classification pipeline: patient records, comorbidity labels,
// indications and classification rows.
//
// Reference: Wehling M. et al. (2016) VALFORTA: a randomised trial to validate the FORTA
// classification. Age Ageing 45(2):262-7. doi: 10.1093/ageing/afv200
package domain

import (
	"fmt"
	"strings"
)

// Record is a single structured patient record as decoded from JSON.
// Values are scalars (float64, bool, string, nil) except for the aggregate
// medication list. Records are never mutated by the pipeline.
type Record map[string]any

// Field names read by the pipeline outside of the comorbidity rule table.
const (
	FieldAge            = "adm_age"
	FieldSex            = "sex"
	FieldEGFR           = "lab_preop_egfr"
	FieldMedication     = "medication"
	FieldMedicationSlot = "medication_preop_%d"
)

// DefaultMedicationSlots is the number of positional medication fields in a record.
const DefaultMedicationSlots = 20

// MedicationSlotField returns the positional medication field name for slot i (1-based).
func MedicationSlotField(i int) string {
	return fmt.Sprintf(FieldMedicationSlot, i)
}

// Lookup returns the raw value stored under key and whether the key exists.
func (r Record) Lookup(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

// SuspectedPrefix marks a lower-confidence ("Verdacht auf") variant of a diagnosis.
const SuspectedPrefix = "V. a. "

// Label is a comorbidity label as it appears in the comorbidity rule table.
type Label string

// IsSuspected reports whether the label is a suspected diagnosis.
func (l Label) IsSuspected() bool {
	return strings.HasPrefix(string(l), SuspectedPrefix)
}

// Confirmed returns the label with the suspected prefix removed.
func (l Label) Confirmed() Label {
	return Label(strings.TrimPrefix(string(l), SuspectedPrefix))
}

// String returns the string representation of the label.
func (l Label) String() string {
	return string(l)
}

// Well-known comorbidity labels referenced by indication predicates.
const (
	LabelDepression   Label = "Depression"
	LabelInsomnia     Label = "Schlafstörung"
	LabelHypertension Label = "Arterielle Hypertonie"
	LabelPneumonia    Label = "Pneumonie"
)

// Comorbidities is the ordered comorbidity sequence of one patient.
type Comorbidities []Label

// Contains reports whether the sequence holds label.
func (c Comorbidities) Contains(label Label) bool {
	for _, l := range c {
		if l == label {
			return true
		}
	}
	return false
}

// Strings returns the labels as plain strings.
func (c Comorbidities) Strings() []string {
	out := make([]string, len(c))
	for i, l := range c {
		out[i] = string(l)
	}
	return out
}
