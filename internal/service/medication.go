package service

import (
	"fmt"
	"strings"

	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/normalize"
)

// ExtractMedications collects medication_preop_1..slots in position order.
// Absent, missing and empty entries are skipped; duplicates are kept.
func ExtractMedications(record domain.Record, slots int) []string {
	var medications []string

	for i := 1; i <= slots; i++ {
		v, ok := record.Lookup(domain.MedicationSlotField(i))
		if !ok || normalize.MissingValues.IsMissing(v) {
			continue
		}
		if name, ok := substanceName(v); ok {
			medications = append(medications, name)
		}
	}

	return medications
}

// AggregateMedications reads the required aggregate medication field.
// An empty list is valid; an absent or null field is a MissingFieldError.
func AggregateMedications(record domain.Record) ([]string, error) {
	v, ok := record.Lookup(domain.FieldMedication)
	if !ok || v == nil {
		return nil, &domain.MissingFieldError{Field: domain.FieldMedication}
	}

	switch t := v.(type) {
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if name, ok := substanceName(s); ok {
				out = append(out, name)
			}
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			if _, isString := item.(string); !isString && item != nil {
				return nil, domain.NewValidationError(domain.FieldMedication,
					fmt.Sprintf("entry %d must be a substance name, got %T", i, item), item)
			}
			if name, ok := substanceName(item); ok {
				out = append(out, name)
			}
		}
		return out, nil
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if name, ok := substanceName(part); ok {
				out = append(out, name)
			}
		}
		if out == nil {
			out = []string{}
		}
		return out, nil
	default:
		return nil, domain.NewValidationError(domain.FieldMedication,
			fmt.Sprintf("expected a list of substance names, got %T", v), v)
	}
}

// substanceName trims and NFC-normalizes a medication entry. Falsy values yield false.
func substanceName(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		name := normalize.Text(strings.TrimSpace(t))
		if normalize.MissingValues.IsMissing(t) || name == "" {
			return "", false
		}
		return name, true
	case bool:
		if !t {
			return "", false
		}
		return fmt.Sprint(t), true
	case float64:
		if t == 0 {
			return "", false
		}
		return fmt.Sprint(t), true
	default:
		return fmt.Sprint(t), true
	}
}
