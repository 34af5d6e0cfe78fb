package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forta-classifier/internal/domain"
)

func TestNewComorbidityTable_PreservesOrder(t *testing.T) {
	table, err := NewComorbidityTable(
		ComorbidityRule{Label: "Zystitis"},
		ComorbidityRule{Label: "Anämie"},
		ComorbidityRule{Label: "Demenz"},
	)
	require.NoError(t, err)

	var labels []domain.Label
	for _, r := range table.Rules() {
		labels = append(labels, r.Label)
	}

	assert.Equal(t, []domain.Label{"Zystitis", "Anämie", "Demenz"}, labels)
	assert.Equal(t, 3, table.Len())
	assert.True(t, table.Has("Anämie"))
	assert.False(t, table.Has("Pneumonie"))
}

func TestNewComorbidityTable_RejectsDuplicates(t *testing.T) {
	_, err := NewComorbidityTable(
		ComorbidityRule{Label: "Demenz"},
		ComorbidityRule{Label: "Demenz"},
	)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrReferenceData))
	assert.Panics(t, func() {
		MustComorbidityTable(ComorbidityRule{Label: "A"}, ComorbidityRule{Label: "A"})
	})
}

func TestNilComorbidityTable(t *testing.T) {
	var table *ComorbidityTable

	assert.Nil(t, table.Rules())
	assert.Zero(t, table.Len())
	assert.False(t, table.Has("Demenz"))
}

func TestDefaultRegistry_Predicates(t *testing.T) {
	registry := DefaultRegistry()

	tests := []struct {
		name          string
		key           string
		record        domain.Record
		comorbidities domain.Comorbidities
		expected      bool
	}{
		{"depression present", HasDepression, nil, domain.Comorbidities{"Depression"}, true},
		{"suspected depression does not count", HasDepression, nil, domain.Comorbidities{"V. a. Depression"}, false},
		{"insomnia present", HasInsomnia, nil, domain.Comorbidities{"Schlafstörung"}, true},
		{"woman", IsWoman, domain.Record{"sex": 0.0}, nil, true},
		{"woman from string", IsWoman, domain.Record{"sex": "0"}, nil, true},
		{"man", IsWoman, domain.Record{"sex": 1.0}, nil, false},
		{"sex missing defaults to male", IsWoman, domain.Record{}, nil, false},
		{"sex NaN defaults to male", IsWoman, domain.Record{"sex": "NaN"}, nil, false},
		{"renal failure", HasRenalFailure, domain.Record{"lab_preop_egfr": 25.0}, nil, true},
		{"renal failure at threshold", HasRenalFailure, domain.Record{"lab_preop_egfr": 30.0}, nil, false},
		{"renal failure missing defaults to normal", HasRenalFailure, domain.Record{}, nil, false},
		{"renal failure unparsable defaults to normal", HasRenalFailure, domain.Record{"lab_preop_egfr": "n/a"}, nil, false},
		{"no renal failure missing", HasNoRenalFailure, domain.Record{}, nil, true},
		{"no renal failure low", HasNoRenalFailure, domain.Record{"lab_preop_egfr": "12.5"}, nil, false},
		{"old", IsOld, domain.Record{"adm_age": 85.0}, nil, true},
		{"old missing defaults to younger", IsOld, domain.Record{}, nil, false},
		{"old boolean defaults to younger", IsOld, domain.Record{"adm_age": true}, nil, false},
		{"not old", IsNotOld, domain.Record{"adm_age": 84.0}, nil, true},
		{"not old missing", IsNotOld, domain.Record{"adm_age": ""}, nil, true},
		{"no hypertension", NoHypertension, nil, domain.Comorbidities{"Demenz"}, true},
		{"hypertension present", NoHypertension, nil, domain.Comorbidities{"Arterielle Hypertonie"}, false},
		{"pneumonia", HasPneumonia, nil, domain.Comorbidities{"Pneumonie"}, true},
		{"unknown key fails open", "has_gout", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, registry.Evaluate(tt.key, tt.record, tt.comorbidities))
		})
	}
}

func TestRegistry_With(t *testing.T) {
	base := DefaultRegistry()
	extended := base.With("has_gout", "Gout among the comorbidities", func(_ domain.Record, c domain.Comorbidities) bool {
		return c.Contains("Gicht")
	})

	_, inBase := base.Lookup("has_gout")
	assert.False(t, inBase)
	assert.False(t, extended.Evaluate("has_gout", nil, domain.Comorbidities{"Demenz"}))
	assert.True(t, extended.Evaluate("has_gout", nil, domain.Comorbidities{"Gicht"}))
	assert.Len(t, extended.Keys(), len(base.Keys())+1)
}

func TestRegistry_Keys(t *testing.T) {
	keys := DefaultRegistry().Keys()

	assert.Len(t, keys, 9)
	assert.IsIncreasing(t, keys)
}

func TestIndicationTable_PredicateKeys(t *testing.T) {
	table := IndicationTable{
		"Depression": {Plain("Depression"), When(map[string]domain.Indication{IsOld: "Depression (>85)"})},
		"Demenz":     {When(map[string]domain.Indication{IsOld: "Demenz", HasInsomnia: "Schlafstörung"})},
	}

	assert.ElementsMatch(t, []string{IsOld, HasInsomnia}, table.PredicateKeys())
	assert.False(t, table["Depression"][0].IsConditional())
	assert.True(t, table["Depression"][1].IsConditional())
}

func TestNewReferenceData(t *testing.T) {
	_, err := NewReferenceData(nil, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrReferenceData)

	data, err := NewReferenceData(MustComorbidityTable(), nil, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, data.Indications)
	assert.NotNil(t, data.Predicates)
}

func TestReferenceData_Validate(t *testing.T) {
	comorbidities := MustComorbidityTable(
		ComorbidityRule{Label: "V. a. Depression", Conditions: []ConditionSet{{"dx_depression": {1.0}}}},
		ComorbidityRule{Label: "Leer"},
		ComorbidityRule{Label: "Niemals", Conditions: []ConditionSet{{"x": {}}}},
	)
	indications := IndicationTable{
		"Depression":       {When(map[string]domain.Indication{"has_gout": "Gicht"})},
		"Herzinsuffizienz": {Plain("Herzinsuffizienz")},
	}
	classification := ClassificationTable{
		{Substance: "Citalopram", Indication: "Depression", Rating: domain.RATING_B},
		{Substance: "", Indication: "Depression", Rating: domain.RATING_A},
		{Substance: "Diazepam", Indication: "Schlafstörung", Rating: "E"},
	}

	data, err := NewReferenceData(comorbidities, indications, classification, nil)
	require.NoError(t, err)

	warnings := data.Validate()

	kinds := make(map[WarningKind][]string)
	for _, w := range warnings {
		kinds[w.Kind] = append(kinds[w.Kind], w.Subject)
	}

	assert.Equal(t, []string{"has_gout"}, kinds[WarnUnknownPredicate])
	assert.Equal(t, []string{"Herzinsuffizienz"}, kinds[WarnOrphanIndication])
	assert.Equal(t, []string{"Leer"}, kinds[WarnNoConditionSets])
	assert.Equal(t, []string{"Niemals"}, kinds[WarnEmptyAcceptedSet])
	assert.Equal(t, []string{"row 2"}, kinds[WarnIncompleteRow])
	assert.Equal(t, []string{"Diazepam"}, kinds[WarnUnratedSubstance])
	assert.Contains(t, warnings[0].String(), string(warnings[0].Kind))
}
