package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/rules"
)

const (
	labelRenal      domain.Label = "Niereninsuffizienz"
	labelHeart      domain.Label = "Herzinsuffizienz"
	labelNeverFires domain.Label = "Leere Regel"

	indicationDepression  domain.Indication = "Depression"
	indicationRenal       domain.Indication = "Niereninsuffizienz"
	indicationSevereRenal domain.Indication = "Schwere Niereninsuffizienz"
	indicationOldRenal    domain.Indication = "Niereninsuffizienz im hohen Alter"
	indicationHypertonia  domain.Indication = "Hypertonie"
	indicationSleep       domain.Indication = "Schlafstörung"
	indicationSleepDep    domain.Indication = "Schlafstörung bei Depression"
)

func testComorbidityTable(t *testing.T) *rules.ComorbidityTable {
	t.Helper()
	table, err := rules.NewComorbidityTable(
		rules.ComorbidityRule{Label: domain.LabelDepression, Conditions: []rules.ConditionSet{
			{"depression": {1}},
			{"antidepressant": {1}, "psych_consult": {1}},
		}},
		rules.ComorbidityRule{Label: domain.SuspectedPrefix + domain.LabelDepression, Conditions: []rules.ConditionSet{
			{"depression_suspected": {1}},
		}},
		rules.ComorbidityRule{Label: domain.LabelHypertension, Conditions: []rules.ConditionSet{
			{"hypertension": {1, 2}},
		}},
		rules.ComorbidityRule{Label: labelRenal, Conditions: []rules.ConditionSet{
			{"ckd": {1}},
			{"dialysis": {1}},
		}},
		rules.ComorbidityRule{Label: domain.LabelInsomnia, Conditions: []rules.ConditionSet{
			{"insomnia": {1}},
		}},
		rules.ComorbidityRule{Label: labelNeverFires, Conditions: []rules.ConditionSet{}},
		rules.ComorbidityRule{Label: labelHeart, Conditions: []rules.ConditionSet{
			{"heart_failure": {}},
		}},
	)
	require.NoError(t, err)
	return table
}

func testIndicationTable() rules.IndicationTable {
	return rules.IndicationTable{
		domain.LabelDepression:   {rules.Plain(indicationDepression)},
		domain.LabelHypertension: {rules.Plain(indicationHypertonia)},
		labelRenal: {
			rules.When(map[string]domain.Indication{
				rules.HasRenalFailure:   indicationSevereRenal,
				rules.HasNoRenalFailure: indicationRenal,
			}),
			rules.When(map[string]domain.Indication{
				rules.IsOld: indicationOldRenal,
			}),
		},
		domain.LabelInsomnia: {
			rules.Plain(indicationSleep),
			rules.When(map[string]domain.Indication{
				rules.HasDepression: indicationSleepDep,
			}),
		},
	}
}

func TestResolveComorbidities(t *testing.T) {
	table := testComorbidityTable(t)

	tests := []struct {
		name     string
		record   domain.Record
		expected domain.Comorbidities
	}{
		{
			name:     "empty record",
			record:   domain.Record{},
			expected: nil,
		},
		{
			name:     "table order not record order",
			record:   domain.Record{"insomnia": 1.0, "ckd": 1.0, "depression": 1.0},
			expected: domain.Comorbidities{domain.LabelDepression, labelRenal, domain.LabelInsomnia},
		},
		{
			name:     "second condition set needs every field",
			record:   domain.Record{"antidepressant": 1.0},
			expected: nil,
		},
		{
			name:     "second condition set satisfied",
			record:   domain.Record{"antidepressant": 1.0, "psych_consult": "1"},
			expected: domain.Comorbidities{domain.LabelDepression},
		},
		{
			name:     "suspected skipped when confirmed resolved",
			record:   domain.Record{"depression": 1.0, "depression_suspected": 1.0},
			expected: domain.Comorbidities{domain.LabelDepression},
		},
		{
			name:     "suspected alone",
			record:   domain.Record{"depression_suspected": 1.0},
			expected: domain.Comorbidities{domain.SuspectedPrefix + domain.LabelDepression},
		},
		{
			name:     "any accepted value",
			record:   domain.Record{"hypertension": 2.0},
			expected: domain.Comorbidities{domain.LabelHypertension},
		},
		{
			name:     "boolean true equals one",
			record:   domain.Record{"ckd": true},
			expected: domain.Comorbidities{labelRenal},
		},
		{
			name:     "boolean string equals one",
			record:   domain.Record{"dialysis": "TRUE"},
			expected: domain.Comorbidities{labelRenal},
		},
		{
			name:     "missing sentinels never match",
			record:   domain.Record{"depression": "NaN", "ckd": "", "insomnia": " ", "hypertension": nil},
			expected: nil,
		},
		{
			name:     "float truncates to accepted int",
			record:   domain.Record{"insomnia": 1.7},
			expected: domain.Comorbidities{domain.LabelInsomnia},
		},
		{
			name:     "empty accepted values never match",
			record:   domain.Record{"heart_failure": 1.0},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveComorbidities(tt.record, table))
		})
	}
}

func TestResolveComorbidities_Idempotent(t *testing.T) {
	table := testComorbidityTable(t)
	record := domain.Record{"depression": 1.0, "ckd": 1.0, "hypertension": 1.0}

	first := ResolveComorbidities(record, table)
	second := ResolveComorbidities(record, table)

	assert.Equal(t, first, second)
	assert.Equal(t, domain.Record{"depression": 1.0, "ckd": 1.0, "hypertension": 1.0}, record)
}

func TestResolveComorbidities_SuspectedEitherOrder(t *testing.T) {
	suspected := domain.SuspectedPrefix + domain.LabelPneumonia
	confirmedRule := rules.ComorbidityRule{Label: domain.LabelPneumonia, Conditions: []rules.ConditionSet{{"pneumonia": {1}}}}
	suspectedRule := rules.ComorbidityRule{Label: suspected, Conditions: []rules.ConditionSet{{"pneumonia_suspected": {1}}}}
	otherRule := rules.ComorbidityRule{Label: labelRenal, Conditions: []rules.ConditionSet{{"ckd": {1}}}}

	record := domain.Record{"pneumonia": 1.0, "pneumonia_suspected": 1.0, "ckd": 1.0}

	t.Run("confirmed first", func(t *testing.T) {
		table := rules.MustComorbidityTable(confirmedRule, otherRule, suspectedRule)
		got := ResolveComorbidities(record, table)
		assert.Equal(t, domain.Comorbidities{domain.LabelPneumonia, labelRenal}, got)
	})

	t.Run("suspected first", func(t *testing.T) {
		table := rules.MustComorbidityTable(suspectedRule, otherRule, confirmedRule)
		got := ResolveComorbidities(record, table)
		assert.Equal(t, domain.Comorbidities{labelRenal, domain.LabelPneumonia}, got)
	})

	t.Run("suspected kept without confirmed", func(t *testing.T) {
		table := rules.MustComorbidityTable(suspectedRule, otherRule, confirmedRule)
		got := ResolveComorbidities(domain.Record{"pneumonia_suspected": 1.0}, table)
		assert.Equal(t, domain.Comorbidities{suspected}, got)
	})
}

func TestResolveComorbidities_EmptyConditionSetList(t *testing.T) {
	table := testComorbidityTable(t)
	records := []domain.Record{
		{},
		{"depression": 1.0, "ckd": 1.0, "insomnia": 1.0, "hypertension": 1.0, "heart_failure": 1.0},
		{"anything": "value"},
	}

	for _, record := range records {
		assert.NotContains(t, ResolveComorbidities(record, table), labelNeverFires)
	}
}

func TestResolveComorbidities_NilTable(t *testing.T) {
	assert.Empty(t, ResolveComorbidities(domain.Record{"depression": 1.0}, nil))
}

func TestResolveIndications(t *testing.T) {
	table := testIndicationTable()
	registry := rules.DefaultRegistry()

	tests := []struct {
		name          string
		record        domain.Record
		comorbidities domain.Comorbidities
		expected      []domain.Indication
	}{
		{
			name:          "no comorbidities",
			record:        domain.Record{},
			comorbidities: nil,
			expected:      []domain.Indication{},
		},
		{
			name:          "plain entry",
			record:        domain.Record{},
			comorbidities: domain.Comorbidities{domain.LabelDepression},
			expected:      []domain.Indication{indicationDepression},
		},
		{
			name:          "suspected looked up by confirmed form",
			record:        domain.Record{},
			comorbidities: domain.Comorbidities{domain.SuspectedPrefix + domain.LabelDepression},
			expected:      []domain.Indication{indicationDepression},
		},
		{
			name:          "label without entry skipped",
			record:        domain.Record{},
			comorbidities: domain.Comorbidities{labelHeart},
			expected:      []domain.Indication{},
		},
		{
			name:          "missing lab values use normal renal function and younger age",
			record:        domain.Record{},
			comorbidities: domain.Comorbidities{labelRenal},
			expected:      []domain.Indication{indicationRenal},
		},
		{
			name:          "predicate depends on comorbidities",
			record:        domain.Record{},
			comorbidities: domain.Comorbidities{domain.LabelDepression, domain.LabelInsomnia},
			expected:      []domain.Indication{indicationDepression, indicationSleep, indicationSleepDep},
		},
		{
			name:          "set semantics",
			record:        domain.Record{},
			comorbidities: domain.Comorbidities{domain.LabelDepression, domain.SuspectedPrefix + domain.LabelDepression},
			expected:      []domain.Indication{indicationDepression},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveIndications(tt.record, tt.comorbidities, table, registry)
			assert.Equal(t, tt.expected, got.Sorted())
		})
	}
}

func TestResolveIndications_SevereRenalAndOld(t *testing.T) {
	comorbidityTable := testComorbidityTable(t)
	record := domain.Record{"ckd": 1.0, "lab_preop_egfr": 22.0, "adm_age": 88.0}

	comorbidities := ResolveComorbidities(record, comorbidityTable)
	require.Equal(t, domain.Comorbidities{labelRenal}, comorbidities)

	indications := ResolveIndications(record, comorbidities, testIndicationTable(), rules.DefaultRegistry())

	assert.True(t, indications.Has(indicationSevereRenal))
	assert.True(t, indications.Has(indicationOldRenal))
	assert.False(t, indications.Has(indicationRenal))
}

func TestResolveIndications_UnknownPredicateFailsOpen(t *testing.T) {
	table := rules.IndicationTable{
		labelHeart: {rules.When(map[string]domain.Indication{"has_unknown_marker": "Herzinsuffizienz"})},
	}

	got := ResolveIndications(domain.Record{}, domain.Comorbidities{labelHeart}, table, rules.DefaultRegistry())

	assert.True(t, got.Has("Herzinsuffizienz"))
}

func TestResolveIndications_CustomPredicate(t *testing.T) {
	registry := rules.DefaultRegistry().With("has_dialysis", "Dialysis documented", func(r domain.Record, _ domain.Comorbidities) bool {
		return r["dialysis"] == 1.0
	})
	table := rules.IndicationTable{
		labelRenal: {rules.When(map[string]domain.Indication{"has_dialysis": "Dialyse"})},
	}

	assert.True(t, ResolveIndications(domain.Record{"dialysis": 1.0}, domain.Comorbidities{labelRenal}, table, registry).Has("Dialyse"))
	assert.False(t, ResolveIndications(domain.Record{}, domain.Comorbidities{labelRenal}, table, registry).Has("Dialyse"))
}
