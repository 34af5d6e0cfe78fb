package service

import (
	"github.com/sirupsen/logrus"

	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/rules"
)

// RuleEngine applies the comorbidity and indication rule tables of one reference data set.
type RuleEngine struct {
	logger    *logrus.Logger
	reference *rules.ReferenceData
}

// NewRuleEngine creates a rule engine over reference, which must not be modified afterwards.
func NewRuleEngine(logger *logrus.Logger, reference *rules.ReferenceData) *RuleEngine {
	return &RuleEngine{
		logger:    logger,
		reference: reference,
	}
}

// Reference returns the reference data the engine evaluates against.
func (e *RuleEngine) Reference() *rules.ReferenceData {
	return e.reference
}

// ResolveComorbidities returns the ordered comorbidity sequence of record.
func (e *RuleEngine) ResolveComorbidities(record domain.Record) domain.Comorbidities {
	comorbidities := ResolveComorbidities(record, e.reference.Comorbidities)

	e.logger.WithFields(logrus.Fields{
		"rules_evaluated": e.reference.Comorbidities.Len(),
		"comorbidities":   len(comorbidities),
	}).Debug("Resolved comorbidities")

	return comorbidities
}

// ResolveIndications returns the FORTA indications implied by comorbidities.
func (e *RuleEngine) ResolveIndications(record domain.Record, comorbidities domain.Comorbidities) domain.IndicationSet {
	indications := ResolveIndications(record, comorbidities, e.reference.Indications, e.reference.Predicates)

	e.logger.WithFields(logrus.Fields{
		"comorbidities": len(comorbidities),
		"indications":   len(indications),
	}).Debug("Resolved indications")

	return indications
}

// Classify reconciles medications with the classification table for indications.
func (e *RuleEngine) Classify(medications []string, indications domain.IndicationSet) []domain.ClassificationRow {
	matched := MatchClassifications(medications, indications, e.reference.Classification)

	e.logger.WithFields(logrus.Fields{
		"medications":  len(medications),
		"indications":  len(indications),
		"matched_rows": len(matched),
	}).Debug("Matched medications against FORTA table")

	return matched
}
