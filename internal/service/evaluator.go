package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/rules"
)

// Recorder receives per-evaluation measurements.
type Recorder interface {
	ObserveEvaluation(status string, duration time.Duration, comorbidities, unmatched int)
}

// Evaluation statuses reported to the Recorder.
const (
	StatusSuccess = "success"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

// Evaluation is the complete result for one patient record.
type Evaluation struct {
	Comorbidities  domain.Comorbidities         `json:"comorbidities"`
	Multimorbidity *FixedWidthRecord            `json:"multimorbidity"`
	Indications    []domain.Indication          `json:"indications"`
	Medications    []string                     `json:"medications"`
	Classification *domain.ClassificationResult `json:"forta"`
	ProcessingTime time.Duration                `json:"processing_time"`
}

// ComorbidityProfile is the comorbidity part of an evaluation.
type ComorbidityProfile struct {
	Comorbidities  domain.Comorbidities `json:"comorbidities"`
	Multimorbidity *FixedWidthRecord    `json:"multimorbidity"`
}

// Evaluator runs the full pipeline: comorbidities, fixed-width record, indications and
// FORTA classification. It is safe for concurrent use.
type Evaluator struct {
	logger          *logrus.Logger
	engine          *RuleEngine
	encoder         Encoder
	medicationSlots int
	recorder        Recorder
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator) error

// WithEncoder replaces the default 20-slot non-strict encoder.
func WithEncoder(encoder Encoder) EvaluatorOption {
	return func(e *Evaluator) error {
		if encoder.MaxNumber <= 0 {
			return fmt.Errorf("slot count must be positive, got %d: %w", encoder.MaxNumber, domain.ErrInvalidConfiguration)
		}
		e.encoder = encoder
		return nil
	}
}

// WithMedicationSlots sets how many medication_preop_N fields are read.
func WithMedicationSlots(slots int) EvaluatorOption {
	return func(e *Evaluator) error {
		if slots <= 0 {
			return fmt.Errorf("medication slots must be positive, got %d: %w", slots, domain.ErrInvalidConfiguration)
		}
		e.medicationSlots = slots
		return nil
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) EvaluatorOption {
	return func(e *Evaluator) error {
		e.recorder = recorder
		return nil
	}
}

// NewEvaluator creates an evaluator over reference.
func NewEvaluator(logger *logrus.Logger, reference *rules.ReferenceData, opts ...EvaluatorOption) (*Evaluator, error) {
	if reference == nil {
		return nil, fmt.Errorf("reference data is required: %w", domain.ErrInvalidConfiguration)
	}

	e := &Evaluator{
		logger:          logger,
		engine:          NewRuleEngine(logger, reference),
		encoder:         Encoder{MaxNumber: DefaultMaxComorbidities},
		medicationSlots: domain.DefaultMedicationSlots,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return e, nil
}

// Engine returns the underlying rule engine.
func (e *Evaluator) Engine() *RuleEngine {
	return e.engine
}

// Evaluate runs the full pipeline for record. No partial result is returned on error.
func (e *Evaluator) Evaluate(ctx context.Context, record domain.Record) (*Evaluation, error) {
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	aggregate, err := AggregateMedications(record)
	if err != nil {
		e.observe(StatusInvalid, startTime, 0, 0)
		return nil, fmt.Errorf("failed to read medication list: %w", err)
	}

	profile, err := e.profile(record)
	if err != nil {
		e.observe(statusFor(err), startTime, 0, 0)
		return nil, err
	}

	indications := e.engine.ResolveIndications(record, profile.Comorbidities)
	medications := ExtractMedications(record, e.medicationSlots)
	matched := e.engine.Classify(medications, indications)
	summary := SummaryRow(matched, aggregate)

	evaluation := &Evaluation{
		Comorbidities:  profile.Comorbidities,
		Multimorbidity: profile.Multimorbidity,
		Indications:    indications.Sorted(),
		Medications:    medications,
		Classification: &domain.ClassificationResult{Rows: append(matched, summary)},
		ProcessingTime: time.Since(startTime),
	}

	unmatched := len(Unmatched(matched, aggregate))
	e.observe(StatusSuccess, startTime, len(profile.Comorbidities), unmatched)

	e.logger.WithFields(logrus.Fields{
		"comorbidities":   len(evaluation.Comorbidities),
		"indications":     len(evaluation.Indications),
		"medications":     len(medications),
		"matched_rows":    len(matched),
		"unmatched":       unmatched,
		"processing_time": evaluation.ProcessingTime,
	}).Info("Patient evaluation completed")

	return evaluation, nil
}

// Comorbidities runs only the comorbidity part of the pipeline.
func (e *Evaluator) Comorbidities(ctx context.Context, record domain.Record) (*ComorbidityProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.profile(record)
}

func (e *Evaluator) profile(record domain.Record) (*ComorbidityProfile, error) {
	comorbidities := e.engine.ResolveComorbidities(record)

	multimorbidity, err := e.encoder.Encode(comorbidities)
	if err != nil {
		return nil, fmt.Errorf("failed to encode comorbidities: %w", err)
	}
	if len(multimorbidity.Overflow) > 0 {
		e.logger.WithFields(logrus.Fields{
			"capacity": e.encoder.MaxNumber,
			"dropped":  multimorbidity.Overflow,
		}).Warn("Comorbidities exceed fixed-width slots")
	}

	return &ComorbidityProfile{
		Comorbidities:  comorbidities,
		Multimorbidity: multimorbidity,
	}, nil
}

func (e *Evaluator) observe(status string, start time.Time, comorbidities, unmatched int) {
	if e.recorder == nil {
		return
	}
	e.recorder.ObserveEvaluation(status, time.Since(start), comorbidities, unmatched)
}

func statusFor(err error) string {
	if IsInputError(err) {
		return StatusInvalid
	}
	return StatusError
}
