package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/middleware"
	"github.com/forta-classifier/internal/rules"
)

// ReferenceSummary describes the reference data the evaluator runs on.
type ReferenceSummary struct {
	ComorbidityLabels  int             `json:"comorbidity_labels"`
	IndicationLabels   int             `json:"indication_labels"`
	ClassificationRows int             `json:"classification_rows"`
	Predicates         []string        `json:"predicates"`
	Warnings           []rules.Warning `json:"warnings"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleReference(c *gin.Context) {
	reference := s.evaluator.Engine().Reference()

	warnings := reference.Validate()
	if warnings == nil {
		warnings = []rules.Warning{}
	}

	c.JSON(http.StatusOK, ReferenceSummary{
		ComorbidityLabels:  reference.Comorbidities.Len(),
		IndicationLabels:   len(reference.Indications),
		ClassificationRows: len(reference.Classification),
		Predicates:         reference.Predicates.Keys(),
		Warnings:           warnings,
	})
}

func (s *Server) handleEvaluate(c *gin.Context) {
	record, ok := s.bindRecord(c)
	if !ok {
		return
	}

	evaluation, err := s.evaluator.Evaluate(c.Request.Context(), record)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, evaluation)
}

func (s *Server) handleComorbidities(c *gin.Context) {
	record, ok := s.bindRecord(c)
	if !ok {
		return
	}

	profile, err := s.evaluator.Comorbidities(c.Request.Context(), record)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// bindRecord decodes the request body as one patient record. Numbers are kept as
// json.Number so integer codes compare exactly.
func (s *Server) bindRecord(c *gin.Context) (domain.Record, bool) {
	var record domain.Record

	decoder := json.NewDecoder(c.Request.Body)
	decoder.UseNumber()
	err := decoder.Decode(&record)

	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		s.abort(c, http.StatusRequestEntityTooLarge, domain.ErrCodeInvalidInput, "Request body too large", err.Error())
		return nil, false
	case errors.Is(err, io.EOF):
		s.abort(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Request body is empty", "")
		return nil, false
	case err != nil:
		s.abort(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Request body is not a JSON object", err.Error())
		return nil, false
	case record == nil:
		s.abort(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Request body is not a JSON object", "")
		return nil, false
	}

	return record, true
}

// writeError maps pipeline errors to HTTP responses.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingField):
		s.abort(c, http.StatusUnprocessableEntity, domain.ErrCodeMissingField, "Required field missing", err.Error())
	case errors.Is(err, domain.ErrMalformedInput):
		s.abort(c, http.StatusUnprocessableEntity, domain.ErrCodeValidation, "Invalid patient record", err.Error())
	case errors.Is(err, domain.ErrTooManyComorbidities):
		s.abort(c, http.StatusUnprocessableEntity, domain.ErrCodeOverflow, "Too many comorbidities for the fixed-width record", err.Error())
	default:
		s.logger.WithFields(logrus.Fields{
			"correlation_id": c.GetString(middleware.CorrelationIDKey),
			"error":          err.Error(),
		}).Error("Evaluation failed")
		s.abort(c, http.StatusInternalServerError, domain.ErrCodeInternal, "Evaluation failed", "")
	}
}

func (s *Server) abort(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, c.GetString(middleware.CorrelationIDKey)))
}
