package service

import (
	"errors"

	"github.com/forta-classifier/internal/domain"
)

// IsInputError reports whether err was caused by the patient record rather than the engine.
func IsInputError(err error) bool {
	return errors.Is(err, domain.ErrMissingField) ||
		errors.Is(err, domain.ErrMalformedInput) ||
		errors.Is(err, domain.ErrTooManyComorbidities)
}
