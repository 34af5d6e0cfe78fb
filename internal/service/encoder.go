package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/forta-classifier/internal/domain"
)

// DefaultMaxComorbidities is the slot count of the fixed-width comorbidity record.
const DefaultMaxComorbidities = 20

// SlotKeyPrefix prefixes the 1-based slot index in fixed-width keys.
const SlotKeyPrefix = "multimorbidity_"

// Slot is one position of a fixed-width record. Label is nil when the slot is empty.
type Slot struct {
	Key   string
	Label *domain.Label
}

// FixedWidthRecord is the comorbidity sequence spread over a fixed number of slots.
// Overflow holds labels that did not fit; it is not part of the serialized slots.
type FixedWidthRecord struct {
	Slots    []Slot
	Overflow []domain.Label
}

// MarshalJSON writes the slots as one object in slot order with null for empty slots.
func (r FixedWidthRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range r.Slots {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if s.Label == nil {
			buf.WriteString("null")
			continue
		}
		value, err := json.Marshal(string(*s.Label))
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Map returns the slots keyed by slot name; empty slots map to nil.
func (r FixedWidthRecord) Map() map[string]any {
	m := make(map[string]any, len(r.Slots))
	for _, s := range r.Slots {
		if s.Label == nil {
			m[s.Key] = nil
			continue
		}
		m[s.Key] = string(*s.Label)
	}
	return m
}

// Encoder flattens comorbidity sequences into fixed-width records.
type Encoder struct {
	MaxNumber int
	// Strict rejects sequences longer than MaxNumber instead of reporting overflow.
	Strict bool
}

// NewEncoder creates an encoder; maxNumber <= 0 is rejected.
func NewEncoder(maxNumber int, strict bool) (Encoder, error) {
	if maxNumber <= 0 {
		return Encoder{}, fmt.Errorf("slot count must be positive, got %d: %w", maxNumber, domain.ErrInvalidConfiguration)
	}
	return Encoder{MaxNumber: maxNumber, Strict: strict}, nil
}

// Encode fills slot i with comorbidities[i-1] and leaves the remaining slots empty.
func (e Encoder) Encode(comorbidities domain.Comorbidities) (*FixedWidthRecord, error) {
	if e.MaxNumber <= 0 {
		return nil, fmt.Errorf("slot count must be positive, got %d: %w", e.MaxNumber, domain.ErrInvalidConfiguration)
	}

	var overflow []domain.Label
	if len(comorbidities) > e.MaxNumber {
		overflow = append(overflow, comorbidities[e.MaxNumber:]...)
		if e.Strict {
			return nil, &domain.OverflowError{Capacity: e.MaxNumber, Dropped: overflow}
		}
	}

	record := &FixedWidthRecord{
		Slots:    make([]Slot, e.MaxNumber),
		Overflow: overflow,
	}
	for i := range record.Slots {
		record.Slots[i].Key = fmt.Sprintf("%s%d", SlotKeyPrefix, i+1)
		if i < len(comorbidities) {
			label := comorbidities[i]
			record.Slots[i].Label = &label
		}
	}

	return record, nil
}

// Encode uses a non-strict encoder with maxNumber slots.
func Encode(comorbidities domain.Comorbidities, maxNumber int) (*FixedWidthRecord, error) {
	return Encoder{MaxNumber: maxNumber}.Encode(comorbidities)
}
