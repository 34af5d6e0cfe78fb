// Package normalize extracts record fields into comparable values.
// All failure paths degrade to a caller supplied sentinel; nothing here returns an error
// or panics.
package normalize

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/forta-classifier/internal/domain"
)

// MissingPolicy is the set of raw record values treated as "no data".
// Matching is on the raw stored value, before any trimming or casting.
type MissingPolicy struct {
	tokens map[string]struct{}
}

// MissingValues is the policy shared by every resolver: nil, "NaN", "" and " ".
var MissingValues = NewMissingPolicy("NaN", "", " ")

// NewMissingPolicy creates a policy treating nil and the given strings as missing.
func NewMissingPolicy(tokens ...string) MissingPolicy {
	p := MissingPolicy{tokens: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		p.tokens[t] = struct{}{}
	}
	return p
}

// IsMissing reports whether v is one of the missing-value sentinels.
func (p MissingPolicy) IsMissing(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, missing := p.tokens[s]
	return missing
}

// Normalize reads key from record and casts it.
//
// The sentinel is returned when the key is absent, the stored value is missing under
// MissingValues, or the cast fails. Strings reading "true"/"false" (any case, surrounding
// space ignored) become booleans before cast is consulted. A nil cast returns the raw value.
func Normalize(record domain.Record, key string, sentinel any, cast Cast) any {
	return MissingValues.Normalize(record, key, sentinel, cast)
}

// Normalize is Normalize under policy p.
func (p MissingPolicy) Normalize(record domain.Record, key string, sentinel any, cast Cast) (out any) {
	v, ok := record.Lookup(key)
	if !ok || p.IsMissing(v) {
		return sentinel
	}

	switch strings.ToLower(strings.TrimSpace(fmt.Sprint(v))) {
	case "true":
		return true
	case "false":
		return false
	}

	if cast == nil {
		return v
	}

	defer func() {
		if recover() != nil {
			out = sentinel
		}
	}()

	c, err := cast(v)
	if err != nil {
		return sentinel
	}
	return c
}

// Text returns s in Unicode NFC so composed and decomposed umlauts compare equal.
func Text(s string) string {
	return norm.NFC.String(s)
}
