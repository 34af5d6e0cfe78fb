package normalize

import (
	"encoding/json"
	"reflect"
)

// Equal compares a normalized record value with a rule value.
// Numbers compare by value, booleans equal 1 and 0, strings compare in NFC and nil
// equals only nil.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	fa, okA := numeric(a)
	fb, okB := numeric(b)
	if okA && okB {
		return fa == fb
	}
	if okA != okB {
		return false
	}

	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return sa == sb || Text(sa) == Text(sb)
	}

	return reflect.DeepEqual(a, b)
}

// In reports whether v equals any of accepted. An empty accepted list never matches.
func In(v any, accepted []any) bool {
	for _, a := range accepted {
		if Equal(v, a) {
			return true
		}
	}
	return false
}

func numeric(v any) (float64, bool) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	return toFloat(v)
}
