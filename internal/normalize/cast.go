package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cast converts a raw record value into the type a rule compares against.
type Cast func(v any) (any, error)

var errNotNumeric = errors.New("value is not numeric")

// CastInt converts to int. Floats truncate toward zero; strings must hold a base-10 integer.
func CastInt(v any) (any, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		f, _ := toFloat(t)
		return truncate(f)
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return truncate(f)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot cast %T to int", v)
	}
}

// CastFloat converts to float64.
func CastFloat(v any) (any, error) {
	if f, ok := toFloat(v); ok {
		return f, nil
	}
	switch t := v.(type) {
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return nil, fmt.Errorf("cannot cast %T to float", v)
	}
}

// CastString converts scalars to their string form.
func CastString(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return Text(t), nil
	case []any, map[string]any:
		return nil, fmt.Errorf("cannot cast %T to string", v)
	default:
		return fmt.Sprint(t), nil
	}
}

func truncate(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errNotNumeric
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("value %g overflows int", f)
	}
	return int(f), nil
}

// toFloat widens numeric kinds. Booleans count as 1 and 0.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
