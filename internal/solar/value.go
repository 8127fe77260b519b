package solar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ValueKind identifies which shape an hourly value arrived in.
type ValueKind int

const (
	// KindNull is an ensemble array whose first member is null.
	KindNull ValueKind = iota
	// KindScalar is a bare JSON number.
	KindScalar
	// KindWrapped is an ensemble array; only its first member is kept.
	KindWrapped
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindWrapped:
		return "wrapped"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Value is a decoded hourly value.
type Value struct {
	Kind   ValueKind
	Number float64
}

// Float returns the numeric value, or nil for KindNull.
func (v Value) Float() *float64 {
	switch v.Kind {
	case KindScalar, KindWrapped:
		n := v.Number
		return &n
	default:
		return nil
	}
}

var (
	errEmptyValue     = errors.New("empty value")
	errEmptyEnsemble  = errors.New("empty ensemble array")
	errNotNumeric     = errors.New("value is neither a number nor an array of numbers")
	errNestedEnsemble = errors.New("first ensemble member is not a number")
)

// DecodeValue decodes a single hourly value. Accepted shapes are a number
// or a non-empty array whose first member is a number or null; later members
// are ignored. A bare null is rejected.
func DecodeValue(raw json.RawMessage) (Value, error) {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return Value{}, errEmptyValue
	}

	switch {
	case isNull(b):
		return Value{}, errNotNumeric
	case b[0] == '[':
		var members []json.RawMessage
		if err := json.Unmarshal(b, &members); err != nil {
			return Value{}, fmt.Errorf("decode ensemble array: %w", err)
		}
		if len(members) == 0 {
			return Value{}, errEmptyEnsemble
		}
		first := bytes.TrimSpace(members[0])
		if isNull(first) {
			return Value{Kind: KindNull}, nil
		}
		n, ok := decodeNumber(first)
		if !ok {
			return Value{}, errNestedEnsemble
		}
		return Value{Kind: KindWrapped, Number: n}, nil
	default:
		n, ok := decodeNumber(b)
		if !ok {
			return Value{}, errNotNumeric
		}
		return Value{Kind: KindScalar, Number: n}, nil
	}
}

func isNull(b []byte) bool {
	return bytes.Equal(b, []byte("null"))
}

// decodeNumber accepts only JSON numbers; null must be handled by the caller
// because json.Unmarshal treats it as a no-op.
func decodeNumber(b []byte) (float64, bool) {
	if len(b) == 0 || !(b[0] == '-' || (b[0] >= '0' && b[0] <= '9')) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return 0, false
	}
	return n, true
}
