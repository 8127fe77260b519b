// Package solar holds the solar-radiation forecast model and the pure
// transformation from the ensemble API payload into flat records.
package solar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrShape is matched by every error Transform returns.
var ErrShape = errors.New("unexpected forecast data shape")

// ShapeError describes where the payload diverged from the expected shape.
// Index is -1 when the problem concerns the whole field.
type ShapeError struct {
	Field  string
	Index  int
	Reason string
	Err    error
}

func (e *ShapeError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	path := "hourly." + e.Field
	if e.Field == FieldLatitude || e.Field == FieldLongitude {
		path = e.Field
	}
	if e.Index >= 0 {
		return fmt.Sprintf("solar: %s[%d]: %s", path, e.Index, msg)
	}
	return fmt.Sprintf("solar: %s: %s", path, msg)
}

func (e *ShapeError) Unwrap() error { return e.Err }

func (e *ShapeError) Is(target error) bool { return target == ErrShape }

// Transform flattens resp into one Record per entry of hourly.time, in the
// same order. Latitude and longitude are copied into every record. It fails
// with a *ShapeError if hourly.time is absent, null or holds an empty
// timestamp, if any radiation column is missing, has a different length than
// hourly.time or holds a value DecodeValue rejects, or if a coordinate is
// missing.
func Transform(resp ForecastResponse) ([]Record, error) {
	times, err := decodeTimes(resp.Hourly)
	if err != nil {
		return nil, err
	}

	columns := make(map[string][]*float64, len(RadiationFields))
	for _, field := range RadiationFields {
		col, err := decodeColumn(resp.Hourly, field, len(times))
		if err != nil {
			return nil, err
		}
		columns[field] = col
	}

	if resp.Latitude == nil {
		return nil, &ShapeError{Field: FieldLatitude, Index: -1, Reason: "missing"}
	}
	if resp.Longitude == nil {
		return nil, &ShapeError{Field: FieldLongitude, Index: -1, Reason: "missing"}
	}

	records := make([]Record, 0, len(times))
	for i, ts := range times {
		rec := Record{
			Latitude:  *resp.Latitude,
			Longitude: *resp.Longitude,
			Time:      ts,
		}
		for _, field := range RadiationFields {
			rec.setRadiation(field, columns[field][i])
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeTimes(hourly map[string]json.RawMessage) ([]string, error) {
	raw, ok := hourly[FieldTime]
	if !ok {
		return nil, &ShapeError{Field: FieldTime, Index: -1, Reason: "missing"}
	}
	if isNull(bytes.TrimSpace(raw)) {
		return nil, &ShapeError{Field: FieldTime, Index: -1, Reason: "null"}
	}
	var elems []*string
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, &ShapeError{Field: FieldTime, Index: -1, Reason: "not an array of strings", Err: err}
	}

	times := make([]string, len(elems))
	for i, ts := range elems {
		if ts == nil || *ts == "" {
			return nil, &ShapeError{Field: FieldTime, Index: i, Reason: "missing timestamp"}
		}
		times[i] = *ts
	}
	return times, nil
}

func decodeColumn(hourly map[string]json.RawMessage, field string, want int) ([]*float64, error) {
	raw, ok := hourly[field]
	if !ok {
		return nil, &ShapeError{Field: field, Index: -1, Reason: "missing"}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, &ShapeError{Field: field, Index: -1, Reason: "not an array", Err: err}
	}
	if len(elems) != want {
		return nil, &ShapeError{
			Field:  field,
			Index:  -1,
			Reason: fmt.Sprintf("length %d does not match %d timestamps", len(elems), want),
		}
	}

	out := make([]*float64, len(elems))
	for i, elem := range elems {
		v, err := DecodeValue(elem)
		if err != nil {
			return nil, &ShapeError{Field: field, Index: i, Reason: "invalid value", Err: err}
		}
		out[i] = v.Float()
	}
	return out, nil
}
