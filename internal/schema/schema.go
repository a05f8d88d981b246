// Package schema validates generated itinerary data against the expected
// shape and converts it to a typed domain.Itinerary.
//
// The input is an arbitrary decoded JSON value, so validation walks maps and
// slices by hand and reports the first offending field path, e.g.
// "days[1].stops[0].duration_minutes".
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/tripplanner/backend/internal/domain"
)

// ValidationError names the field that failed validation.
// It wraps domain.ErrValidation so callers can match it with errors.Is.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

// ValidateJSON decodes data and validates it. A decode failure is reported
// as a ValidationError with an empty path.
func ValidateJSON(data []byte) (domain.Itinerary, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return domain.Itinerary{}, &ValidationError{Message: "invalid JSON: " + err.Error()}
	}
	if dec.More() {
		return domain.Itinerary{}, &ValidationError{Message: "invalid JSON: trailing data after document"}
	}
	return Validate(v)
}

// Validate checks that v has the itinerary shape:
//
//	{ title: string,
//	  days: [ { day: number, theme?: string,
//	            stops: [ { name: string, description: string, duration_minutes: number } ] } ] }
//
// No range checks are applied to day or duration_minutes; both must be
// integral because the stored model is integer. Unknown fields are ignored.
// The returned itinerary has no ids; stops carry their positional OrderIndex.
func Validate(v any) (domain.Itinerary, error) {
	root, ok := v.(map[string]any)
	if !ok {
		return domain.Itinerary{}, &ValidationError{Message: "expected object, got " + kind(v)}
	}

	var it domain.Itinerary
	var err error
	if it.Title, err = requireString(root, "title", ""); err != nil {
		return domain.Itinerary{}, err
	}

	rawDays, err := requireArray(root, "days", "")
	if err != nil {
		return domain.Itinerary{}, err
	}

	it.Days = make([]domain.Day, 0, len(rawDays))
	for i, rd := range rawDays {
		day, err := validateDay(rd, fmt.Sprintf("days[%d]", i))
		if err != nil {
			return domain.Itinerary{}, err
		}
		it.Days = append(it.Days, day)
	}
	return it, nil
}

func validateDay(v any, path string) (domain.Day, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return domain.Day{}, &ValidationError{Path: path, Message: "expected object, got " + kind(v)}
	}

	var day domain.Day
	var err error
	if day.Number, err = requireInt(obj, "day", path); err != nil {
		return domain.Day{}, err
	}
	if raw, present := obj["theme"]; present && raw != nil {
		theme, ok := raw.(string)
		if !ok {
			return domain.Day{}, &ValidationError{Path: join(path, "theme"), Message: "expected string, got " + kind(raw)}
		}
		day.Theme = theme
	}

	rawStops, err := requireArray(obj, "stops", path)
	if err != nil {
		return domain.Day{}, err
	}
	day.Stops = make([]domain.Stop, 0, len(rawStops))
	for i, rs := range rawStops {
		stop, err := validateStop(rs, fmt.Sprintf("%s.stops[%d]", path, i))
		if err != nil {
			return domain.Day{}, err
		}
		stop.OrderIndex = i
		day.Stops = append(day.Stops, stop)
	}
	return day, nil
}

func validateStop(v any, path string) (domain.Stop, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return domain.Stop{}, &ValidationError{Path: path, Message: "expected object, got " + kind(v)}
	}

	var stop domain.Stop
	var err error
	if stop.Name, err = requireString(obj, "name", path); err != nil {
		return domain.Stop{}, err
	}
	if stop.Description, err = requireString(obj, "description", path); err != nil {
		return domain.Stop{}, err
	}
	if stop.DurationMinutes, err = requireInt(obj, "duration_minutes", path); err != nil {
		return domain.Stop{}, err
	}
	return stop, nil
}

func requireString(obj map[string]any, key, path string) (string, error) {
	raw, present := obj[key]
	if !present {
		return "", &ValidationError{Path: join(path, key), Message: "required"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &ValidationError{Path: join(path, key), Message: "expected string, got " + kind(raw)}
	}
	return s, nil
}

func requireArray(obj map[string]any, key, path string) ([]any, error) {
	raw, present := obj[key]
	if !present {
		return nil, &ValidationError{Path: join(path, key), Message: "required"}
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, &ValidationError{Path: join(path, key), Message: "expected array, got " + kind(raw)}
	}
	return arr, nil
}

func requireInt(obj map[string]any, key, path string) (int, error) {
	raw, present := obj[key]
	if !present {
		return 0, &ValidationError{Path: join(path, key), Message: "required"}
	}
	n, err := toInt(raw)
	if err != nil {
		return 0, &ValidationError{Path: join(path, key), Message: err.Error()}
	}
	return n, nil
}

var errNotFinite = errors.New("expected finite integer")

// toInt accepts the number representations encoding/json can produce
// (json.Number with UseNumber, float64 without) plus plain Go ints.
// Fractional values are rounded half away from zero.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := strconv.Atoi(n.String()); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", n.String())
		}
		return floatToInt(f)
	case float64:
		return floatToInt(n)
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %s", kind(v))
	}
}

func floatToInt(f float64) (int, error) {
	r := math.Round(f)
	if math.IsNaN(r) || math.IsInf(r, 0) || math.Abs(r) > math.MaxInt32 {
		return 0, fmt.Errorf("%w, got %v", errNotFinite, f)
	}
	return int(r), nil
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
