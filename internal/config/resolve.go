package config

import (
	"fmt"
	"strconv"
	"strings"
)

// #region resolve

// Resolve merges options into fallback and returns the typed result. It is a
// pure function: the inputs are not mutated and resolving twice with the same
// inputs yields the same output.
//
// Every key in the merged keyset must exist in fallback, otherwise
// ErrUnknownOption. A fallback entry marked Required must be supplied in
// options, otherwise ErrMissingRequiredOption. Supplied values are coerced to
// the type declared by the fallback entry.
func Resolve(options map[string]any, fallback Fallback) (Resolved, error) {
	for key := range options {
		if _, ok := fallback[key]; !ok {
			return nil, fmt.Errorf("option %q: %w", key, ErrUnknownOption)
		}
	}

	out := make(Resolved, len(fallback))
	for key, opt := range fallback {
		raw, supplied := options[key]
		if !supplied {
			if opt.Required {
				return nil, fmt.Errorf("option %q: %w", key, ErrMissingRequiredOption)
			}
			out[key] = Value{Type: opt.Type, str: opt.str, b: opt.b, i: opt.i, f: opt.f}
			continue
		}
		v, err := coerce(raw, opt.Type)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

// #endregion resolve

// #region coerce

// coerce converts a supplied value (string from INI, or native JSON types)
// to the declared option type.
func coerce(raw any, t ValueType) (Value, error) {
	switch t {
	case TypeString:
		switch x := raw.(type) {
		case string:
			return Value{Type: t, str: x}, nil
		case float64:
			return Value{Type: t, str: strconv.FormatFloat(x, 'g', -1, 64)}, nil
		case bool:
			return Value{Type: t, str: strconv.FormatBool(x)}, nil
		}

	case TypeBool:
		switch x := raw.(type) {
		case bool:
			return Value{Type: t, b: x}, nil
		case string:
			b, err := parseBool(x)
			if err != nil {
				return Value{}, err
			}
			return Value{Type: t, b: b}, nil
		case float64:
			return Value{Type: t, b: x != 0}, nil
		}

	case TypeInt:
		switch x := raw.(type) {
		case int:
			return Value{Type: t, i: x}, nil
		case float64:
			return Value{Type: t, i: int(x)}, nil
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(x))
			if err != nil {
				return Value{}, fmt.Errorf("%q is not an integer: %w", x, ErrBadOptionValue)
			}
			return Value{Type: t, i: i}, nil
		}

	case TypeFloat:
		switch x := raw.(type) {
		case float64:
			return Value{Type: t, f: x}, nil
		case int:
			return Value{Type: t, f: float64(x)}, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return Value{}, fmt.Errorf("%q is not a number: %w", x, ErrBadOptionValue)
			}
			return Value{Type: t, f: f}, nil
		}
	}
	return Value{}, fmt.Errorf("cannot coerce %T to %s: %w", raw, t, ErrBadOptionValue)
}

// parseBool accepts the spellings found in legacy INI configs: True/False,
// yes/no, on/off, 1/0, and the empty string as false.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean: %w", s, ErrBadOptionValue)
}

// #endregion coerce

// #region merge

// MergeOptions overlays later maps over earlier ones without mutating any of
// them. Used to combine common-section options with per-experiment ones.
func MergeOptions(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// #endregion merge
