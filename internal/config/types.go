package config

import "errors"

// #region errors

// Sentinel errors for configuration schema violations. All of them are
// fatal: they abort before any run starts.
var (
	ErrUnknownOption         = errors.New("option not present in fallback schema")
	ErrMissingRequiredOption = errors.New("required option not supplied")
	ErrBadOptionValue        = errors.New("option value cannot be coerced")
)

// #endregion errors

// #region option-types

// ValueType enumerates the types an option can carry.
type ValueType int

const (
	TypeString ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
)

// String returns the type name for error messages.
func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	}
	return "unknown"
}

// Option is one fallback schema entry: either a concrete default value or a
// bare type marker meaning the option is required and must be supplied.
type Option struct {
	Type     ValueType
	Required bool

	str  string
	b    bool
	i    int
	f    float64
}

// String declares an option with a string default.
func String(v string) Option { return Option{Type: TypeString, str: v} }

// Bool declares an option with a boolean default.
func Bool(v bool) Option { return Option{Type: TypeBool, b: v} }

// Int declares an option with an integer default.
func Int(v int) Option { return Option{Type: TypeInt, i: v} }

// Float declares an option with a float default.
func Float(v float64) Option { return Option{Type: TypeFloat, f: v} }

// Required declares an option with no default; resolution fails unless the
// option is supplied.
func Required(t ValueType) Option { return Option{Type: t, Required: true} }

// #endregion option-types

// #region value

// Value is a resolved, typed option value.
type Value struct {
	Type ValueType

	str string
	b   bool
	i   int
	f   float64
}

// Str returns the string payload.
func (v Value) Str() string { return v.str }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.b }

// Int returns the integer payload.
func (v Value) Int() int { return v.i }

// Float returns the float payload.
func (v Value) Float() float64 { return v.f }

// Any returns the payload as an untyped value, for report serialization.
func (v Value) Any() any {
	switch v.Type {
	case TypeBool:
		return v.b
	case TypeInt:
		return v.i
	case TypeFloat:
		return v.f
	}
	return v.str
}

// #endregion value

// #region fallback

// Fallback is the default/required-option schema configuration resolution is
// validated against. Every recognized option name must appear here.
type Fallback map[string]Option

// Resolved is the output of Resolve: an immutable-by-convention mapping from
// option name to typed value.
type Resolved map[string]Value

// AsFallback converts resolved values into a schema of concrete defaults so
// a further resolution layer can override them. This is how the layered
// defaults → common → per-experiment chain is built.
func (r Resolved) AsFallback() Fallback {
	fb := make(Fallback, len(r))
	for k, v := range r {
		fb[k] = Option{Type: v.Type, str: v.str, b: v.b, i: v.i, f: v.f}
	}
	return fb
}

// AsMap returns the resolved options as a plain map for report output.
func (r Resolved) AsMap() map[string]any {
	m := make(map[string]any, len(r))
	for k, v := range r {
		m[k] = v.Any()
	}
	return m
}

// #endregion fallback
