package config

import (
	"fmt"
	"time"
)

// #region source-constants

// Recognized source_data identifiers. Anything else is treated as a path to
// a CSV interaction log.
const (
	SourceAssist0910Orig = "assist0910-orig"
	SourceAssist0910Self = "assist0910-self"
	SourceSynthetic      = "synthetic"
)

// #endregion source-constants

// #region default-fallback

// DefaultFallback is the in-code schema legacy INI sections resolve against.
// A Required entry has no default and must be supplied by the experiment.
func DefaultFallback() Fallback {
	return Fallback{
		"common_name":  String(""),
		"section_name": String(""),

		"debug":           Bool(false),
		"model_name":      Required(TypeString),
		"load_model":      String(""),
		"plot_heatmap":    Bool(false),
		"plot_lc":         Bool(false),
		"source_data":     String(SourceAssist0910Orig),
		"ks_loss":         Bool(false),
		"extend_backward": Int(0),
		"extend_forward":  Int(0),
		"epoch_size":      Int(200),
		"sequence_size":   Int(20),
		"lr":              Float(0.05),
		"n_skills":        Int(124),
		"cuda":            Bool(true),
		"seed":            Int(0),

		"batch_size": Int(100),
	}
}

// #endregion default-fallback

// #region config-struct

// Config is the immutable record of one experiment's resolved options. It is
// built once by FromResolved and never mutated afterward; derived fields
// (ExpName, StartTime) are filled at construction.
type Config struct {
	CommonName  string
	SectionName string

	Debug          bool
	ModelName      string
	LoadModel      string
	PlotHeatmap    bool
	PlotLC         bool
	SourceData     string
	KSLoss         bool
	ExtendBackward int
	ExtendForward  int
	EpochSize      int
	SequenceSize   int
	LR             float64
	NSkills        int
	Cuda           bool
	Seed           int
	BatchSize      int

	// Derived at construction.
	ExpName   string
	StartTime string

	resolved Resolved
}

// FromResolved builds a Config from a resolved option map. The experiment
// name is common_name + section_name, matching the legacy naming scheme.
func FromResolved(r Resolved) (Config, error) {
	get := func(key string, t ValueType) (Value, error) {
		v, ok := r[key]
		if !ok {
			return Value{}, fmt.Errorf("resolved options missing %q: %w", key, ErrMissingRequiredOption)
		}
		if v.Type != t {
			return Value{}, fmt.Errorf("option %q has type %s, want %s: %w", key, v.Type, t, ErrBadOptionValue)
		}
		return v, nil
	}

	c := Config{resolved: r}
	for _, f := range []struct {
		key string
		t   ValueType
		dst func(Value)
	}{
		{"common_name", TypeString, func(v Value) { c.CommonName = v.Str() }},
		{"section_name", TypeString, func(v Value) { c.SectionName = v.Str() }},
		{"debug", TypeBool, func(v Value) { c.Debug = v.Bool() }},
		{"model_name", TypeString, func(v Value) { c.ModelName = v.Str() }},
		{"load_model", TypeString, func(v Value) { c.LoadModel = v.Str() }},
		{"plot_heatmap", TypeBool, func(v Value) { c.PlotHeatmap = v.Bool() }},
		{"plot_lc", TypeBool, func(v Value) { c.PlotLC = v.Bool() }},
		{"source_data", TypeString, func(v Value) { c.SourceData = v.Str() }},
		{"ks_loss", TypeBool, func(v Value) { c.KSLoss = v.Bool() }},
		{"extend_backward", TypeInt, func(v Value) { c.ExtendBackward = v.Int() }},
		{"extend_forward", TypeInt, func(v Value) { c.ExtendForward = v.Int() }},
		{"epoch_size", TypeInt, func(v Value) { c.EpochSize = v.Int() }},
		{"sequence_size", TypeInt, func(v Value) { c.SequenceSize = v.Int() }},
		{"lr", TypeFloat, func(v Value) { c.LR = v.Float() }},
		{"n_skills", TypeInt, func(v Value) { c.NSkills = v.Int() }},
		{"cuda", TypeBool, func(v Value) { c.Cuda = v.Bool() }},
		{"seed", TypeInt, func(v Value) { c.Seed = v.Int() }},
		{"batch_size", TypeInt, func(v Value) { c.BatchSize = v.Int() }},
	} {
		v, err := get(f.key, f.t)
		if err != nil {
			return Config{}, err
		}
		f.dst(v)
	}

	c.ExpName = c.CommonName + c.SectionName
	c.StartTime = time.Now().UTC().Format("20060102-150405")
	return c, nil
}

// #endregion config-struct

// #region derived

// ModelFname is the decorated output name: the model identifier plus
// eb{n}/ef{n}/ks suffixes for the context-extension and auxiliary-loss
// variants, so artifact files distinguish experiment variants.
func (c Config) ModelFname() string {
	name := c.ModelName
	if c.ExtendBackward != 0 {
		name += fmt.Sprintf("eb%d", c.ExtendBackward)
	}
	if c.ExtendForward != 0 {
		name += fmt.Sprintf("ef%d", c.ExtendForward)
	}
	if c.KSLoss {
		name += "ks"
	}
	return name
}

// AsMap returns the resolved options for report serialization.
func (c Config) AsMap() map[string]any {
	return c.resolved.AsMap()
}

// #endregion derived
