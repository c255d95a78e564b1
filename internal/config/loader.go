package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// #region batch-types

// Batch is a parsed batch configuration: shared options plus a list of named
// experiments, together with the fallback schema they resolve against.
type Batch struct {
	Common      map[string]any
	Experiments []ExperimentOptions
	Fallback    Fallback
}

// ExperimentOptions is one experiment's raw (unresolved) option overrides.
type ExperimentOptions struct {
	Name    string
	Options map[string]any
}

// #endregion batch-types

// #region load-batch

// LoadBatch reads a batch configuration file, dispatching on extension:
// .json for the batch JSON format, anything else for the legacy INI format.
func LoadBatch(path string) (Batch, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadBatchJSON(path)
	}
	return LoadBatchINI(path)
}

// #endregion load-batch

// #region json-loader

// batchJSON mirrors the on-disk batch config structure.
type batchJSON struct {
	Common      map[string]any   `json:"common"`
	Experiments []map[string]any `json:"experiments"`
}

// LoadBatchJSON parses a JSON batch config. Each experiment entry must carry
// an "exp_name" key; the remaining keys are option overrides. A sibling
// fallback.json, when present, replaces the in-code default schema.
func LoadBatchJSON(path string) (Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Batch{}, fmt.Errorf("read batch config %s: %w", path, err)
	}
	var raw batchJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Batch{}, fmt.Errorf("parse batch config %s: %w", path, err)
	}

	b := Batch{Common: raw.Common}
	if b.Common == nil {
		b.Common = map[string]any{}
	}
	for i, exp := range raw.Experiments {
		name, _ := exp["exp_name"].(string)
		if name == "" {
			return Batch{}, fmt.Errorf("experiment %d in %s has no exp_name", i, path)
		}
		opts := make(map[string]any, len(exp))
		for k, v := range exp {
			if k == "exp_name" {
				continue
			}
			opts[k] = v
		}
		// exp_name feeds the section_name option so ExpName derivation
		// matches the legacy INI path.
		opts["section_name"] = name
		b.Experiments = append(b.Experiments, ExperimentOptions{Name: name, Options: opts})
	}

	fb, err := loadFallbackJSON(filepath.Join(filepath.Dir(path), "fallback.json"))
	if err != nil {
		return Batch{}, err
	}
	b.Fallback = fb
	return b, nil
}

// fallbackJSON entries are either concrete default values or a marker object
// {"required": "string"|"bool"|"int"|"float"} declaring a required option.
func loadFallbackJSON(path string) (Fallback, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultFallback(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fallback schema %s: %w", path, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fallback schema %s: %w", path, err)
	}

	fb := make(Fallback, len(raw))
	for key, v := range raw {
		switch x := v.(type) {
		case string:
			fb[key] = String(x)
		case bool:
			fb[key] = Bool(x)
		case float64:
			if x == float64(int(x)) {
				fb[key] = Int(int(x))
			} else {
				fb[key] = Float(x)
			}
		case map[string]any:
			tname, _ := x["required"].(string)
			t, err := parseTypeName(tname)
			if err != nil {
				return nil, fmt.Errorf("fallback schema key %q: %w", key, err)
			}
			fb[key] = Required(t)
		default:
			return nil, fmt.Errorf("fallback schema key %q has unsupported value %T: %w", key, v, ErrBadOptionValue)
		}
	}
	return fb, nil
}

func parseTypeName(s string) (ValueType, error) {
	switch s {
	case "string", "str":
		return TypeString, nil
	case "bool":
		return TypeBool, nil
	case "int":
		return TypeInt, nil
	case "float":
		return TypeFloat, nil
	}
	return 0, fmt.Errorf("unknown required type %q: %w", s, ErrBadOptionValue)
}

// #endregion json-loader

// #region ini-loader

// LoadBatchINI parses a legacy INI batch config: a [common] section of
// shared options and one section per experiment, resolved against the
// in-code default schema.
func LoadBatchINI(path string) (Batch, error) {
	f, err := ini.Load(path)
	if err != nil {
		return Batch{}, fmt.Errorf("read batch config %s: %w", path, err)
	}

	b := Batch{Common: map[string]any{}, Fallback: DefaultFallback()}
	for _, section := range f.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}
		opts := make(map[string]any)
		for _, k := range section.Keys() {
			opts[k.Name()] = k.String()
		}
		if name == "common" {
			b.Common = opts
			continue
		}
		opts["section_name"] = name
		b.Experiments = append(b.Experiments, ExperimentOptions{Name: name, Options: opts})
	}
	return b, nil
}

// #endregion ini-loader
