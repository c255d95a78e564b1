package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadBatchJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "batch.json", `{
		"common": {"common_name": "exp_", "epoch_size": 50},
		"experiments": [
			{"exp_name": "base", "model_name": "basernn"},
			{"exp_name": "enc", "model_name": "encdec", "extend_forward": 5}
		]
	}`)

	b, err := LoadBatchJSON(path)
	if err != nil {
		t.Fatalf("LoadBatchJSON: %v", err)
	}
	if len(b.Experiments) != 2 {
		t.Fatalf("expected 2 experiments, got %d", len(b.Experiments))
	}
	if b.Experiments[0].Name != "base" || b.Experiments[1].Name != "enc" {
		t.Fatalf("unexpected experiment names: %+v", b.Experiments)
	}
	if b.Common["common_name"] != "exp_" {
		t.Fatalf("unexpected common options: %+v", b.Common)
	}
	// No sibling fallback.json: in-code schema applies.
	if _, ok := b.Fallback["model_name"]; !ok {
		t.Fatal("expected default fallback schema")
	}
}

func TestLoadBatchJSONSiblingFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fallback.json", `{
		"model_name": {"required": "string"},
		"lr": 0.05,
		"epoch_size": 200,
		"debug": false,
		"section_name": ""
	}`)
	path := writeFile(t, dir, "batch.json", `{
		"experiments": [{"exp_name": "only", "model_name": "baselstm"}]
	}`)

	b, err := LoadBatchJSON(path)
	if err != nil {
		t.Fatalf("LoadBatchJSON: %v", err)
	}
	opt, ok := b.Fallback["model_name"]
	if !ok || !opt.Required || opt.Type != TypeString {
		t.Fatalf("expected required string model_name, got %+v", opt)
	}
	if b.Fallback["epoch_size"].Type != TypeInt {
		t.Fatal("expected integral JSON number to load as int")
	}
	if b.Fallback["lr"].Type != TypeFloat {
		t.Fatal("expected fractional JSON number to load as float")
	}

	merged := MergeOptions(b.Common, b.Experiments[0].Options)
	r, err := Resolve(merged, b.Fallback)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r["model_name"].Str() != "baselstm" {
		t.Fatalf("unexpected model_name %q", r["model_name"].Str())
	}
}

func TestLoadBatchJSONMissingExpName(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "batch.json", `{"experiments": [{"model_name": "basernn"}]}`)

	if _, err := LoadBatchJSON(path); err == nil {
		t.Fatal("expected error for experiment without exp_name")
	}
}

func TestLoadBatchINI(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "batch.ini", `
[common]
common_name = edm_
epoch_size = 30

[lstm]
model_name = baselstm

[encdec-ks]
model_name = encdec
ks_loss = True
`)

	b, err := LoadBatchINI(path)
	if err != nil {
		t.Fatalf("LoadBatchINI: %v", err)
	}
	if len(b.Experiments) != 2 {
		t.Fatalf("expected 2 experiments, got %d", len(b.Experiments))
	}
	if b.Common["common_name"] != "edm_" {
		t.Fatalf("unexpected common options: %+v", b.Common)
	}

	merged := MergeOptions(b.Common, b.Experiments[1].Options)
	r, err := Resolve(merged, b.Fallback)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	c, err := FromResolved(r)
	if err != nil {
		t.Fatalf("FromResolved: %v", err)
	}
	if c.ExpName != "edm_encdec-ks" {
		t.Fatalf("unexpected exp name %q", c.ExpName)
	}
	if !c.KSLoss || c.EpochSize != 30 {
		t.Fatalf("unexpected config: ks_loss=%v epoch_size=%d", c.KSLoss, c.EpochSize)
	}
}

func TestLoadBatchMissingFile(t *testing.T) {
	if _, err := LoadBatch(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
