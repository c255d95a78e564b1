// Package results persists run artifacts to the results directory: model
// checkpoints, learning-curve data, figures, and reports. The layout is
// <base>/<exp_name>/<start_time>/{checkpoints,lc_data,heatmap,learning_curve,report}.
// Checkpoint files are write-once: the filename encodes model name, AUC,
// and epoch, so callers treat them as immutable.
package results

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/model"
)

// #region results-struct

// Results writes artifacts for one experiment run.
type Results struct {
	dir string
}

// New roots a Results at <base>/<expName>/<startTime>.
func New(base, expName, startTime string) *Results {
	return &Results{dir: filepath.Join(base, expName, startTime)}
}

// Dir returns the run's artifact directory.
func (r *Results) Dir() string { return r.dir }

// CheckpointsDir returns the checkpoint subdirectory.
func (r *Results) CheckpointsDir() string { return filepath.Join(r.dir, "checkpoints") }

// #endregion results-struct

// #region checkpoint-naming

// CheckpointName derives the checkpoint filename from model name, AUC, and
// epoch. The AUC is fixed to four decimals and the epoch zero-padded so
// lexicographic filename order equals numeric (auc, epoch) order.
func CheckpointName(name string, auc float64, epoch int) string {
	return fmt.Sprintf("%s_auc%.4f_e%04d.model", name, auc, epoch)
}

// ParseCheckpointName recovers (auc, epoch) from a checkpoint filename.
func ParseCheckpointName(fname string) (auc float64, epoch int, err error) {
	base := strings.TrimSuffix(filepath.Base(fname), ".model")
	i := strings.LastIndex(base, "_auc")
	j := strings.LastIndex(base, "_e")
	if i < 0 || j < 0 || j < i {
		return 0, 0, fmt.Errorf("checkpoint name %q does not match <name>_auc<auc>_e<epoch>.model", fname)
	}
	auc, err = strconv.ParseFloat(base[i+len("_auc"):j], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("checkpoint name %q: bad auc: %w", fname, err)
	}
	epoch, err = strconv.Atoi(base[j+len("_e"):])
	if err != nil {
		return 0, 0, fmt.Errorf("checkpoint name %q: bad epoch: %w", fname, err)
	}
	return auc, epoch, nil
}

// BestCheckpoint returns the checkpoint with the highest (auc, epoch) in a
// directory, which by the naming scheme is the last file in sort order.
func BestCheckpoint(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read checkpoints dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".model") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no checkpoints in %s", dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

// #endregion checkpoint-naming

// #region save-model

// SaveModel writes the model's parameter snapshot, creating the checkpoint
// directory if absent. Returns the written path.
func (r *Results) SaveModel(name string, sd model.StateDict, auc float64, epoch int) (string, error) {
	dir := r.CheckpointsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create checkpoints dir: %w", err)
	}
	path := filepath.Join(dir, CheckpointName(name, auc, epoch))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create checkpoint: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(sd); err != nil {
		return "", fmt.Errorf("encode checkpoint: %w", err)
	}
	return path, nil
}

// LoadStateDict reads a checkpoint file back into a parameter snapshot.
// Used by the resume path; it is a direct file load.
func LoadStateDict(path string) (model.StateDict, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.StateDict{}, fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	defer f.Close()
	var sd model.StateDict
	if err := gob.NewDecoder(f).Decode(&sd); err != nil {
		return model.StateDict{}, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	return sd, nil
}

// #endregion save-model

// #region save-json

// SaveCurve writes the learning-curve snapshot paired with a checkpoint,
// using the same naming scheme with a .lc.json suffix.
func (r *Results) SaveCurve(name string, v any, auc float64, epoch int) (string, error) {
	fname := strings.TrimSuffix(CheckpointName(name, auc, epoch), ".model") + ".lc.json"
	return r.writeJSON(filepath.Join("lc_data", fname), v)
}

// SaveReport writes the run's report JSON.
func (r *Results) SaveReport(v any) (string, error) {
	return r.writeJSON(filepath.Join("report", "report.json"), v)
}

func (r *Results) writeJSON(rel string, v any) (string, error) {
	path := filepath.Join(r.dir, rel)
	if err := WriteJSON(path, v); err != nil {
		return "", err
	}
	return path, nil
}

// WriteJSON marshals v and writes it to path, creating parent directories.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// #endregion save-json
