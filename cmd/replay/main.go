package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/config"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/data"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/metrics"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/model"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/results"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/seed"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/trainer"
)

// #region main

func main() {
	runDir := flag.String("run", "", "path to a run directory (results/<exp>/<starttime>)")
	dataDir := flag.String("data", "data", "directory holding dataset CSV files")
	tol := flag.Float64("tol", 1e-6, "allowed AUC divergence")
	flag.Parse()

	if *runDir == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --run results/<exp>/<starttime> [--data dir] [--tol eps]")
		os.Exit(2)
	}

	exitCode, err := replayRun(*runDir, *dataDir, *tol)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(2)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region replay

// replayRun re-evaluates the run's best checkpoint on the same data split
// and compares the recomputed AUC against the stored report. Returns exit
// code 0 on match, 1 on divergence.
func replayRun(runDir, dataDir string, tol float64) (int, error) {
	rep, err := loadReport(runDir)
	if err != nil {
		return 0, err
	}
	cfg, err := configFromReport(rep)
	if err != nil {
		return 0, err
	}

	ckpt, err := results.BestCheckpoint(filepath.Join(runDir, "checkpoints"))
	if err != nil {
		return 0, err
	}

	auc, err := reevaluate(cfg, dataDir, ckpt)
	if err != nil {
		return 0, err
	}

	// The best checkpoint's weights were scored at save time; the report
	// keeps that value at full precision in best_eval_auc.
	diff := math.Abs(auc - rep.BestEvalAUC)
	status := "OK"
	exitCode := 0
	if diff > tol {
		status = "DIFF"
		exitCode = 1
	}
	fmt.Printf("%-20s  stored=%.6f  replayed=%.6f  diff=%.2e  %s\n",
		rep.ModelFname, rep.BestEvalAUC, auc, diff, status)
	return exitCode, nil
}

func loadReport(runDir string) (trainer.Report, error) {
	raw, err := os.ReadFile(filepath.Join(runDir, "report", "report.json"))
	if err != nil {
		return trainer.Report{}, fmt.Errorf("read report: %w", err)
	}
	var rep trainer.Report
	if err := json.Unmarshal(raw, &rep); err != nil {
		return trainer.Report{}, fmt.Errorf("parse report: %w", err)
	}
	return rep, nil
}

// configFromReport feeds the report's stored option map back through the
// resolver, so the replay sees exactly the options the run saw.
func configFromReport(rep trainer.Report) (config.Config, error) {
	resolved, err := config.Resolve(rep.Config, config.DefaultFallback())
	if err != nil {
		return config.Config{}, fmt.Errorf("resolve stored config: %w", err)
	}
	return config.FromResolved(resolved)
}

// reevaluate rebuilds the data split and model under the run's seed, loads
// the checkpoint weights and scores the eval split.
func reevaluate(cfg config.Config, dataDir, ckpt string) (float64, error) {
	seed.Everything(int64(cfg.Seed))
	rng := seed.Source("experiment")

	seqs, err := data.FromSource(cfg.SourceData, dataDir, cfg.NSkills, rng)
	if err != nil {
		return 0, fmt.Errorf("load data: %w", err)
	}
	_, eval := data.Prepare(seqs, cfg.NSkills, cfg.SequenceSize, cfg.BatchSize, rng)

	kind, err := model.ParseKind(cfg.ModelName)
	if err != nil {
		return 0, err
	}
	hp := model.DefaultHyperparams(cfg.NSkills)
	hp.SequenceSize = cfg.SequenceSize
	hp.BatchSize = cfg.BatchSize
	hp.ExtendBackward = cfg.ExtendBackward
	hp.ExtendForward = cfg.ExtendForward
	hp.KSLoss = cfg.KSLoss

	m, lossBatch, err := model.New(kind, hp, seed.Source("model"))
	if err != nil {
		return 0, err
	}
	sd, err := results.LoadStateDict(ckpt)
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if err := m.LoadStateDict(sd); err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}

	var preds, actuals []float64
	for i, b := range eval.Batches() {
		br, err := lossBatch(m, model.BCELoss{}, b, nil)
		if err != nil {
			return 0, err
		}
		preds = append(preds, br.Preds...)
		actuals = append(actuals, br.Actuals...)

		// Debug runs score only the first batch; mirror that.
		if cfg.Debug && i == 0 {
			break
		}
	}
	return metrics.AUC(preds, actuals)
}

// #endregion replay
