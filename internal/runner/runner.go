// Package runner executes a batch of experiments from a single config file:
// resolve, seed, build, train, collect reports, notify once.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/config"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/data"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/model"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/notify"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/registry"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/results"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/seed"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/trainer"
)

// ErrDuplicateExperimentName rejects a batch whose experiments would write
// into the same results directory.
var ErrDuplicateExperimentName = errors.New("duplicate experiment name in batch")

// #region runner-struct

// Runner executes experiment batches.
type Runner struct {
	ResultsDir string
	DataDir    string
	Registry   *registry.Store
	Notifier   notify.Notifier
	Logger     *log.Logger
}

// New builds a Runner with a log notifier and standard logger by default.
func New(resultsDir, dataDir string) *Runner {
	return &Runner{
		ResultsDir: resultsDir,
		DataDir:    dataDir,
		Notifier:   notify.LogNotifier{},
		Logger:     log.Default(),
	}
}

// #endregion runner-struct

// #region run-batch

// RunBatch loads the batch config at path and runs every experiment in
// order. Reports are aggregated into <results>/reports/{stem}result.json and
// a single notification is sent at the end. An unrecoverable experiment
// error aborts the batch; an interrupt inside a session is recoverable and
// recorded in that experiment's report.
func (r *Runner) RunBatch(ctx context.Context, configPath string) ([]trainer.Report, error) {
	batch, err := config.LoadBatch(configPath)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	if err := checkUniqueNames(batch.Experiments); err != nil {
		return nil, err
	}

	fallback := batch.Fallback
	if fallback == nil {
		fallback = config.DefaultFallback()
	}

	var reports []trainer.Report
	for _, exp := range batch.Experiments {
		cfg, err := r.resolveExperiment(batch.Common, exp, fallback)
		if err != nil {
			return reports, fmt.Errorf("experiment %s: %w", exp.Name, err)
		}
		r.Logger.Printf("[RUNNER] experiment %s (%s)", cfg.ExpName, cfg.ModelFname())

		rep, err := r.runExperiment(ctx, cfg)
		if err != nil {
			return reports, fmt.Errorf("experiment %s: %w", cfg.ExpName, err)
		}
		reports = append(reports, rep)

		if ctx.Err() != nil {
			break
		}
	}

	aggPath, err := r.writeAggregate(configPath, reports)
	if err != nil {
		return reports, err
	}
	r.notify(configPath, reports, aggPath)
	return reports, nil
}

func checkUniqueNames(exps []config.ExperimentOptions) error {
	seen := make(map[string]struct{}, len(exps))
	for _, exp := range exps {
		if _, dup := seen[exp.Name]; dup {
			return fmt.Errorf("%q: %w", exp.Name, ErrDuplicateExperimentName)
		}
		seen[exp.Name] = struct{}{}
	}
	return nil
}

// resolveExperiment layers common options under the experiment's own and
// resolves against the fallback schema.
func (r *Runner) resolveExperiment(common map[string]any, exp config.ExperimentOptions, fb config.Fallback) (config.Config, error) {
	merged := config.MergeOptions(common, exp.Options)
	resolved, err := config.Resolve(merged, fb)
	if err != nil {
		return config.Config{}, err
	}
	return config.FromResolved(resolved)
}

// #endregion run-batch

// #region run-experiment

func (r *Runner) runExperiment(ctx context.Context, cfg config.Config) (trainer.Report, error) {
	seed.Everything(int64(cfg.Seed))
	rng := seed.Source("experiment")

	seqs, err := data.FromSource(cfg.SourceData, r.DataDir, cfg.NSkills, rng)
	if err != nil {
		return trainer.Report{}, fmt.Errorf("load data %s: %w", cfg.SourceData, err)
	}
	train, eval := data.Prepare(seqs, cfg.NSkills, cfg.SequenceSize, cfg.BatchSize, rng)

	kind, err := model.ParseKind(cfg.ModelName)
	if err != nil {
		return trainer.Report{}, err
	}
	hp := model.DefaultHyperparams(cfg.NSkills)
	hp.SequenceSize = cfg.SequenceSize
	hp.BatchSize = cfg.BatchSize
	hp.ExtendBackward = cfg.ExtendBackward
	hp.ExtendForward = cfg.ExtendForward
	hp.KSLoss = cfg.KSLoss
	hp.Device = model.PickDevice(cfg.Cuda)

	m, lossBatch, err := model.New(kind, hp, seed.Source("model"))
	if err != nil {
		return trainer.Report{}, err
	}

	res := results.New(r.ResultsDir, cfg.ExpName, cfg.StartTime)
	tr := trainer.New(cfg, m, lossBatch, train, eval, res, r.Registry, r.Logger)
	return tr.Run(ctx)
}

// #endregion run-experiment

// #region aggregate

// AggregatePath derives the batch report location from the config filename.
func AggregatePath(resultsDir, configPath string) string {
	stem := strings.TrimSuffix(filepath.Base(configPath), filepath.Ext(configPath))
	return filepath.Join(resultsDir, "reports", stem+"result.json")
}

func (r *Runner) writeAggregate(configPath string, reports []trainer.Report) (string, error) {
	path := AggregatePath(r.ResultsDir, configPath)
	if err := results.WriteJSON(path, reports); err != nil {
		return "", fmt.Errorf("write aggregate report: %w", err)
	}
	return path, nil
}

func (r *Runner) notify(configPath string, reports []trainer.Report, aggPath string) {
	interrupted := 0
	for _, rep := range reports {
		if rep.Interrupted {
			interrupted++
		}
	}
	body := fmt.Sprintf("%d experiments finished (%d interrupted), reports at %s",
		len(reports), interrupted, aggPath)
	if err := r.Notifier.Notify(filepath.Base(configPath), body); err != nil {
		r.Logger.Printf("[RUNNER] notify: %v", err)
	}
}

// #endregion aggregate
