// Package trainer drives one experiment's train/eval session: epoch loop,
// learning curve tracking, best-AUC checkpointing, and final report.
package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/config"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/data"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/metrics"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/model"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/registry"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/results"
)

// ErrInterrupted marks a training session stopped by context cancellation.
// Partial metrics collected before the interrupt are preserved in the report.
var ErrInterrupted = errors.New("training interrupted")

// #region intervals
const (
	// CurveInterval is the epoch stride for learning-curve samples.
	CurveInterval = 10
	// EvalInterval is the epoch stride for held-out evaluation and
	// checkpoint consideration.
	EvalInterval = 100
)
// #endregion intervals

// #region report

// Report is the per-experiment result record dumped at the end of every
// session, interrupted or not. BestEvalAUCEpoch 0 means no evaluation
// interval was reached (epochs count from 1). EvalAUC is nil when the
// final eval window held a single class and AUC was undefined.
type Report struct {
	ModelFname       string         `json:"model_fname"`
	BestEvalAUC      float64        `json:"best_eval_auc"`
	BestEvalAUCEpoch int            `json:"best_eval_auc_epoch,omitempty"`
	EvalAUC          *float64       `json:"eval_auc,omitempty"`
	EvalPrecision    float64        `json:"eval_precision"`
	Interrupted      bool           `json:"interrupted"`
	Config           map[string]any `json:"config"`
}

// #endregion report

// #region trainer-struct

// Trainer owns one experiment session. Build it with New and call Run once.
type Trainer struct {
	cfg       config.Config
	model     model.Model
	lossBatch model.LossBatchFunc
	criterion model.Criterion
	opt       model.Optimizer
	train     data.Loader
	eval      data.Loader
	res       *results.Results
	reg       *registry.Store
	logger    *log.Logger

	curve  metrics.Curve
	report Report
	runID  string
}

// New assembles a Trainer. reg may be nil when no run registry is configured.
func New(cfg config.Config, m model.Model, lb model.LossBatchFunc,
	train, eval data.Loader, res *results.Results, reg *registry.Store,
	logger *log.Logger) *Trainer {
	if logger == nil {
		logger = log.Default()
	}
	return &Trainer{
		cfg:       cfg,
		model:     m,
		lossBatch: lb,
		criterion: model.BCELoss{},
		opt:       model.SGD{LR: cfg.LR},
		train:     train,
		eval:      eval,
		res:       res,
		reg:       reg,
		logger:    logger,
		report: Report{
			ModelFname: cfg.ModelFname(),
			Config:     cfg.AsMap(),
		},
	}
}

// #endregion trainer-struct

// #region run

// Run executes the session: pre-train hook, training, final evaluation.
// The report is dumped on every exit path. An interrupt is recoverable:
// Run returns a report with Interrupted set and a nil error.
func (t *Trainer) Run(ctx context.Context) (rep Report, err error) {
	t.registerRun()
	defer func() {
		t.finishRun(err)
		if _, derr := t.res.SaveReport(&t.report); derr != nil && err == nil {
			err = fmt.Errorf("dump report: %w", derr)
		}
		rep = t.report
	}()

	if t.cfg.LoadModel != "" {
		if err = t.resume(); err != nil {
			return
		}
	} else {
		t.preTrain()
		if err = t.trainLoop(ctx); err != nil {
			if errors.Is(err, ErrInterrupted) {
				t.report.Interrupted = true
				t.logger.Printf("[TRAIN] interrupted, dumping partial report for %s", t.cfg.ExpName)
				err = nil
			}
			if err != nil {
				return
			}
		}
	}

	err = t.evaluate()
	return
}

// preTrain runs before the first epoch. Deliberately a no-op today; the
// hook keeps the session shape stable for warm-start experiments.
func (t *Trainer) preTrain() {}

// #endregion run

// #region train-loop

func (t *Trainer) trainLoop(ctx context.Context) error {
	t.logger.Printf("[TRAIN] %s: model %s on %s, %d params, %d train / %d eval seqs",
		t.cfg.ExpName, t.cfg.ModelName, model.PickDevice(t.cfg.Cuda),
		t.model.ParamCount(), t.train.NumSequences(), t.eval.NumSequences())

	start := time.Now()
	for epoch := 1; epoch <= t.cfg.EpochSize; epoch++ {
		trainLoss, trainRes, err := t.runEpoch(ctx, t.train, t.opt)
		if err != nil {
			return err
		}

		if epoch%CurveInterval == 0 {
			p := metrics.Point{
				TrainLoss: trainLoss,
				TrainAUC:  t.safeAUC(trainRes),
				EvalLoss:  metrics.NaN(),
				EvalAUC:   metrics.NaN(),
			}
			if epoch%EvalInterval == 0 {
				evalLoss, evalRes, err := t.runEpoch(ctx, t.eval, nil)
				if err != nil {
					return err
				}
				p.EvalLoss = evalLoss
				p.EvalAUC = t.safeAUC(evalRes)
				t.maybeCheckpoint(p.EvalAUC, epoch)

				elapsed := time.Since(start)
				eta := elapsed / time.Duration(epoch) * time.Duration(t.cfg.EpochSize-epoch)
				t.logger.Printf("[TRAIN] epoch %d/%d train_loss=%.4f train_auc=%.4f eval_loss=%.4f eval_auc=%.4f elapsed=%s eta=%s",
					epoch, t.cfg.EpochSize, p.TrainLoss, p.TrainAUC, p.EvalLoss, p.EvalAUC,
					elapsed.Round(time.Second), eta.Round(time.Second))
			}
			t.curve.Append(epoch, p)
		}
	}
	return nil
}

// runEpoch runs all batches of a loader once. A nil optimizer makes it a
// pure scoring pass. In debug mode only the first batch runs.
func (t *Trainer) runEpoch(ctx context.Context, loader data.Loader, opt model.Optimizer) (float64, epochResult, error) {
	var er epochResult
	var lossSum float64
	var sizeSum int

	for i, b := range loader.Batches() {
		select {
		case <-ctx.Done():
			return 0, er, ErrInterrupted
		default:
		}

		br, err := t.lossBatch(t.model, t.criterion, b, opt)
		if err != nil {
			return 0, er, fmt.Errorf("batch %d: %w", i, err)
		}

		lossSum += br.Loss * float64(br.BatchSize)
		sizeSum += br.BatchSize
		er.preds = append(er.preds, br.Preds...)
		er.actuals = append(er.actuals, br.Actuals...)
		er.knowledgeState = br.KnowledgeState

		if t.cfg.Debug && i == 0 {
			break
		}
	}
	if sizeSum == 0 {
		return 0, er, errors.New("loader produced no batches")
	}
	return lossSum / float64(sizeSum), er, nil
}

type epochResult struct {
	preds          []float64
	actuals        []float64
	knowledgeState *mat.Dense
}

// safeAUC computes AUC, falling back to NaN when the window happens to
// contain a single class.
func (t *Trainer) safeAUC(er epochResult) float64 {
	auc, err := metrics.AUC(er.preds, er.actuals)
	if err != nil {
		return metrics.NaN()
	}
	return auc
}

// #endregion train-loop

// #region checkpoint

func (t *Trainer) maybeCheckpoint(evalAUC float64, epoch int) {
	if !(evalAUC > t.report.BestEvalAUC) {
		return
	}
	t.report.BestEvalAUC = evalAUC
	t.report.BestEvalAUCEpoch = epoch

	name := t.cfg.ModelFname()
	path, err := t.res.SaveModel(name, t.model.StateDict(), evalAUC, epoch)
	if err != nil {
		t.logger.Printf("[TRAIN] save checkpoint: %v", err)
		return
	}
	if _, err := t.res.SaveCurve(name, &t.curve, evalAUC, epoch); err != nil {
		t.logger.Printf("[TRAIN] save curve: %v", err)
	}
	t.logger.Printf("[TRAIN] new best eval auc %.4f at epoch %d -> %s", evalAUC, epoch, path)

	if t.reg != nil {
		if err := t.reg.RecordCheckpoint(t.runID, path, evalAUC, epoch); err != nil {
			t.logger.Printf("[TRAIN] record checkpoint: %v", err)
		}
		if err := t.reg.LogEvent(t.runID, "checkpoint",
			fmt.Sprintf("auc %.4f epoch %d", evalAUC, epoch)); err != nil {
			t.logger.Printf("[TRAIN] log event: %v", err)
		}
	}
}

// #endregion checkpoint

// #region evaluate

// evaluate runs the final no-grad pass and fills the report's eval metrics,
// plus the optional figure artifacts.
func (t *Trainer) evaluate() error {
	_, er, err := t.runEpoch(context.Background(), t.eval, nil)
	if err != nil {
		return fmt.Errorf("final evaluation: %w", err)
	}

	auc := t.safeAUC(er)
	if !math.IsNaN(auc) {
		t.report.EvalAUC = &auc
	}
	t.report.EvalPrecision = metrics.Precision(er.preds, er.actuals, 0.5)
	t.logger.Printf("[EVAL] %s: auc=%.4f precision=%.4f",
		t.cfg.ExpName, auc, t.report.EvalPrecision)

	name := t.cfg.ModelFname()
	if t.cfg.PlotLC && t.curve.Len() > 0 {
		if _, err := t.res.SaveLearningCurveFig(name, &t.curve); err != nil {
			t.logger.Printf("[EVAL] save learning curve figure: %v", err)
		}
	}
	if t.cfg.PlotHeatmap && er.knowledgeState != nil {
		if _, err := t.res.SaveHeatmapFig(name, er.knowledgeState); err != nil {
			t.logger.Printf("[EVAL] save heatmap figure: %v", err)
		}
	}
	return nil
}

// #endregion evaluate

// #region resume

// resume loads checkpoint weights wholesale and skips training.
func (t *Trainer) resume() error {
	sd, err := results.LoadStateDict(t.cfg.LoadModel)
	if err != nil {
		return fmt.Errorf("load model %s: %w", t.cfg.LoadModel, err)
	}
	if err := t.model.LoadStateDict(sd); err != nil {
		return fmt.Errorf("load model %s: %w", t.cfg.LoadModel, err)
	}
	t.logger.Printf("[TRAIN] %s: loaded weights from %s, skipping training",
		t.cfg.ExpName, t.cfg.LoadModel)
	return nil
}

// #endregion resume

// #region registry-hooks

func (t *Trainer) registerRun() {
	if t.reg == nil {
		return
	}
	cfgJSON, err := json.Marshal(t.cfg.AsMap())
	if err != nil {
		t.logger.Printf("[TRAIN] marshal config: %v", err)
		cfgJSON = []byte("{}")
	}
	rec, err := t.reg.CreateRun(t.cfg.ExpName, t.cfg.ModelFname(), string(cfgJSON))
	if err != nil {
		t.logger.Printf("[TRAIN] create run: %v", err)
		return
	}
	t.runID = rec.RunID
}

func (t *Trainer) finishRun(runErr error) {
	if t.reg == nil || t.runID == "" {
		return
	}
	status := registry.StatusCompleted
	switch {
	case t.report.Interrupted:
		status = registry.StatusInterrupted
	case runErr != nil:
		status = registry.StatusFailed
	}
	if err := t.reg.FinishRun(t.runID, status); err != nil {
		t.logger.Printf("[TRAIN] finish run: %v", err)
	}
}

// #endregion registry-hooks
