package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/data"
)

// #region model-interface

// ForwardResult holds one sequence's forward pass: the effective
// (bias-augmented) hidden state per step, the predicted probability for
// each step's target skill, and the all-skill prediction rows used for
// knowledge-state output.
type ForwardResult struct {
	States *mat.Dense // steps x (nHidden+1)
	Preds  []float64  // steps
	All    *mat.Dense // steps x nSkills
}

// Model is a trainable knowledge tracing model. The trainable parameters
// are the readout weights; the Trainer owns them exclusively for the run's
// lifetime and replaces them wholesale when resuming from a checkpoint.
type Model interface {
	Kind() Kind
	Forward(seq data.EncodedSeq) ForwardResult
	Parameters() *mat.Dense
	ParamCount() int
	StateDict() StateDict
	LoadStateDict(StateDict) error
}

// #endregion model-interface

// #region state-dict

// StateDict is the serializable snapshot of a model's trainable parameters.
type StateDict struct {
	Kind    string
	NSkills int
	NHidden int
	Readout []float64 // row-major nSkills x (nHidden+1)
}

// #endregion state-dict

// #region criterion

// Criterion computes a per-prediction loss and its gradient with respect to
// the sigmoid pre-activation.
type Criterion interface {
	Loss(pred, target float64) float64
	Delta(pred, target float64) float64
}

// BCELoss is binary cross-entropy over sigmoid outputs.
type BCELoss struct{}

const bceEps = 1e-7

// Loss returns -(a·ln p + (1-a)·ln(1-p)) with p clamped away from 0 and 1.
func (BCELoss) Loss(pred, target float64) float64 {
	p := math.Min(math.Max(pred, bceEps), 1-bceEps)
	return -(target*math.Log(p) + (1-target)*math.Log(1-p))
}

// Delta returns dLoss/dz for z the sigmoid pre-activation, which for BCE
// collapses to pred - target.
func (BCELoss) Delta(pred, target float64) float64 {
	return pred - target
}

// #endregion criterion

// #region optimizer

// Optimizer applies one parameter update from an accumulated gradient.
type Optimizer interface {
	Step(w, grad *mat.Dense)
}

// SGD is plain stochastic gradient descent.
type SGD struct {
	LR float64
}

// Step applies w ← w - lr·grad.
func (s SGD) Step(w, grad *mat.Dense) {
	var scaled mat.Dense
	scaled.Scale(s.LR, grad)
	w.Sub(w, &scaled)
}

// #endregion optimizer

// #region batch-result

// BatchResult is the uniform output of a loss-batch call.
type BatchResult struct {
	Loss      float64
	BatchSize int

	// Concatenated per-step outputs across the batch's sequences.
	Preds   []float64
	QIDs    []int
	Actuals []float64

	// All-skill predictions per step for the batch's last sequence
	// (steps x nSkills), the raw material for knowledge-state heatmaps.
	KnowledgeState *mat.Dense
}

// LossBatchFunc runs one batch through a model. A non-nil optimizer means
// forward, gradient, and parameter update (training); a nil optimizer means
// forward only (evaluation). This is the single switch distinguishing the
// two modes.
type LossBatchFunc func(m Model, criterion Criterion, b data.Batch, opt Optimizer) (BatchResult, error)

// #endregion batch-result

// #region helpers

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func checkDims(sd StateDict, hp Hyperparams, kind Kind) error {
	if sd.Kind != kind.String() {
		return fmt.Errorf("checkpoint is for model %q, want %q", sd.Kind, kind)
	}
	if sd.NSkills != hp.NSkills || sd.NHidden != hp.NHidden {
		return fmt.Errorf("checkpoint dims %dx%d do not match model %dx%d",
			sd.NSkills, sd.NHidden, hp.NSkills, hp.NHidden)
	}
	if want := sd.NSkills * (sd.NHidden + 1); len(sd.Readout) != want {
		return fmt.Errorf("checkpoint readout has %d values, want %d", len(sd.Readout), want)
	}
	return nil
}

// #endregion helpers
