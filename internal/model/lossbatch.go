package model

import (
	"errors"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/data"
)

// ksLambda weights the auxiliary knowledge-state loss: a temporal
// smoothness penalty on consecutive all-skill predictions.
const ksLambda = 0.05

// #region factory

// New constructs an initialized model of the given kind together with its
// loss-batch function. Parameter initialization draws from rng, so seeding
// the source seeds the model.
func New(kind Kind, hp Hyperparams, rng *rand.Rand) (Model, LossBatchFunc, error) {
	switch kind {
	case KindEncDec, KindBaseRNN, KindBaseLSTM, KindSeq2Seq:
	default:
		return nil, nil, ErrUnsupportedModel
	}
	m := newDKT(kind, hp, rng)
	ks := hp.KSLoss
	lb := func(m Model, criterion Criterion, b data.Batch, opt Optimizer) (BatchResult, error) {
		return lossBatch(m, criterion, b, opt, ks)
	}
	return m, lb, nil
}

// #endregion factory

// #region loss-batch

// lossBatch runs one batch. With an optimizer it accumulates the exact
// readout gradient across all sequences and applies a single update; with
// opt == nil it only scores.
func lossBatch(m Model, criterion Criterion, b data.Batch, opt Optimizer, ksLoss bool) (BatchResult, error) {
	if b.Size() == 0 {
		return BatchResult{}, errors.New("empty batch")
	}

	w := m.Parameters()
	rows, cols := w.Dims()
	var grad *mat.Dense
	if opt != nil {
		grad = mat.NewDense(rows, cols, nil)
	}

	res := BatchResult{BatchSize: b.Size()}
	var lossSum float64
	var totalSteps int

	for _, seq := range b.Seqs {
		fr := m.Forward(seq)
		steps := seq.Steps()
		totalSteps += steps

		for t := 0; t < steps; t++ {
			p := fr.Preds[t]
			a := seq.TargetA[t]
			lossSum += criterion.Loss(p, a)

			res.Preds = append(res.Preds, p)
			res.QIDs = append(res.QIDs, seq.TargetQ[t])
			res.Actuals = append(res.Actuals, a)

			if grad != nil {
				delta := criterion.Delta(p, a)
				gRow := grad.RawRowView(seq.TargetQ[t])
				sRow := fr.States.RawRowView(t)
				for k, v := range sRow {
					gRow[k] += delta * v
				}
			}
		}

		if ksLoss {
			lossSum += ksLambda * ksPenalty(fr, grad)
		}
		res.KnowledgeState = fr.All
	}

	res.Loss = lossSum / float64(totalSteps)
	if opt != nil {
		grad.Scale(1/float64(totalSteps), grad)
		opt.Step(w, grad)
	}
	return res, nil
}

// ksPenalty computes the smoothness penalty Σ_t Σ_k (p_k(t) - p_k(t-1))²
// and, when grad is non-nil, accumulates its exact readout gradient scaled
// by ksLambda (the caller's 1/totalSteps normalization applies afterwards).
func ksPenalty(fr ForwardResult, grad *mat.Dense) float64 {
	steps, nSkills := fr.All.Dims()
	var penalty float64
	for t := 1; t < steps; t++ {
		cur := fr.All.RawRowView(t)
		prev := fr.All.RawRowView(t - 1)
		for k := 0; k < nSkills; k++ {
			d := cur[k] - prev[k]
			if d == 0 {
				continue
			}
			penalty += d * d
			if grad != nil {
				gRow := grad.RawRowView(k)
				sCur := fr.States.RawRowView(t)
				sPrev := fr.States.RawRowView(t - 1)
				dpCur := cur[k] * (1 - cur[k])
				dpPrev := prev[k] * (1 - prev[k])
				scale := 2 * ksLambda * d
				for j := range gRow {
					gRow[j] += scale * (dpCur*sCur[j] - dpPrev*sPrev[j])
				}
			}
		}
	}
	return penalty
}

// #endregion loss-batch
