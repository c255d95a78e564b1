package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/data"
)

// #region dkt-model

// dktModel implements all four architecture kinds over a shared core: an
// encoder reservoir, an optional decoder reservoir with a fixed context
// projection (encdec and seq2seq), and a trainable per-skill readout.
type dktModel struct {
	kind Kind
	hp   Hyperparams

	enc  *reservoir
	dec  *reservoir // encdec/seq2seq
	wctx *mat.Dense // nHidden x nHidden, mixes the encoder context in

	w *mat.Dense // readout, nSkills x (nHidden+1)
}

func newDKT(kind Kind, hp Hyperparams, rng *rand.Rand) *dktModel {
	m := &dktModel{
		kind: kind,
		hp:   hp,
		w:    randDense(hp.NSkills, hp.NHidden+1, 0.01, 0, rng),
	}
	gated := kind == KindBaseLSTM
	m.enc = newReservoir(hp.OnehotSize, hp.NHidden, hp.NLayers, gated, hp.Dropout, rng)
	if kind == KindEncDec || kind == KindSeq2Seq {
		m.dec = newReservoir(hp.OnehotSize, hp.NHidden, hp.NLayers, false, hp.Dropout, rng)
		m.wctx = randDense(hp.NHidden, hp.NHidden, 0.3/float64(hp.NHidden), 0, rng)
	}
	return m
}

func (m *dktModel) Kind() Kind { return m.kind }

func (m *dktModel) Parameters() *mat.Dense { return m.w }

func (m *dktModel) ParamCount() int {
	r, c := m.w.Dims()
	return r * c
}

// #endregion dkt-model

// #region forward

// Forward computes the effective state per step and the readout
// predictions. For encdec and seq2seq the decoder states get the encoder's
// final state mixed in through the fixed context projection; the
// extend_backward/extend_forward options widen each step's effective state
// to a window average.
func (m *dktModel) Forward(seq data.EncodedSeq) ForwardResult {
	steps := seq.Steps()
	var hs *mat.Dense

	switch m.kind {
	case KindBaseRNN, KindBaseLSTM:
		hs = m.enc.states(seq.Inputs)

	case KindEncDec:
		hs = m.withContext(m.dec.states(seq.Inputs), m.encoderContext(seq))

	case KindSeq2Seq:
		// The decoder reads the query: the skill about to be answered.
		query := mat.NewDense(steps, m.hp.OnehotSize, nil)
		for t := 0; t < steps; t++ {
			query.Set(t, data.PreservedTokens+2*seq.TargetQ[t], 1)
		}
		hs = m.withContext(m.dec.states(query), m.encoderContext(seq))
	}

	if m.hp.ExtendBackward > 0 || m.hp.ExtendForward > 0 {
		hs = windowAverage(hs, m.hp.ExtendBackward, m.hp.ExtendForward)
	}

	states := mat.NewDense(steps, m.hp.NHidden+1, nil)
	preds := make([]float64, steps)
	all := mat.NewDense(steps, m.hp.NSkills, nil)
	for t := 0; t < steps; t++ {
		row := states.RawRowView(t)
		copy(row, hs.RawRowView(t))
		row[m.hp.NHidden] = 1 // bias input

		for q := 0; q < m.hp.NSkills; q++ {
			var z float64
			wRow := m.w.RawRowView(q)
			for k, v := range row {
				z += wRow[k] * v
			}
			all.Set(t, q, sigmoid(z))
		}
		preds[t] = all.At(t, seq.TargetQ[t])
	}
	return ForwardResult{States: states, Preds: preds, All: all}
}

// encoderContext runs the encoder over the full input and returns its final
// state projected through wctx.
func (m *dktModel) encoderContext(seq data.EncodedSeq) []float64 {
	hs := m.enc.states(seq.Inputs)
	steps, _ := hs.Dims()
	last := hs.RawRowView(steps - 1)

	ctx := make([]float64, m.hp.NHidden)
	for j := 0; j < m.hp.NHidden; j++ {
		var z float64
		row := m.wctx.RawRowView(j)
		for k, v := range last {
			z += row[k] * v
		}
		ctx[j] = z
	}
	return ctx
}

// withContext adds the context vector to every decoder state.
func (m *dktModel) withContext(hs *mat.Dense, ctx []float64) *mat.Dense {
	steps, cols := hs.Dims()
	out := mat.NewDense(steps, cols, nil)
	for t := 0; t < steps; t++ {
		row := out.RawRowView(t)
		src := hs.RawRowView(t)
		for k := range row {
			row[k] = src[k] + ctx[k]
		}
	}
	return out
}

// windowAverage replaces each step's state with the mean over the clipped
// window [t-back, t+fwd].
func windowAverage(hs *mat.Dense, back, fwd int) *mat.Dense {
	steps, cols := hs.Dims()
	out := mat.NewDense(steps, cols, nil)
	for t := 0; t < steps; t++ {
		lo := t - back
		if lo < 0 {
			lo = 0
		}
		hi := t + fwd
		if hi > steps-1 {
			hi = steps - 1
		}
		row := out.RawRowView(t)
		for u := lo; u <= hi; u++ {
			src := hs.RawRowView(u)
			for k := range row {
				row[k] += src[k]
			}
		}
		n := float64(hi - lo + 1)
		for k := range row {
			row[k] /= n
		}
	}
	return out
}

// #endregion forward

// #region state-dict

func (m *dktModel) StateDict() StateDict {
	raw := m.w.RawMatrix()
	out := make([]float64, len(raw.Data))
	copy(out, raw.Data)
	return StateDict{
		Kind:    m.kind.String(),
		NSkills: m.hp.NSkills,
		NHidden: m.hp.NHidden,
		Readout: out,
	}
}

// LoadStateDict replaces the trainable parameters wholesale.
func (m *dktModel) LoadStateDict(sd StateDict) error {
	if err := checkDims(sd, m.hp, m.kind); err != nil {
		return err
	}
	m.w = mat.NewDense(sd.NSkills, sd.NHidden+1, append([]float64(nil), sd.Readout...))
	return nil
}

// #endregion state-dict
