package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// #region reservoir

// reservoir is a stack of fixed random recurrent layers. The weights are
// drawn once at construction and never trained; only the readout on top of
// the final layer's states learns. The gated variant modulates the state
// update with an input-dependent leak, giving LSTM-like retention.
type reservoir struct {
	layers []reservoirLayer
	gated  bool
}

type reservoirLayer struct {
	win   *mat.Dense // nHidden x inWidth
	wrec  *mat.Dense // nHidden x nHidden
	wgate *mat.Dense // nHidden x inWidth, gated variant only
	leak  float64
}

// newReservoir builds nLayers stacked recurrent layers. The first layer
// reads the one-hot input width; deeper layers read the previous layer's
// hidden state. dropout sparsifies the recurrent matrices at init.
func newReservoir(inWidth, nHidden, nLayers int, gated bool, dropout float64, rng *rand.Rand) *reservoir {
	r := &reservoir{gated: gated}
	width := inWidth
	for l := 0; l < nLayers; l++ {
		layer := reservoirLayer{
			win:  randDense(nHidden, width, 0.5, 0, rng),
			wrec: randDense(nHidden, nHidden, 0.9/math.Sqrt(float64(nHidden)), dropout, rng),
			leak: 1,
		}
		if gated {
			layer.wgate = randDense(nHidden, width, 0.5, 0, rng)
			layer.leak = 0.3
		}
		r.layers = append(r.layers, layer)
		width = nHidden
	}
	return r
}

// randDense draws entries from N(0, scale²), zeroing each with probability
// sparsity.
func randDense(rows, cols int, scale, sparsity float64, rng *rand.Rand) *mat.Dense {
	d := make([]float64, rows*cols)
	for i := range d {
		if sparsity > 0 && rng.Float64() < sparsity {
			continue
		}
		d[i] = rng.NormFloat64() * scale
	}
	return mat.NewDense(rows, cols, d)
}

// #endregion reservoir

// #region states

// states runs the input rows through the layer stack and returns the final
// layer's hidden state per step (steps x nHidden).
func (r *reservoir) states(inputs *mat.Dense) *mat.Dense {
	cur := inputs
	for i := range r.layers {
		cur = r.layers[i].run(cur, r.gated)
	}
	return cur
}

// run advances one layer over all steps.
func (l *reservoirLayer) run(inputs *mat.Dense, gated bool) *mat.Dense {
	steps, _ := inputs.Dims()
	nHidden, _ := l.win.Dims()

	out := mat.NewDense(steps, nHidden, nil)
	h := make([]float64, nHidden)
	pre := make([]float64, nHidden)

	for t := 0; t < steps; t++ {
		x := inputs.RawRowView(t)
		for j := 0; j < nHidden; j++ {
			var z float64
			winRow := l.win.RawRowView(j)
			for k, xv := range x {
				if xv != 0 {
					z += winRow[k] * xv
				}
			}
			wrecRow := l.wrec.RawRowView(j)
			for k, hv := range h {
				if hv != 0 {
					z += wrecRow[k] * hv
				}
			}
			pre[j] = math.Tanh(z)
		}
		for j := 0; j < nHidden; j++ {
			a := l.leak
			if gated && l.wgate != nil {
				var g float64
				gateRow := l.wgate.RawRowView(j)
				for k, xv := range x {
					if xv != 0 {
						g += gateRow[k] * xv
					}
				}
				a = sigmoid(g)
			}
			h[j] = (1-a)*h[j] + a*pre[j]
		}
		out.SetRow(t, h)
	}
	return out
}

// #endregion states
