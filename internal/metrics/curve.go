package metrics

import (
	"encoding/json"
	"math"
)

// #region curve

// Point is one learning-curve sample: the metric values at a given epoch.
// Metrics not yet measured are NaN (e.g. eval metrics before the first
// evaluation interval).
type Point struct {
	TrainLoss float64
	TrainAUC  float64
	EvalLoss  float64
	EvalAUC   float64
}

// Curve is the ordered-by-epoch learning-curve record. The epoch list and
// every metric series always have equal length; epochs grow monotonically.
type Curve struct {
	Epochs    []int
	TrainLoss []float64
	TrainAUC  []float64
	EvalLoss  []float64
	EvalAUC   []float64
}

// Append adds one sample point. Appending an epoch not greater than the last
// recorded one is ignored, preserving monotonic growth.
func (c *Curve) Append(epoch int, p Point) {
	if n := len(c.Epochs); n > 0 && epoch <= c.Epochs[n-1] {
		return
	}
	c.Epochs = append(c.Epochs, epoch)
	c.TrainLoss = append(c.TrainLoss, p.TrainLoss)
	c.TrainAUC = append(c.TrainAUC, p.TrainAUC)
	c.EvalLoss = append(c.EvalLoss, p.EvalLoss)
	c.EvalAUC = append(c.EvalAUC, p.EvalAUC)
}

// Len returns the number of recorded sample points.
func (c *Curve) Len() int { return len(c.Epochs) }

// NaN is the placeholder for a metric that has not been measured yet.
func NaN() float64 { return math.NaN() }

// #endregion curve

// #region curve-json

// curveJSON is the on-disk form: NaN gaps encode as null so the record
// stays valid JSON.
type curveJSON struct {
	Epochs    []int      `json:"epochs"`
	TrainLoss []*float64 `json:"train_loss"`
	TrainAUC  []*float64 `json:"train_auc"`
	EvalLoss  []*float64 `json:"eval_loss"`
	EvalAUC   []*float64 `json:"eval_auc"`
}

func (c *Curve) MarshalJSON() ([]byte, error) {
	return json.Marshal(curveJSON{
		Epochs:    c.Epochs,
		TrainLoss: toNullable(c.TrainLoss),
		TrainAUC:  toNullable(c.TrainAUC),
		EvalLoss:  toNullable(c.EvalLoss),
		EvalAUC:   toNullable(c.EvalAUC),
	})
}

func (c *Curve) UnmarshalJSON(data []byte) error {
	var raw curveJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Epochs = raw.Epochs
	c.TrainLoss = fromNullable(raw.TrainLoss)
	c.TrainAUC = fromNullable(raw.TrainAUC)
	c.EvalLoss = fromNullable(raw.EvalLoss)
	c.EvalAUC = fromNullable(raw.EvalAUC)
	return nil
}

func toNullable(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i := range vs {
		if !math.IsNaN(vs[i]) {
			v := vs[i]
			out[i] = &v
		}
	}
	return out
}

func fromNullable(vs []*float64) []float64 {
	out := make([]float64, len(vs))
	for i, p := range vs {
		if p == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *p
		}
	}
	return out
}

// #endregion curve-json
