package results

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/metrics"
)

// #region learning-curve-fig

// SaveLearningCurveFig renders the learning curve as a PNG, overwritten on
// each call (one figure per model name).
func (r *Results) SaveLearningCurveFig(name string, c *metrics.Curve) (string, error) {
	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = "epoch"
	p.Legend.Top = true

	series := []struct {
		label  string
		values []float64
	}{
		{"train loss", c.TrainLoss},
		{"train auc", c.TrainAUC},
		{"eval loss", c.EvalLoss},
		{"eval auc", c.EvalAUC},
	}
	for _, s := range series {
		xys := curveXYs(c.Epochs, s.values)
		if len(xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return "", fmt.Errorf("build %s line: %w", s.label, err)
		}
		p.Add(line)
		p.Legend.Add(s.label, line)
	}

	dir := filepath.Join(r.dir, "learning_curve")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create learning_curve dir: %w", err)
	}
	path := filepath.Join(dir, name+".png")
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save learning curve figure: %w", err)
	}
	return path, nil
}

// curveXYs turns an epoch axis and a metric series into plot points,
// skipping not-yet-measured NaN samples.
func curveXYs(epochs []int, values []float64) plotter.XYs {
	var xys plotter.XYs
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(epochs[i]), Y: v})
	}
	return xys
}

// #endregion learning-curve-fig

// #region heatmap-fig

// ksGrid adapts a (steps x skills) knowledge-state matrix to the heatmap
// plotter: time on the x axis, skills on the y axis.
type ksGrid struct {
	m *mat.Dense
}

func (g ksGrid) Dims() (c, r int) {
	steps, skills := g.m.Dims()
	return steps, skills
}
func (g ksGrid) Z(c, r int) float64 { return g.m.At(c, r) }
func (g ksGrid) X(c int) float64    { return float64(c) }
func (g ksGrid) Y(r int) float64    { return float64(r) }

// SaveHeatmapFig renders a knowledge-state heatmap (predicted mastery per
// skill over time) as a PNG, overwritten on each call.
func (r *Results) SaveHeatmapFig(name string, ks *mat.Dense) (string, error) {
	if ks == nil {
		return "", fmt.Errorf("no knowledge state to plot for %s", name)
	}

	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = "step"
	p.Y.Label.Text = "skill"

	hm := plotter.NewHeatMap(ksGrid{m: ks}, palette.Heat(16, 1))
	hm.Min, hm.Max = 0, 1
	p.Add(hm)

	dir := filepath.Join(r.dir, "heatmap")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create heatmap dir: %w", err)
	}
	path := filepath.Join(dir, name+".png")
	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save heatmap figure: %w", err)
	}
	return path, nil
}

// #endregion heatmap-fig
