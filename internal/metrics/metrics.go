// Package metrics computes classification quality metrics for knowledge
// tracing predictions and tracks learning curves across epochs.
package metrics

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ErrSingleClass is returned when AUC is requested for labels that contain
// only one class; the ROC curve is undefined in that case.
var ErrSingleClass = errors.New("labels contain a single class")

// #region auc

// AUC computes the area under the ROC curve for predicted scores against
// binary ground-truth labels (anything > 0.5 counts as positive).
func AUC(scores, labels []float64) (float64, error) {
	if len(scores) != len(labels) {
		return 0, fmt.Errorf("scores (%d) and labels (%d) length mismatch", len(scores), len(labels))
	}
	if len(scores) == 0 {
		return 0, errors.New("no predictions to score")
	}

	type pair struct {
		score float64
		pos   bool
	}
	pairs := make([]pair, len(scores))
	var npos int
	for i := range scores {
		pairs[i] = pair{score: scores[i], pos: labels[i] > 0.5}
		if pairs[i].pos {
			npos++
		}
	}
	if npos == 0 || npos == len(pairs) {
		return 0, ErrSingleClass
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	ys := make([]float64, len(pairs))
	classes := make([]bool, len(pairs))
	for i, p := range pairs {
		ys[i] = p.score
		classes[i] = p.pos
	}

	tpr, fpr, _ := stat.ROC(nil, ys, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// #endregion auc

// #region precision

// Precision computes tp/(tp+fp) at the given score threshold. Returns 0
// when nothing is predicted positive.
func Precision(scores, labels []float64, threshold float64) float64 {
	var tp, fp int
	for i := range scores {
		if scores[i] < threshold {
			continue
		}
		if labels[i] > 0.5 {
			tp++
		} else {
			fp++
		}
	}
	if tp+fp == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fp)
}

// #endregion precision
