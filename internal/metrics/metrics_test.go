package metrics

import (
	"errors"
	"math"
	"testing"
)

func TestAUCPerfectSeparation(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.8, 0.9}
	labels := []float64{0, 0, 1, 1}

	auc, err := AUC(scores, labels)
	if err != nil {
		t.Fatalf("AUC: %v", err)
	}
	if math.Abs(auc-1.0) > 1e-9 {
		t.Fatalf("expected AUC 1.0, got %v", auc)
	}
}

func TestAUCKnownValue(t *testing.T) {
	// Positive pair wins in 3 of 4 (pos, neg) comparisons: AUC = 0.75.
	scores := []float64{0.1, 0.4, 0.35, 0.8}
	labels := []float64{0, 0, 1, 1}

	auc, err := AUC(scores, labels)
	if err != nil {
		t.Fatalf("AUC: %v", err)
	}
	if math.Abs(auc-0.75) > 1e-9 {
		t.Fatalf("expected AUC 0.75, got %v", auc)
	}
}

func TestAUCInverted(t *testing.T) {
	scores := []float64{0.9, 0.8, 0.2, 0.1}
	labels := []float64{0, 0, 1, 1}

	auc, err := AUC(scores, labels)
	if err != nil {
		t.Fatalf("AUC: %v", err)
	}
	if math.Abs(auc) > 1e-9 {
		t.Fatalf("expected AUC 0.0, got %v", auc)
	}
}

func TestAUCTiedScores(t *testing.T) {
	// One tied (pos, neg) pair contributes half credit:
	// (1 + 0.5 + 2) / 4 = 0.875.
	scores := []float64{0.2, 0.5, 0.5, 0.8}
	labels := []float64{0, 0, 1, 1}

	auc, err := AUC(scores, labels)
	if err != nil {
		t.Fatalf("AUC: %v", err)
	}
	if math.Abs(auc-0.875) > 1e-9 {
		t.Fatalf("expected AUC 0.875, got %v", auc)
	}
}

func TestAUCInterleavedClasses(t *testing.T) {
	// Mixed ordering across many thresholds; must integrate without
	// complaint and land in (0, 1).
	scores := []float64{0.9, 0.1, 0.8, 0.3, 0.7, 0.2, 0.6, 0.4, 0.55, 0.45}
	labels := []float64{1, 0, 0, 1, 1, 0, 0, 1, 1, 0}

	auc, err := AUC(scores, labels)
	if err != nil {
		t.Fatalf("AUC: %v", err)
	}
	if auc <= 0 || auc >= 1 {
		t.Fatalf("AUC out of open interval: %v", auc)
	}
}

func TestAUCSingleClass(t *testing.T) {
	_, err := AUC([]float64{0.5, 0.6}, []float64{1, 1})
	if !errors.Is(err, ErrSingleClass) {
		t.Fatalf("expected ErrSingleClass, got %v", err)
	}
}

func TestAUCLengthMismatch(t *testing.T) {
	if _, err := AUC([]float64{0.5}, []float64{1, 0}); err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestPrecision(t *testing.T) {
	scores := []float64{0.9, 0.8, 0.7, 0.2}
	labels := []float64{1, 0, 1, 1}

	// Above 0.5: three predictions, two true positives.
	p := Precision(scores, labels, 0.5)
	if math.Abs(p-2.0/3.0) > 1e-9 {
		t.Fatalf("expected precision 2/3, got %v", p)
	}

	// Nothing predicted positive.
	if p := Precision([]float64{0.1}, []float64{1}, 0.5); p != 0 {
		t.Fatalf("expected precision 0, got %v", p)
	}
}

func TestCurveAppendInvariant(t *testing.T) {
	var c Curve
	c.Append(10, Point{TrainLoss: 0.5, TrainAUC: 0.6, EvalLoss: NaN(), EvalAUC: NaN()})
	c.Append(20, Point{TrainLoss: 0.4, TrainAUC: 0.65, EvalLoss: 0.45, EvalAUC: 0.7})

	if c.Len() != 2 {
		t.Fatalf("expected 2 points, got %d", c.Len())
	}
	for _, n := range []int{len(c.TrainLoss), len(c.TrainAUC), len(c.EvalLoss), len(c.EvalAUC)} {
		if n != len(c.Epochs) {
			t.Fatalf("series length %d != epoch axis length %d", n, len(c.Epochs))
		}
	}

	// Non-monotonic epoch is ignored.
	c.Append(20, Point{})
	c.Append(15, Point{})
	if c.Len() != 2 {
		t.Fatalf("expected non-monotonic appends to be ignored, got %d points", c.Len())
	}
}
