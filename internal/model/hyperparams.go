package model

import (
	"math"

	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/data"
)

// #region hyperparams

// Hyperparams bundles the architecture dimensions shared by all model
// kinds. Derivations follow the reference setup: one-hot width is
// 2*n_skills plus the reserved tokens, and the embedding dimension is
// ceil(ln(2*n_skills)).
type Hyperparams struct {
	NSkills    int
	OnehotSize int
	NInput     int
	NHidden    int
	NLayers    int
	Dropout    float64

	SequenceSize int
	BatchSize    int

	ExtendBackward int
	ExtendForward  int
	KSLoss         bool

	Device Device
}

// DefaultHyperparams derives the standard dimensions for a skill count.
func DefaultHyperparams(nSkills int) Hyperparams {
	return Hyperparams{
		NSkills:    nSkills,
		OnehotSize: data.OnehotSize(nSkills),
		NInput:     int(math.Ceil(math.Log(float64(2 * nSkills)))),
		NHidden:    200,
		NLayers:    2,
		Dropout:    0.6,
		Device:     DeviceCPU,
	}
}

// #endregion hyperparams
