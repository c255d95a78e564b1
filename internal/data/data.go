// Package data turns raw learner interaction logs into the batched,
// encoded sequences the trainer consumes. The encoding follows the usual
// deep knowledge tracing scheme: each (skill, correctness) interaction is a
// one-hot index in a 2*n_skills vector, with two reserved leading tokens
// (PAD, SOS).
package data

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// PreservedTokens is the number of reserved leading one-hot positions.
const PreservedTokens = 2

// MinSequenceLen is the shortest usable interaction window; shorter tails
// are dropped.
const MinSequenceLen = 3

// #region types

// Interaction is one question attempt: which skill was exercised and
// whether the answer was correct.
type Interaction struct {
	SkillID int
	Correct bool
}

// Sequence is one learner's ordered attempt history.
type Sequence []Interaction

// EncodedSeq is a sequence ready for the model: row t of Inputs encodes
// interaction t, and TargetQ/TargetA hold the next interaction's skill and
// correctness (so a sequence of length n yields n-1 steps).
type EncodedSeq struct {
	Inputs  *mat.Dense
	TargetQ []int
	TargetA []float64
}

// Steps returns the number of prediction steps in the sequence.
func (s EncodedSeq) Steps() int { return len(s.TargetQ) }

// Batch is an ordered group of encoded sequences processed in one
// loss-batch call.
type Batch struct {
	Seqs []EncodedSeq
}

// Size returns the number of sequences in the batch.
func (b Batch) Size() int { return len(b.Seqs) }

// Loader is an ordered batch source. Batches are yielded in a fixed order;
// iterating twice yields the same batches.
type Loader interface {
	Batches() []Batch
	NumSequences() int
}

// #endregion types

// #region encode

// OnehotSize returns the encoded input width for a skill count.
func OnehotSize(nSkills int) int { return 2*nSkills + PreservedTokens }

// Encode converts a raw sequence into model inputs and next-step targets.
func Encode(seq Sequence, nSkills int) EncodedSeq {
	steps := len(seq) - 1
	width := OnehotSize(nSkills)
	inputs := mat.NewDense(steps, width, nil)
	targetQ := make([]int, steps)
	targetA := make([]float64, steps)

	for t := 0; t < steps; t++ {
		idx := PreservedTokens + 2*seq[t].SkillID
		if seq[t].Correct {
			idx++
		}
		inputs.Set(t, idx, 1)

		next := seq[t+1]
		targetQ[t] = next.SkillID
		if next.Correct {
			targetA[t] = 1
		}
	}
	return EncodedSeq{Inputs: inputs, TargetQ: targetQ, TargetA: targetA}
}

// #endregion encode

// #region loader

type memLoader struct {
	batches []Batch
	nseqs   int
}

func (l *memLoader) Batches() []Batch   { return l.batches }
func (l *memLoader) NumSequences() int  { return l.nseqs }

// Prepare windows, encodes, splits, and batches raw sequences. Sequences
// are cut into non-overlapping windows of at most maxN interactions (tails
// shorter than MinSequenceLen are dropped), shuffled with rng, then split
// 80/20 into train and eval loaders.
func Prepare(seqs []Sequence, nSkills, maxN, batchSize int, rng *rand.Rand) (train, eval Loader) {
	var windows []Sequence
	for _, s := range seqs {
		for start := 0; start < len(s); start += maxN {
			end := start + maxN
			if end > len(s) {
				end = len(s)
			}
			if end-start >= MinSequenceLen {
				windows = append(windows, s[start:end])
			}
		}
	}

	rng.Shuffle(len(windows), func(i, j int) {
		windows[i], windows[j] = windows[j], windows[i]
	})

	split := len(windows) * 4 / 5
	return toLoader(windows[:split], nSkills, batchSize),
		toLoader(windows[split:], nSkills, batchSize)
}

func toLoader(windows []Sequence, nSkills, batchSize int) Loader {
	l := &memLoader{nseqs: len(windows)}
	for start := 0; start < len(windows); start += batchSize {
		end := start + batchSize
		if end > len(windows) {
			end = len(windows)
		}
		b := Batch{Seqs: make([]EncodedSeq, 0, end-start)}
		for _, w := range windows[start:end] {
			b.Seqs = append(b.Seqs, Encode(w, nSkills))
		}
		l.batches = append(l.batches, b)
	}
	return l
}

// #endregion loader
