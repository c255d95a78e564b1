package data

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// #region csv

// LoadCSV reads an interaction log with student_id,skill_id,correct rows
// (header optional) and groups rows into per-student sequences, preserving
// file order within each student.
func LoadCSV(path string) ([]Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open interaction log %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse interaction log %s: %w", path, err)
	}

	byStudent := make(map[string]*Sequence)
	var order []string
	for i, rec := range records {
		if i == 0 && isHeader(rec) {
			continue
		}
		skill, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("row %d of %s: bad skill id %q: %w", i+1, path, rec[1], err)
		}
		correct, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			return nil, fmt.Errorf("row %d of %s: bad correctness %q: %w", i+1, path, rec[2], err)
		}

		sid := strings.TrimSpace(rec[0])
		seq, ok := byStudent[sid]
		if !ok {
			seq = &Sequence{}
			byStudent[sid] = seq
			order = append(order, sid)
		}
		*seq = append(*seq, Interaction{SkillID: skill, Correct: correct != 0})
	}

	out := make([]Sequence, 0, len(order))
	for _, sid := range order {
		out = append(out, *byStudent[sid])
	}
	return out, nil
}

func isNumeric(s string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil
}

// isHeader reports whether a first row is a column header: every field
// non-numeric. A data row with a malformed skill id still has a numeric
// student or correctness field and falls through to the parse error.
func isHeader(rec []string) bool {
	return !isNumeric(rec[0]) && !isNumeric(rec[1]) && !isNumeric(rec[2])
}

// #endregion csv

// #region synthetic

// Synthetic simulates learners with a two-state mastery model: each
// practice attempt on a skill raises its mastery, and the correctness
// probability rises with mastery. Deterministic given the rng.
func Synthetic(rng *rand.Rand, nStudents, nSkills, minLen, maxLen int) []Sequence {
	seqs := make([]Sequence, nStudents)
	for s := range seqs {
		mastery := make([]float64, nSkills)
		n := minLen + rng.Intn(maxLen-minLen+1)
		seq := make(Sequence, n)
		for t := range seq {
			skill := rng.Intn(nSkills)
			p := 0.2 + 0.6*mastery[skill]
			seq[t] = Interaction{SkillID: skill, Correct: rng.Float64() < p}
			if mastery[skill] < 1 {
				mastery[skill] += 0.15
			}
		}
		seqs[s] = seq
	}
	return seqs
}

// #endregion synthetic

// #region from-source

// FromSource resolves a source_data identifier to raw sequences. The
// "synthetic" source simulates; known dataset names map to CSV files under
// dataDir; anything ending in .csv is used as a direct path.
func FromSource(source, dataDir string, nSkills int, rng *rand.Rand) ([]Sequence, error) {
	switch {
	case source == "synthetic":
		return Synthetic(rng, 200, nSkills, MinSequenceLen, 60), nil
	case strings.HasSuffix(source, ".csv"):
		return LoadCSV(source)
	default:
		return LoadCSV(filepath.Join(dataDir, source+".csv"))
	}
}

// #endregion from-source
