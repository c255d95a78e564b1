package data

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func TestEncode(t *testing.T) {
	seq := Sequence{
		{SkillID: 0, Correct: false},
		{SkillID: 1, Correct: true},
		{SkillID: 0, Correct: true},
	}
	enc := Encode(seq, 2)

	if enc.Steps() != 2 {
		t.Fatalf("expected 2 steps, got %d", enc.Steps())
	}
	rows, cols := enc.Inputs.Dims()
	if rows != 2 || cols != OnehotSize(2) {
		t.Fatalf("unexpected input dims %dx%d", rows, cols)
	}

	// Step 0 encodes (skill 0, wrong): index PreservedTokens+0.
	if enc.Inputs.At(0, PreservedTokens) != 1 {
		t.Fatal("expected one-hot at skill 0 wrong")
	}
	// Step 1 encodes (skill 1, correct): index PreservedTokens+3.
	if enc.Inputs.At(1, PreservedTokens+3) != 1 {
		t.Fatal("expected one-hot at skill 1 correct")
	}

	if enc.TargetQ[0] != 1 || enc.TargetA[0] != 1 {
		t.Fatalf("step 0 target: got q=%d a=%v", enc.TargetQ[0], enc.TargetA[0])
	}
	if enc.TargetQ[1] != 0 || enc.TargetA[1] != 1 {
		t.Fatalf("step 1 target: got q=%d a=%v", enc.TargetQ[1], enc.TargetA[1])
	}
}

func TestPrepareWindowsAndSplit(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	// 10 students x 45 interactions, window 20 → windows of 20, 20, 5.
	seqs := Synthetic(rng, 10, 4, 45, 45)

	train, eval := Prepare(seqs, 4, 20, 8, rng)

	total := train.NumSequences() + eval.NumSequences()
	if total != 30 {
		t.Fatalf("expected 30 windows, got %d", total)
	}
	if train.NumSequences() != 24 {
		t.Fatalf("expected 24 train windows (80%%), got %d", train.NumSequences())
	}

	for _, b := range train.Batches() {
		if b.Size() == 0 || b.Size() > 8 {
			t.Fatalf("bad batch size %d", b.Size())
		}
		for _, s := range b.Seqs {
			if s.Steps() < MinSequenceLen-1 {
				t.Fatalf("window with %d steps below minimum", s.Steps())
			}
		}
	}
}

func TestPrepareDropsShortTails(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	// 22 interactions with window 20 leaves a 2-long tail, which is dropped.
	seqs := []Sequence{make(Sequence, 22)}

	train, eval := Prepare(seqs, 2, 20, 4, rng)
	if got := train.NumSequences() + eval.NumSequences(); got != 1 {
		t.Fatalf("expected 1 window, got %d", got)
	}
}

func TestPrepareDeterministic(t *testing.T) {
	seqs := Synthetic(rand.New(rand.NewSource(3)), 20, 4, 10, 30)

	a, _ := Prepare(seqs, 4, 20, 8, rand.New(rand.NewSource(7)))
	b, _ := Prepare(seqs, 4, 20, 8, rand.New(rand.NewSource(7)))

	ab, bb := a.Batches(), b.Batches()
	if len(ab) != len(bb) {
		t.Fatalf("batch counts differ: %d vs %d", len(ab), len(bb))
	}
	for i := range ab {
		for j := range ab[i].Seqs {
			if ab[i].Seqs[j].TargetQ[0] != bb[i].Seqs[j].TargetQ[0] {
				t.Fatalf("batch %d seq %d differs between identical preparations", i, j)
			}
		}
	}
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.csv")
	content := "student_id,skill_id,correct\ns1,0,1\ns2,3,0\ns1,1,1\ns1,0,0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	seqs, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(seqs) != 2 {
		t.Fatalf("expected 2 students, got %d", len(seqs))
	}
	if len(seqs[0]) != 3 || len(seqs[1]) != 1 {
		t.Fatalf("unexpected sequence lengths %d, %d", len(seqs[0]), len(seqs[1]))
	}
	if seqs[0][1].SkillID != 1 || !seqs[0][1].Correct {
		t.Fatalf("unexpected interleaved ordering: %+v", seqs[0])
	}
}

func TestLoadCSVBadRow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(path, []byte("s1,zero,1\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if _, err := LoadCSV(path); err == nil {
		t.Fatal("expected error for non-numeric skill id")
	}
}

func TestLoadCSVHeaderlessNamedStudents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "named.csv")
	// Non-numeric student ids must not make the first row look like a
	// header.
	content := "alice,0,1\nbob,2,0\nalice,1,1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	seqs, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(seqs) != 2 || len(seqs[0]) != 2 {
		t.Fatalf("first row was dropped: %d students, first has %d rows", len(seqs), len(seqs[0]))
	}
}

func TestSyntheticDeterministic(t *testing.T) {
	a := Synthetic(rand.New(rand.NewSource(5)), 5, 3, 4, 10)
	b := Synthetic(rand.New(rand.NewSource(5)), 5, 3, 4, 10)

	for i := range a {
		if len(a[i]) != len(b[i]) {
			t.Fatalf("student %d lengths differ", i)
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("student %d interaction %d differs", i, j)
			}
		}
	}
}
