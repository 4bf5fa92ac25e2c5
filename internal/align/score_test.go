package align

import (
	"math"
	"testing"
)

func TestExactCorrect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		answer    string
		reference string
		want      bool
	}{
		{"case and punctuation ignored", "the Quick fox", "The quick fox.", true},
		{"extra whitespace ignored", "  the   quick fox ", "The quick fox", true},
		{"typo is not exact", "the quik fox", "The quick fox", false},
		{"missing word", "the fox", "The quick fox", false},
		{"empty answer", "", "The quick fox", false},
		{"both empty", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExactCorrect(tc.answer, tc.reference); got != tc.want {
				t.Errorf("ExactCorrect(%q, %q) = %v, want %v", tc.answer, tc.reference, got, tc.want)
			}
		})
	}
}

func TestNearCorrect(t *testing.T) {
	t.Parallel()

	s := Summarize(Align(Words("the quik fox"), Words("the quick fox")))
	if !s.NearCorrect() {
		t.Errorf("one near, rest exact: NearCorrect = false, want true")
	}

	s = Summarize(Align(Words("the fox"), Words("the quick fox")))
	if s.NearCorrect() {
		t.Errorf("missing word: NearCorrect = true, want false")
	}

	// All exact is not near-correct; that is ExactCorrect's verdict.
	s = Summarize(Align(Words("the quick fox"), Words("the quick fox")))
	if s.NearCorrect() {
		t.Errorf("all exact: NearCorrect = true, want false")
	}
}

func TestPartialScore(t *testing.T) {
	t.Parallel()

	s := Summarize(Align(Words("the fox"), Words("the quick fox")))
	if got, want := s.Score(), 2.0/3.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %v, want %v", got, want)
	}
	if s.ReferenceWords() != 3 {
		t.Errorf("ReferenceWords = %d, want 3", s.ReferenceWords())
	}

	var empty Summary
	if empty.Score() != 0 {
		t.Errorf("empty Score = %v, want 0", empty.Score())
	}
}
