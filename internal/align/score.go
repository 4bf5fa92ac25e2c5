package align

// Summary aggregates an alignment into per-kind counts. Obtain one via
// [Summarize]; the acceptance helpers below implement the grading policy
// used by dictation sessions.
type Summary struct {
	Exact   int
	Near    int
	Missing int
	Extra   int
}

// Summarize counts the items of an alignment by kind.
func Summarize(items []Item) Summary {
	var s Summary
	for _, it := range items {
		switch it.Kind {
		case Exact:
			s.Exact++
		case Near:
			s.Near++
		case Missing:
			s.Missing++
		case Extra:
			s.Extra++
		}
	}
	return s
}

// ReferenceWords is the number of reference words covered by the alignment.
func (s Summary) ReferenceWords() int {
	return s.Exact + s.Near + s.Missing
}

// NearCorrect reports whether the answer is accepted with typos: every
// reference word is paired (nothing missing, nothing extra) and at least
// one pairing is a near match. Fully exact answers are the domain of
// [ExactCorrect], which should be checked first.
func (s Summary) NearCorrect() bool {
	return s.Missing == 0 && s.Extra == 0 && s.Near > 0
}

// Score is the partial score in [0,1]: paired words (exact or near) over
// total reference words. A zero-word reference scores 0.
func (s Summary) Score() float64 {
	total := s.ReferenceWords()
	if total == 0 {
		return 0
	}
	return float64(s.Exact+s.Near) / float64(total)
}

// ExactCorrect reports whether the answer matches the reference verbatim
// after normalisation — case, punctuation and surplus whitespace are
// ignored, but every word must be present and spelled exactly.
func ExactCorrect(answer, reference string) bool {
	norm := NormalizeText(reference)
	return norm != "" && NormalizeText(answer) == norm
}
