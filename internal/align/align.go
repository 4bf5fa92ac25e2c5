// Package align implements fuzzy word alignment between a learner's typed
// answer and a reference transcript.
//
// The algorithm proceeds in two stages:
//
//  1. Pairwise classification: every (user word, reference word) pair is
//     classified as an exact match, a near match (within a length-scaled
//     Levenshtein tolerance), or no match. See [Classify].
//
//  2. Longest-common-subsequence alignment: a standard LCS dynamic program
//     runs over the classification table, where both exact and near matches
//     count as matchable links. The backtrack emits one [Item] per position,
//     interleaving the two word sequences while preserving their original
//     left-to-right order.
//
// The package is pure computation: no I/O, no rendering. Diff output and
// hint glyphs are downstream transforms of the returned [Item] slice.
package align

// Kind classifies a single aligned position produced by [Align].
type Kind int

const (
	// Exact means the user word and reference word normalize identically.
	Exact Kind = iota

	// Near means the user word is within the Levenshtein tolerance of the
	// reference word (a typo, not an error).
	Near

	// Missing means a reference word has no counterpart in the user's answer.
	Missing

	// Extra means a user word has no counterpart in the reference.
	Extra
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Near:
		return "near"
	case Missing:
		return "missing"
	case Extra:
		return "extra"
	default:
		return "unknown"
	}
}

// Item is one position of an alignment. Display forms (original casing and
// punctuation) are carried so that renderers never need to re-tokenise.
//
// Invariants: Kind == Missing implies User == "" and Correct != "";
// Kind == Extra implies Correct == "" and User != ""; Exact and Near carry
// both words.
type Item struct {
	// Kind classifies this position.
	Kind Kind

	// User is the learner's word in display form. Empty for Missing items.
	User string

	// Correct is the reference word in display form. Empty for Extra items.
	Correct string
}

// Align computes the fuzzy alignment between the user's words and the
// reference words. Both slices hold display forms; normalisation happens
// internally during classification.
//
// Align is total: either slice may be empty. With no reference words every
// user word is emitted as Extra; with no user words every reference word is
// emitted as Missing. The returned items, read in order, reproduce each
// input sequence in its original order (take the User fields of non-Missing
// items, or the Correct fields of non-Extra items).
func Align(userWords, correctWords []string) []Item {
	m, n := len(userWords), len(correctWords)

	// Classification table: match[i][j] holds the match class for
	// (userWords[i], correctWords[j]).
	match := make([][]Match, m)
	for i := range match {
		match[i] = make([]Match, n)
		for j := range match[i] {
			match[i][j] = Classify(userWords[i], correctWords[j])
		}
	}

	// LCS dynamic program. A cell links iff the pair classified as exact or
	// near — near matches are as good as exact for alignment purposes.
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if match[i-1][j-1] != MatchWrong {
				dp[i][j] = dp[i-1][j-1] + 1
			} else {
				dp[i][j] = max(dp[i-1][j], dp[i][j-1])
			}
		}
	}

	// Backtrack. On ties between dp[i][j-1] and dp[i-1][j] the reference
	// word is consumed first, so unmatched reference words surface as
	// Missing rather than pushing user words out as Extra.
	items := make([]Item, 0, m+n)
	i, j := m, n
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && match[i-1][j-1] != MatchWrong && dp[i][j] == dp[i-1][j-1]+1:
			kind := Exact
			if match[i-1][j-1] == MatchNear {
				kind = Near
			}
			items = append(items, Item{Kind: kind, User: userWords[i-1], Correct: correctWords[j-1]})
			i--
			j--
		case j > 0 && (i == 0 || dp[i][j-1] >= dp[i-1][j]):
			items = append(items, Item{Kind: Missing, Correct: correctWords[j-1]})
			j--
		default:
			items = append(items, Item{Kind: Extra, User: userWords[i-1]})
			i--
		}
	}

	// Reverse into left-to-right order.
	for a, b := 0, len(items)-1; a < b; a, b = a+1, b-1 {
		items[a], items[b] = items[b], items[a]
	}
	return items
}
