package align

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Match is the pairwise classification of one (user word, reference word)
// pair, computed by [Classify]. It feeds the alignment dynamic program;
// [Item.Kind] is the per-position output classification.
type Match int

const (
	// MatchWrong means the words are not close enough to pair up.
	MatchWrong Match = iota

	// MatchNear means the words differ by an edit distance within the
	// tolerance for the reference word's length.
	MatchNear

	// MatchExact means the normalized forms are identical.
	MatchExact
)

// String returns the human-readable name of the match class.
func (m Match) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchNear:
		return "near"
	case MatchWrong:
		return "wrong"
	default:
		return "unknown"
	}
}

// strippedPunct is the set of punctuation runes removed during normalisation.
const strippedPunct = `.,?!;:'"…()[]{}-–—`

// Normalize lowers the word and strips punctuation. Comparison always runs
// on normalized forms; display forms are kept separately in [Item].
func Normalize(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for _, r := range strings.ToLower(word) {
		if strings.ContainsRune(strippedPunct, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// NormalizeText normalizes a whole sentence: every word is normalized and
// the results are re-joined with single spaces. Words that normalize to
// nothing (pure punctuation tokens) are dropped.
func NormalizeText(text string) string {
	return strings.Join(normalizedWords(Words(text)), " ")
}

// Words splits text into display-form tokens on whitespace.
func Words(text string) []string {
	return strings.Fields(text)
}

// normalizedWords maps Normalize over words, dropping empty results.
func normalizedWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if n := Normalize(w); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// nearThreshold returns the Levenshtein tolerance for a reference word of
// the given normalized length. Short words get no tolerance at all —
// a one-letter slip in "the" is a different word, not a typo.
func nearThreshold(refLen int) int {
	switch {
	case refLen <= 3:
		return 0
	case refLen <= 5:
		return 1
	default:
		return 2
	}
}

// Classify compares one user word against one reference word.
//
// Both words are normalized first; if either normalizes to nothing the
// result is [MatchWrong]. Identical normalized forms are [MatchExact].
// Otherwise the Levenshtein distance decides: within the length-scaled
// tolerance of the reference word it is [MatchNear], else [MatchWrong].
func Classify(userWord, correctWord string) Match {
	u := Normalize(userWord)
	c := Normalize(correctWord)
	if u == "" || c == "" {
		return MatchWrong
	}
	if u == c {
		return MatchExact
	}

	threshold := nearThreshold(len([]rune(c)))
	if threshold == 0 {
		return MatchWrong
	}
	if matchr.Levenshtein(u, c) <= threshold {
		return MatchNear
	}
	return MatchWrong
}

// hintFiller is the glyph substituted for hidden characters in hints.
const hintFiller = "•"

// Hint builds the masked rendering of an unrevealed reference word: the
// first character of its normalized form followed by one filler glyph per
// remaining character. A one-character word yields a single filler glyph so
// the hint never gives the whole word away.
func Hint(word string) string {
	runes := []rune(Normalize(word))
	switch len(runes) {
	case 0:
		return ""
	case 1:
		return hintFiller
	default:
		return string(runes[0]) + strings.Repeat(hintFiller, len(runes)-1)
	}
}
