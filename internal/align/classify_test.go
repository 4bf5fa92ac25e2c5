package align

import (
	"testing"

	"github.com/antzucaro/matchr"
)

func TestLevenshteinIdentities(t *testing.T) {
	t.Parallel()

	words := []string{"", "a", "cat", "definitely", "über"}
	for _, w := range words {
		if d := matchr.Levenshtein(w, w); d != 0 {
			t.Errorf("Levenshtein(%q, %q) = %d, want 0", w, w, d)
		}
		if d := matchr.Levenshtein("", w); d != len([]rune(w)) {
			t.Errorf("Levenshtein(\"\", %q) = %d, want %d", w, d, len([]rune(w)))
		}
	}

	pairs := [][2]string{{"cat", "cut"}, {"happy", "hapy"}, {"definitely", "definately"}}
	for _, p := range pairs {
		ab := matchr.Levenshtein(p[0], p[1])
		ba := matchr.Levenshtein(p[1], p[0])
		if ab != ba {
			t.Errorf("Levenshtein not symmetric for %q/%q: %d vs %d", p[0], p[1], ab, ba)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Hello,", "hello"},
		{"don't", "dont"},
		{"  Quick  ", "quick"},
		{"(world)!", "world"},
		{"co-operate", "cooperate"},
		{"—", ""},
		{"…", ""},
	}
	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	got := NormalizeText("The  quick, (brown) FOX.")
	if got != "the quick brown fox" {
		t.Errorf("NormalizeText = %q, want %q", got, "the quick brown fox")
	}
	if got := NormalizeText(" — … "); got != "" {
		t.Errorf("NormalizeText of pure punctuation = %q, want empty", got)
	}
}

func TestClassifyThresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		user    string
		correct string
		want    Match
	}{
		{"identical short", "cat", "cat", MatchExact},
		{"case and punctuation ignored", "Cat,", "cat", MatchExact},
		{"short word no tolerance", "cet", "cat", MatchWrong},
		{"mid word one edit", "hapy", "happy", MatchNear},
		{"mid word two edits", "hpy", "happy", MatchWrong},
		{"long word two edits", "definately", "definitely", MatchNear},
		{"long word three edits", "defnatly", "definitely", MatchWrong},
		{"empty user", "", "cat", MatchWrong},
		{"punctuation only user", "—", "cat", MatchWrong},
		{"empty reference", "cat", "", MatchWrong},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.user, tc.correct); got != tc.want {
				t.Errorf("Classify(%q, %q) = %v, want %v", tc.user, tc.correct, got, tc.want)
			}
		})
	}
}

func TestHint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"cat", "c••"},
		{"Happy!", "h••••"},
		{"a", "•"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := Hint(tc.in); got != tc.want {
			t.Errorf("Hint(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
