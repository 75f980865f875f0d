package tokencount

import "testing"

func TestHeuristic(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"hello world, this is a test", 7},
	}
	for _, tc := range cases {
		if got := (Heuristic{}).Count(tc.text); got != tc.want {
			t.Errorf("Count(%q): expected %d, got %d", tc.text, tc.want, got)
		}
	}
}

func TestTiktoken_CountsOrFallsBack(t *testing.T) {
	// The BPE vocabulary may not be fetchable in a sandboxed test run; in
	// that case Count falls back to the heuristic. Either way the count
	// must be positive for non-empty text and zero for empty text.
	c := NewTiktoken("")

	if got := c.Count(""); got != 0 {
		t.Fatalf("empty text: expected 0, got %d", got)
	}
	if got := c.Count("hello world"); got <= 0 {
		t.Fatalf("expected positive count, got %d", got)
	}
}

func TestTiktoken_LongerTextCountsMore(t *testing.T) {
	c := NewTiktoken("")
	short := c.Count("one sentence here.")
	long := c.Count("one sentence here. and quite a few more words that follow it in a second sentence.")
	if long <= short {
		t.Fatalf("longer text should count more tokens: %d <= %d", long, short)
	}
}
