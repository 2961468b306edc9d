package titlematch

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1.0},
		{"abc", "", 0},
		{"abcd", "bcde", 0.75},
		{"her", "mother", 6.0 / 9.0},
		{"suspiria", "suspirium", 14.0 / 17.0},
		{"oppenheimer", "oppenheimer", 1.0},
	}

	for _, tt := range tests {
		got := Similarity(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilaritySymmetricOnLength(t *testing.T) {
	if Similarity("dune", "dune part two") != Similarity("dune part two", "dune") {
		t.Fatalf("Similarity should not depend on argument order for these inputs")
	}
}

func BenchmarkSimilarity(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Similarity("la chambre d a cote", "the room next door")
	}
}
