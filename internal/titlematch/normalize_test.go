package titlematch

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"accented", "Amélie", "amelie"},
		{"plain", "Amelie", "amelie"},
		{"parenthetical year", "Some Title (2024)", "some title"},
		{"apostrophe and accents", "L'Été dernier", "l ete dernier"},
		{"hyphen kept", "  Spider-Man:  Across ", "spider-man across"},
		{"dash and colon", "Mission: Impossible – Dead Reckoning", "mission impossible dead reckoning"},
		{"cedilla", "Le Garçon et le Héron", "le garcon et le heron"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeDropsParentheticalDigits(t *testing.T) {
	got := Normalize("Some Title (2024)")
	if strings.ContainsAny(got, "0123456789") {
		t.Fatalf("Normalize kept year digits: %q", got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Amélie", "Some Title (2024)", "  Les Misérables!! ", "Spider-Man", "Ça (It)", "Œuvre"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
	if Normalize("Amélie") != Normalize("Amelie") {
		t.Fatalf("Normalize should be diacritic-insensitive")
	}
}

func TestNormalizeForSearch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Mission: Impossible", "Mission"},
		{"Dune (VOST)", "Dune"},
		{"Spider-Man", "Spider-Man"},
		{"Jean-Luc  Godard", "Jean-Luc Godard"},
		{"Nosferatu - Version restaurée", "Nosferatu"},
		{"Le Mépris  (1963)  - 4K", "Le Mépris"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeForSearch(tt.input); got != tt.want {
			t.Fatalf("NormalizeForSearch(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func FuzzNormalizeIdempotent(f *testing.F) {
	seeds := []string{"Amélie", "Some Title (2024)", "L'Été", "Spider-Man: No Way Home", ""}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		once := Normalize(raw)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize(%q) not idempotent: %q vs %q", raw, once, twice)
		}
	})
}
