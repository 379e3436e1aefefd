package titles

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"St. Nicholas", "saint nicholas"},
		{"Ss. Peter & Paul", "saints peter and paul"},
		{"Ven. Bede the Confessor", "venerable bede the confessor"},
		{"Théophany of Our Lord", "theophany of our lord"},
		{"First Sunday after Pentecost", "first sunday after pentecost"},
		{"Saint Stephen", "saint stephen"},
		{"S.S. Cyril and Methodius", "saints cyril and methodius"},
		{"  Holy   Apostles'  Fast  ", "holy apostles fast"},
		{"ST JOHN", "saint john"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"St. Nicholas the Wonderworker",
		"S.S. Cyril & Methodius",
		"Ven.Bede",
		"Nativity of the Theotókos",
		"ss st ven",
		"1st Sunday of Lent",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSimilarity_EdgeCases(t *testing.T) {
	if got := Similarity("", "saint nicholas"); got != 0 {
		t.Errorf("empty input = %v, want 0", got)
	}
	if got := Similarity("st peter", "st peter"); got != 0 {
		t.Errorf("short identical titles = %v, want 0", got)
	}
	if got := Similarity("saint peter", "saint job"); got != 0 {
		t.Errorf("one side under ten characters = %v, want 0", got)
	}
	if got := Similarity("saint nicholas", "saint nicholas"); got != 1 {
		t.Errorf("identical titles = %v, want 1", got)
	}
}

func TestSimilarity_Score(t *testing.T) {
	// tokens: 2 shared of max 4 = 0.5; bigrams: 12 shared, 12+27 total.
	want := (0.5 + 24.0/39.0) / 2
	got := Similarity("saint nicholas", "saint nicholas the wonderworker")
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity = %v, want %v", got, want)
	}
	if got >= DuplicateThreshold {
		t.Errorf("added words should keep score below threshold, got %v", got)
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"saint nicholas", "saint nicholas the wonderworker"},
		{"nativity of our lord", "the nativity of christ"},
		{"sunday of the publican and pharisee", "publican and pharisee"},
		{"holy theophany", "theophany of our lord"},
	}
	for _, p := range pairs {
		ab := Similarity(p[0], p[1])
		ba := Similarity(p[1], p[0])
		if ab != ba {
			t.Errorf("Similarity(%q,%q)=%v but reversed=%v", p[0], p[1], ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Errorf("score out of range: %v", ab)
		}
	}
}

func TestIsDuplicate(t *testing.T) {
	if !IsDuplicate("St. Nicholas the Wonderworker", "Saint Nicholas the Wonderworker", DuplicateThreshold) {
		t.Error("abbreviated and spelled-out titles should be duplicates")
	}
	if !IsDuplicate("St. Nicholas the Wonderworker", "Saint Nicholas, Wonderworker", DuplicateThreshold) {
		t.Error("dropping an article should stay above threshold")
	}
	if IsDuplicate("St. Nicholas", "Saint Nicholas the Wonderworker", DuplicateThreshold) {
		t.Error("added words should fall below threshold")
	}
	if IsDuplicate("St. Job", "St. Job", DuplicateThreshold) {
		t.Error("short titles are never duplicates by score")
	}
}
