package game

import (
	"strings"
	"testing"

	"codequest/models"
)

func TestDifficultyForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{1, models.DifficultyBeginner},
		{2, models.DifficultyBeginner},
		{3, models.DifficultyIntermediate},
		{5, models.DifficultyIntermediate},
		{6, models.DifficultyAdvanced},
		{8, models.DifficultyAdvanced},
		{9, models.DifficultyExpert},
		{15, models.DifficultyExpert},
	}
	for _, tt := range tests {
		if got := DifficultyForLevel(tt.level); got != tt.want {
			t.Errorf("DifficultyForLevel(%d) = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestCatalogQuestionsFilterAndLimit(t *testing.T) {
	c := NewCatalog(1)

	qs := c.Questions("javascript", 1, 2)
	if len(qs) != 2 {
		t.Fatalf("len = %d, want 2", len(qs))
	}
	for _, q := range qs {
		if q.UniverseID != "javascript" || q.Level != 1 {
			t.Errorf("question %s from %s level %d", q.ID, q.UniverseID, q.Level)
		}
	}

	if qs := c.Questions("cobol", 1, 5); qs != nil {
		t.Errorf("unknown universe returned %d questions", len(qs))
	}
}

func TestCatalogTopsUpWithGeneratedQuestions(t *testing.T) {
	c := NewCatalog(1)

	qs := c.Questions("rust", 4, 0)
	if len(qs) == 0 {
		t.Fatal("expected generated filler for a universe without pool questions")
	}
	for _, q := range qs {
		if !strings.HasPrefix(q.ID, "rust_4_gen_") {
			t.Errorf("unexpected id %s", q.ID)
		}
		if q.Difficulty != models.DifficultyIntermediate {
			t.Errorf("difficulty = %s", q.Difficulty)
		}
		if !strings.Contains(q.Prompt, "Rust") {
			t.Errorf("prompt %q does not name the universe", q.Prompt)
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			t.Errorf("correct answer %d out of range", q.CorrectAnswer)
		}
	}
}

func TestUniversesByCategory(t *testing.T) {
	c := NewCatalog(1)
	for _, u := range c.UniversesByCategory("mobile") {
		if u.Category != "mobile" {
			t.Errorf("%s has category %s", u.ID, u.Category)
		}
	}
	if _, ok := c.Universe("go"); !ok {
		t.Error("go universe missing")
	}
}
