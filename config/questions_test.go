package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadQuestions(t *testing.T) {
	path := writeSuite(t, `
- id: q1
  text: How many trials are currently recruiting for diabetes?
- id: q2
  text: Show me Phase 3 asthma trials
`)
	questions, err := LoadQuestions(path)
	if err != nil {
		t.Fatalf("LoadQuestions failed: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
	if questions[0].ID != "q1" || questions[1].Text != "Show me Phase 3 asthma trials" {
		t.Errorf("unexpected questions: %+v", questions)
	}
}

func TestLoadQuestionsRejectsMissingText(t *testing.T) {
	path := writeSuite(t, `
- id: q1
`)
	if _, err := LoadQuestions(path); err == nil {
		t.Error("expected validation error for missing text")
	}
}

func TestLoadQuestionsMissingFile(t *testing.T) {
	if _, err := LoadQuestions(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
