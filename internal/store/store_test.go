package store

import (
	"testing"
	"time"

	"github.com/pavelanni/assessor/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testQuestions() []model.Question {
	return []model.Question{
		{ID: 11, Text: "What does defer do?", Options: []string{"a", "b", "c"}, CorrectIndex: 2, Difficulty: model.DifficultyIntermediate},
		{ID: 2, Text: "What is a slice?", Options: []string{"a", "b"}, CorrectIndex: 0, Difficulty: model.DifficultyBeginner},
		{ID: 1, Text: "What is Go?", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1, Difficulty: model.DifficultyBeginner},
		{ID: 21, Text: "What is escape analysis?", Options: []string{"a", "b"}, CorrectIndex: 1, Difficulty: model.DifficultyAdvanced},
	}
}

func TestBankRoundTrip(t *testing.T) {
	s := newTestStore(t)

	// Empty DB should return zero count and no subjects.
	count, err := s.QuestionCount()
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 questions, got %d", count)
	}
	subjects, err := s.ListSubjects()
	if err != nil {
		t.Fatalf("ListSubjects: %v", err)
	}
	if len(subjects) != 0 {
		t.Fatalf("expected no subjects, got %v", subjects)
	}

	if err := s.ReplaceBank("Go", "h1", testQuestions()); err != nil {
		t.Fatalf("ReplaceBank: %v", err)
	}

	qs, err := s.GetBank("Go")
	if err != nil {
		t.Fatalf("GetBank: %v", err)
	}
	if len(qs) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(qs))
	}
	// Ordered by difficulty, then id.
	wantIDs := []int{1, 2, 11, 21}
	for i, q := range qs {
		if q.ID != wantIDs[i] {
			t.Errorf("question %d: expected id %d, got %d", i, wantIDs[i], q.ID)
		}
	}
	first := qs[0]
	if first.Text != "What is Go?" || first.CorrectIndex != 1 || first.Difficulty != model.DifficultyBeginner {
		t.Errorf("unexpected question: %+v", first)
	}
	if len(first.Options) != 4 || first.Options[3] != "d" {
		t.Errorf("options not preserved: %v", first.Options)
	}

	hash, err := s.GetBankHash("Go")
	if err != nil {
		t.Fatalf("GetBankHash: %v", err)
	}
	if hash != "h1" {
		t.Errorf("expected hash h1, got %q", hash)
	}
}

func TestReplaceBankOverwrites(t *testing.T) {
	s := newTestStore(t)

	if err := s.ReplaceBank("Go", "h1", testQuestions()); err != nil {
		t.Fatalf("ReplaceBank: %v", err)
	}
	if err := s.ReplaceBank("Go", "h2", testQuestions()[:1]); err != nil {
		t.Fatalf("ReplaceBank again: %v", err)
	}

	qs, _ := s.GetBank("Go")
	if len(qs) != 1 || qs[0].ID != 11 {
		t.Fatalf("expected only question 11, got %+v", qs)
	}
	hash, _ := s.GetBankHash("Go")
	if hash != "h2" {
		t.Errorf("expected hash h2, got %q", hash)
	}
	subjects, _ := s.ListSubjects()
	if len(subjects) != 1 {
		t.Errorf("expected 1 subject, got %v", subjects)
	}
}

func TestReplaceBankRollsBackOnError(t *testing.T) {
	s := newTestStore(t)

	if err := s.ReplaceBank("Go", "h1", testQuestions()); err != nil {
		t.Fatalf("ReplaceBank: %v", err)
	}
	dup := testQuestions()
	dup = append(dup, dup[0])
	if err := s.ReplaceBank("Go", "h2", dup); err == nil {
		t.Fatal("expected error for duplicate question id")
	}

	qs, _ := s.GetBank("Go")
	if len(qs) != 4 {
		t.Errorf("expected previous 4 questions to survive, got %d", len(qs))
	}
	hash, _ := s.GetBankHash("Go")
	if hash != "h1" {
		t.Errorf("expected hash h1 after rollback, got %q", hash)
	}
}

func TestListSubjectsAndDelete(t *testing.T) {
	s := newTestStore(t)

	for _, subj := range []string{"Go", "Core Java", "Algorithms"} {
		if err := s.ReplaceBank(subj, "", testQuestions()); err != nil {
			t.Fatalf("ReplaceBank %s: %v", subj, err)
		}
	}
	subjects, _ := s.ListSubjects()
	if len(subjects) != 3 || subjects[0] != "Algorithms" || subjects[1] != "Core Java" || subjects[2] != "Go" {
		t.Errorf("expected [Algorithms Core Java Go], got %v", subjects)
	}
	count, _ := s.QuestionCount()
	if count != 12 {
		t.Errorf("expected 12 questions, got %d", count)
	}

	if err := s.DeleteBank("Core Java"); err != nil {
		t.Fatalf("DeleteBank: %v", err)
	}
	subjects, _ = s.ListSubjects()
	if len(subjects) != 2 {
		t.Errorf("expected 2 subjects after delete, got %v", subjects)
	}
	qs, _ := s.GetBank("Core Java")
	if len(qs) != 0 {
		t.Errorf("expected deleted bank to be empty, got %d", len(qs))
	}
	hash, err := s.GetBankHash("Core Java")
	if err != nil || hash != "" {
		t.Errorf("expected empty hash for deleted bank, got %q (%v)", hash, err)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash("/banks/go.yaml")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("/banks/go.yaml", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, err = s.GetImportedFileHash("/banks/go.yaml")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash("/banks/go.yaml", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/banks/go.yaml")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata("missing")
	if err != nil || v != "" {
		t.Errorf("expected empty value, got %q (%v)", v, err)
	}
	if err := s.SetMetadata("k", "v1"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata("k", "v2"); err != nil {
		t.Fatalf("SetMetadata update: %v", err)
	}
	v, _ = s.GetMetadata("k")
	if v != "v2" {
		t.Errorf("expected v2, got %q", v)
	}

	last, err := s.LastImport()
	if err != nil || !last.IsZero() {
		t.Errorf("expected zero last import, got %v (%v)", last, err)
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.MarkImported(at); err != nil {
		t.Fatalf("MarkImported: %v", err)
	}
	last, err = s.LastImport()
	if err != nil {
		t.Fatalf("LastImport: %v", err)
	}
	if !last.Equal(at) {
		t.Errorf("expected %v, got %v", at, last)
	}
}

func TestExportAllBanks(t *testing.T) {
	s := newTestStore(t)

	results, err := s.ExportAllBanks()
	if err != nil {
		t.Fatalf("ExportAllBanks: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}

	if err := s.ReplaceBank("Go", "h1", testQuestions()); err != nil {
		t.Fatalf("ReplaceBank: %v", err)
	}
	results, err = s.ExportAllBanks()
	if err != nil {
		t.Fatalf("ExportAllBanks: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Subject != "Go" || r.SourceHash != "h1" || len(r.Questions) != 4 {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.QuestionsBy[model.DifficultyBeginner] != 2 ||
		r.QuestionsBy[model.DifficultyIntermediate] != 1 ||
		r.QuestionsBy[model.DifficultyAdvanced] != 1 {
		t.Errorf("unexpected counts: %v", r.QuestionsBy)
	}
}
