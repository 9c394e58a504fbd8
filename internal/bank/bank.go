// Package bank holds per-subject question banks and the registry that
// resolves a learner-chosen subject to one of them.
package bank

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pavelanni/assessor/internal/model"
)

// DefaultSubject names the bank served when a subject has no bank of its own.
const DefaultSubject = "Default"

// Id ranges by convention partition a bank: 1-10 beginner, 11-20 intermediate.
const (
	beginnerMaxID     = 10
	intermediateMaxID = 20
)

const (
	minOptions = 2
	maxOptions = 6
)

// Bank is an immutable collection of questions for one subject.
type Bank struct {
	Name      string
	questions []model.Question
}

// New builds a bank from a copy of qs.
func New(name string, qs []model.Question) *Bank {
	cp := make([]model.Question, len(qs))
	for i, q := range qs {
		q.Options = slices.Clone(q.Options)
		cp[i] = q
	}
	return &Bank{Name: name, questions: cp}
}

// Questions returns a copy of every question in the bank.
func (b *Bank) Questions() []model.Question {
	return slices.Clone(b.questions)
}

// Len returns the number of questions in the bank.
func (b *Bank) Len() int {
	return len(b.questions)
}

// ByDifficulty returns the questions tagged d, in bank order.
func (b *Bank) ByDifficulty(d model.Difficulty) []model.Question {
	var out []model.Question
	for _, q := range b.questions {
		if q.Difficulty == d {
			out = append(out, q)
		}
	}
	return out
}

// Counts returns the number of questions per difficulty.
func (b *Bank) Counts() map[model.Difficulty]int {
	counts := make(map[model.Difficulty]int)
	for _, q := range b.questions {
		counts[q.Difficulty]++
	}
	return counts
}

// Validate checks the structural invariants of every question.
// All problems are reported together.
func (b *Bank) Validate() error {
	var errs []error
	if b.Name == "" {
		errs = append(errs, errors.New("bank name is required"))
	}
	seen := make(map[model.Difficulty]map[int]bool)
	for i, q := range b.questions {
		if q.Text == "" {
			errs = append(errs, fmt.Errorf("question %d (#%d): text is required", q.ID, i))
		}
		if !q.Difficulty.Valid() {
			errs = append(errs, fmt.Errorf("question %d: unknown difficulty %q", q.ID, q.Difficulty))
		}
		if n := len(q.Options); n < minOptions || n > maxOptions {
			errs = append(errs, fmt.Errorf("question %d: %d options, want %d to %d", q.ID, n, minOptions, maxOptions))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			errs = append(errs, fmt.Errorf("question %d: correct index %d out of range", q.ID, q.CorrectIndex))
		}
		if seen[q.Difficulty] == nil {
			seen[q.Difficulty] = make(map[int]bool)
		}
		if seen[q.Difficulty][q.ID] {
			errs = append(errs, fmt.Errorf("question %d: duplicate id within %s", q.ID, q.Difficulty))
		}
		seen[q.Difficulty][q.ID] = true
	}
	return errors.Join(errs...)
}

// RangeMismatches lists questions whose id falls outside the conventional
// range for their difficulty tag. The tag stays authoritative; mismatches
// are only reported.
func (b *Bank) RangeMismatches() []model.Question {
	var out []model.Question
	for _, q := range b.questions {
		switch q.Difficulty {
		case model.DifficultyBeginner:
			if q.ID < 1 || q.ID > beginnerMaxID {
				out = append(out, q)
			}
		case model.DifficultyIntermediate:
			if q.ID <= beginnerMaxID || q.ID > intermediateMaxID {
				out = append(out, q)
			}
		}
	}
	return out
}
