package store

import (
	"fmt"

	"github.com/pavelanni/assessor/internal/model"
)

// ExportAllBanks builds export-ready results for every stored bank.
func (s *Store) ExportAllBanks() ([]model.BankResult, error) {
	subjects, err := s.ListSubjects()
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	var results []model.BankResult
	for _, subj := range subjects {
		qs, err := s.GetBank(subj)
		if err != nil {
			return nil, fmt.Errorf("get bank %q: %w", subj, err)
		}
		hash, err := s.GetBankHash(subj)
		if err != nil {
			return nil, fmt.Errorf("get hash of %q: %w", subj, err)
		}

		counts := make(map[model.Difficulty]int)
		for _, q := range qs {
			counts[q.Difficulty]++
		}
		results = append(results, model.BankResult{
			Subject:     subj,
			SourceHash:  hash,
			QuestionsBy: counts,
			Questions:   qs,
		})
	}

	return results, nil
}
