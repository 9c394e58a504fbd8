package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pavelanni/assessor/internal/bank"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/store"
)

var bankExts = []string{".yaml", ".yml", ".json"}

// seedBanks stores the embedded banks whose subject is not in the database
// yet. Stored banks are never overwritten by seeds.
func seedBanks(db *store.Store) error {
	seeds, err := bank.Seeds()
	if err != nil {
		return err
	}
	stored, err := db.ListSubjects()
	if err != nil {
		return err
	}
	for _, b := range seeds {
		if slices.Contains(stored, b.Name) {
			continue
		}
		if err := db.ReplaceBank(b.Name, "", b.Questions()); err != nil {
			return fmt.Errorf("store seed %q: %w", b.Name, err)
		}
		slog.Info("seeded question bank", "subject", b.Name, "questions", b.Len())
	}
	return nil
}

// expandBankPaths replaces directories with the bank files they contain.
func expandBankPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("bank path: %w", err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read bank dir %s: %w", p, err)
		}
		for _, e := range entries {
			if !e.IsDir() && slices.Contains(bankExts, strings.ToLower(filepath.Ext(e.Name()))) {
				out = append(out, filepath.Join(p, e.Name()))
			}
		}
	}
	return out, nil
}

// importBanks validates and stores bank files. Files whose content is
// unchanged since the last import are skipped unless force is set. A changed
// file replaces its bank; running assessments keep the bank they started with.
func importBanks(db *store.Store, paths []string, force bool) (int, error) {
	imported := 0
	for _, path := range paths {
		b, data, err := bank.LoadFile(path)
		if err != nil {
			return imported, err
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return imported, fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash && !force {
			slog.Info("bank file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" && storedHash != hash {
			slog.Info("bank file changed since last import, replacing", "path", path, "subject", b.Name)
		}

		bank.LogRangeMismatches(slog.Default(), b)
		if err := db.ReplaceBank(b.Name, hash, b.Questions()); err != nil {
			return imported, fmt.Errorf("store bank from %s: %w", path, err)
		}
		if err := db.SetImportedFileHash(path, hash); err != nil {
			return imported, fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported question bank", "path", path, "subject", b.Name, "questions", b.Len())
		imported++
	}

	if imported > 0 {
		if err := db.MarkImported(time.Now()); err != nil {
			slog.Warn("failed to record import time", "error", err)
		}
	}
	return imported, nil
}

// loadRegistry registers every stored bank. The bank registered under
// defaultSubject is served for unknown subjects; the embedded default seed
// stands in while nothing is registered there.
func loadRegistry(db *store.Store, defaultSubject string) (*bank.Registry, error) {
	subjects, err := db.ListSubjects()
	if err != nil {
		return nil, err
	}

	banks := make(map[string]*bank.Bank, len(subjects))
	for _, subj := range subjects {
		qs, err := db.GetBank(subj)
		if err != nil {
			return nil, fmt.Errorf("read bank %q: %w", subj, err)
		}
		b := bank.New(subj, qs)
		if err := b.Validate(); err != nil {
			slog.Warn("skipping invalid stored bank", "subject", subj, "error", err)
			continue
		}
		banks[subj] = b
	}

	if _, ok := banks[defaultSubject]; !ok {
		slog.Warn("default subject has no bank, using built-in default", "subject", defaultSubject)
	}
	seeds, err := bank.Seeds()
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(seeds, func(b *bank.Bank) bool { return b.Name == bank.DefaultSubject })
	if i < 0 {
		return nil, fmt.Errorf("built-in default bank missing")
	}

	reg := bank.NewRegistry(defaultSubject, seeds[i], slog.Default())
	for name, b := range banks {
		reg.Register(name, b)
	}
	return reg, nil
}

// printBanks writes one row per bank followed by the stored question total.
func printBanks(w io.Writer, results []model.BankResult, total int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBJECT\tBEGINNER\tINTERMEDIATE\tADVANCED\tSOURCE")
	for _, r := range results {
		src := r.SourceHash
		if src == "" {
			src = "built-in"
		} else if len(src) > 12 {
			src = src[:12]
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", r.Subject,
			r.QuestionsBy[model.DifficultyBeginner],
			r.QuestionsBy[model.DifficultyIntermediate],
			r.QuestionsBy[model.DifficultyAdvanced],
			src)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d questions in %d banks\n", total, len(results))
	return err
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
