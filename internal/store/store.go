package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/assessor/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would open its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS banks (
		subject TEXT PRIMARY KEY,
		source_hash TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject TEXT NOT NULL,
		question_id INTEGER NOT NULL,
		text TEXT NOT NULL,
		options TEXT NOT NULL,
		correct_index INTEGER NOT NULL,
		difficulty TEXT NOT NULL,
		UNIQUE (subject, difficulty, question_id),
		FOREIGN KEY (subject) REFERENCES banks(subject) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ReplaceBank stores qs as the bank for subject, replacing any previous
// content of that bank.
func (s *Store) ReplaceBank(subject, sourceHash string, qs []model.Question) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO banks (subject, source_hash, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(subject) DO UPDATE SET source_hash = ?, updated_at = ?`,
		subject, sourceHash, time.Now(), sourceHash, time.Now(),
	)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM questions WHERE subject = ?`, subject); err != nil {
		return err
	}

	for _, q := range qs {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("encode options of question %d: %w", q.ID, err)
		}
		_, err = tx.Exec(
			`INSERT INTO questions (subject, question_id, text, options, correct_index, difficulty)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			subject, q.ID, q.Text, string(opts), q.CorrectIndex, q.Difficulty,
		)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", q.ID, err)
		}
	}

	return tx.Commit()
}

// GetBank returns the questions stored for subject, beginner first.
// An unknown subject yields an empty list.
func (s *Store) GetBank(subject string) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT question_id, text, options, correct_index, difficulty FROM questions
		 WHERE subject = ?
		 ORDER BY CASE difficulty WHEN 'beginner' THEN 0 WHEN 'intermediate' THEN 1 ELSE 2 END, question_id`,
		subject,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var opts string
		if err := rows.Scan(&q.ID, &q.Text, &opts, &q.CorrectIndex, &q.Difficulty); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetBankHash returns the source hash recorded for subject, or "" if the
// bank is not stored.
func (s *Store) GetBankHash(subject string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT source_hash FROM banks WHERE subject = ?`, subject).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// ListSubjects returns the stored subjects in alphabetical order.
func (s *Store) ListSubjects() ([]string, error) {
	rows, err := s.db.Query(`SELECT subject FROM banks ORDER BY subject`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []string
	for rows.Next() {
		var subj string
		if err := rows.Scan(&subj); err != nil {
			return nil, err
		}
		subjects = append(subjects, subj)
	}
	return subjects, rows.Err()
}

// DeleteBank removes a bank and its questions.
func (s *Store) DeleteBank(subject string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM questions WHERE subject = ?`, subject); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM banks WHERE subject = ?`, subject); err != nil {
		return err
	}
	return tx.Commit()
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// GetImportedFileHash returns the hash recorded for an imported file path,
// or "" if the file was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT hash FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the hash of an imported file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, hash) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = ?`,
		path, hash, hash,
	)
	return err
}
