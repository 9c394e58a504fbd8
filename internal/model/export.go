package model

import "time"

// BankFile is the on-disk format of a question bank (YAML or JSON).
type BankFile struct {
	Subject   string     `json:"subject" yaml:"subject"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// BankExport is the top-level JSON structure written by the export command.
type BankExport struct {
	ExportedAt time.Time    `json:"exported_at"`
	Banks      []BankResult `json:"banks"`
}

// BankResult holds one stored bank for export.
type BankResult struct {
	Subject     string             `json:"subject"`
	SourceHash  string             `json:"source_hash,omitempty"`
	QuestionsBy map[Difficulty]int `json:"questions_by_difficulty"`
	Questions   []Question         `json:"questions"`
}
