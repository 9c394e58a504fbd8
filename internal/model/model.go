package model

import (
	"context"
	"math"
)

// Difficulty represents the tier a question belongs to.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// ExperienceLevel is the final classification of an assessment.
type ExperienceLevel string

const (
	LevelBeginner     ExperienceLevel = "beginner"
	LevelIntermediate ExperienceLevel = "intermediate"
	LevelAdvanced     ExperienceLevel = "advanced"
)

// State is a position in the assessment flow.
type State string

const (
	StateIntro              State = "intro"
	StateBeginnerQuiz       State = "beginner_quiz"
	StateBeginnerResult     State = "beginner_result"
	StateIntermediateQuiz   State = "intermediate_quiz"
	StateIntermediateResult State = "intermediate_result"
	StateCompleted          State = "completed"
	StateAborted            State = "aborted"
)

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// IsQuiz reports whether answers may be selected in s.
func (s State) IsQuiz() bool {
	return s == StateBeginnerQuiz || s == StateIntermediateQuiz
}

// IsResult reports whether s shows a graded round.
func (s State) IsResult() bool {
	return s == StateBeginnerResult || s == StateIntermediateResult
}

// Question is one multiple-choice item of a subject bank.
type Question struct {
	ID           int        `json:"id" yaml:"id"`
	Text         string     `json:"text" yaml:"text"`
	Options      []string   `json:"options" yaml:"options"`
	CorrectIndex int        `json:"correct_index" yaml:"correct_index"`
	Difficulty   Difficulty `json:"difficulty" yaml:"difficulty"`
}

// PublicQuestion is a question without its answer key, safe to send to a learner.
type PublicQuestion struct {
	ID         int        `json:"id"`
	Text       string     `json:"text"`
	Options    []string   `json:"options"`
	Difficulty Difficulty `json:"difficulty"`
}

// Public strips the answer key.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{ID: q.ID, Text: q.Text, Options: q.Options, Difficulty: q.Difficulty}
}

// Answer is a learner's response to one question.
// Selected is nil until the learner picks an option; IsCorrect is nil until graded.
type Answer struct {
	QuestionID int   `json:"question_id"`
	Selected   *int  `json:"selected"`
	IsCorrect  *bool `json:"is_correct,omitempty"`
}

// RoundResult is the graded outcome of one round.
type RoundResult struct {
	Difficulty    Difficulty `json:"difficulty"`
	QuestionCount int        `json:"question_count"`
	CorrectCount  int        `json:"correct_count"`
	ScorePercent  int        `json:"score_percent"`
	Passed        bool       `json:"passed"`
	Answers       []Answer   `json:"answers"`
}

// DisplayPercent returns the score with one decimal place.
func (r RoundResult) DisplayPercent() float64 {
	if r.QuestionCount == 0 {
		return 0
	}
	return math.Round(float64(r.CorrectCount)/float64(r.QuestionCount)*1000) / 10
}

// CoursePayload is handed to the course-generation service once an assessment completes.
type CoursePayload struct {
	Subject                  string          `json:"subject"`
	ExperienceLevel          ExperienceLevel `json:"experienceLevel"`
	BeginnerScorePercent     int             `json:"beginnerScorePercent"`
	IntermediateScorePercent *int            `json:"intermediateScorePercent,omitempty"`
}

// SessionView is a read-only snapshot of an assessment for API responses.
type SessionView struct {
	ID           string           `json:"id"`
	Subject      string           `json:"subject"`
	Bank         string           `json:"bank"`
	State        State            `json:"state"`
	Questions    []PublicQuestion `json:"questions,omitempty"`
	Answers      []Answer         `json:"answers,omitempty"`
	Beginner     *RoundResult     `json:"beginner,omitempty"`
	Intermediate *RoundResult     `json:"intermediate,omitempty"`
	Level        ExperienceLevel  `json:"experience_level,omitempty"`
}

// AssessConfig holds runtime assessment parameters set via CLI flags.
type AssessConfig struct {
	RoundSize      int    // questions drawn per round
	PassPercent    int    // minimum rounded score that passes a round
	DefaultSubject string // bank served for unknown subjects
	BasePath       string // URL prefix for sub-path deployments
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}
