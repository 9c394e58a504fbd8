package assessment

import "github.com/pavelanni/assessor/internal/model"

// Outcome is how an assessment ended: Completed or Aborted.
type Outcome interface {
	outcome()
}

// Completed carries the classification and the graded rounds.
// Intermediate is nil when the learner stopped after the beginner round.
type Completed struct {
	Level        model.ExperienceLevel
	Beginner     *model.RoundResult
	Intermediate *model.RoundResult
}

// Aborted means the learner closed the assessment. It carries no level.
type Aborted struct {
	At model.State
}

func (Completed) outcome() {}
func (Aborted) outcome() {}

// deriveLevel applies the classification rule to the graded rounds.
func deriveLevel(beginner, intermediate *model.RoundResult) model.ExperienceLevel {
	switch {
	case beginner == nil || !beginner.Passed:
		return model.LevelBeginner
	case intermediate == nil || !intermediate.Passed:
		return model.LevelIntermediate
	default:
		return model.LevelAdvanced
	}
}
