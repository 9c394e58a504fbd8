package assessment

import (
	"math"

	"github.com/pavelanni/assessor/internal/model"
)

// DefaultPassPercent is the lowest rounded score that passes a round.
const DefaultPassPercent = 60

// Scorer grades a round of answers. It holds no state between calls.
type Scorer struct {
	PassPercent int
}

// Grade compares answers against questions by question id. An answer that
// is missing or unselected counts as incorrect. The returned result carries
// graded copies of the answers in question order; the inputs are not modified.
func (s Scorer) Grade(d model.Difficulty, questions []model.Question, answers []model.Answer) model.RoundResult {
	selected := make(map[int]*int, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.Selected
	}

	res := model.RoundResult{
		Difficulty:    d,
		QuestionCount: len(questions),
		Answers:       make([]model.Answer, 0, len(questions)),
	}
	for _, q := range questions {
		sel := selected[q.ID]
		correct := sel != nil && *sel == q.CorrectIndex
		if correct {
			res.CorrectCount++
		}
		graded := model.Answer{QuestionID: q.ID, IsCorrect: &correct}
		if sel != nil {
			v := *sel
			graded.Selected = &v
		}
		res.Answers = append(res.Answers, graded)
	}

	res.ScorePercent = percent(res.CorrectCount, res.QuestionCount)
	res.Passed = res.ScorePercent >= s.PassPercent
	return res
}

// percent returns correct/total as a whole percentage, rounded half away from zero.
func percent(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
