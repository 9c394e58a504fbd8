package assessment

import (
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/pavelanni/assessor/internal/bank"
	"github.com/pavelanni/assessor/internal/model"
)

// Event drives the assessment state machine.
type Event string

const (
	EventStart    Event = "start"
	EventSelect   Event = "select"
	EventReset    Event = "reset"
	EventSubmit   Event = "submit"
	EventContinue Event = "continue"
	EventCancel   Event = "cancel"
)

// transition returns the state reached from "from" on ev. graded is the
// result of the round most recently graded; it decides where a result
// state leads. Select and reset keep a quiz state where it is.
func transition(from model.State, ev Event, graded *model.RoundResult) (model.State, error) {
	if ev == EventCancel && !from.Terminal() {
		return model.StateAborted, nil
	}
	switch from {
	case model.StateIntro:
		if ev == EventStart {
			return model.StateBeginnerQuiz, nil
		}
	case model.StateBeginnerQuiz, model.StateIntermediateQuiz:
		switch ev {
		case EventSelect, EventReset:
			return from, nil
		case EventSubmit:
			if from == model.StateBeginnerQuiz {
				return model.StateBeginnerResult, nil
			}
			return model.StateIntermediateResult, nil
		}
	case model.StateBeginnerResult:
		if ev == EventContinue {
			if graded != nil && graded.Passed {
				return model.StateIntermediateQuiz, nil
			}
			return model.StateCompleted, nil
		}
	case model.StateIntermediateResult:
		if ev == EventContinue {
			return model.StateCompleted, nil
		}
	}
	return from, &TransitionError{From: from, Event: ev}
}

// Session is one learner's run through the assessment for one subject.
// It is not safe for concurrent use.
type Session struct {
	id           string
	subject      string
	bank         *bank.Bank
	roundSize    int
	scorer       Scorer
	rng          *rand.Rand
	logger       *slog.Logger
	state        model.State
	questions    []model.Question
	answers      []model.Answer
	beginner     *model.RoundResult
	intermediate *model.RoundResult
	outcome      Outcome
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Subject returns the subject the learner asked for.
func (s *Session) Subject() string { return s.subject }

// BankName returns the name of the bank serving the session. It differs
// from Subject when the subject fell back to the default bank.
func (s *Session) BankName() string { return s.bank.Name }

// State returns the current position in the flow.
func (s *Session) State() model.State { return s.state }

// Questions returns the questions of the active round.
func (s *Session) Questions() []model.Question { return slices.Clone(s.questions) }

// Answers returns the answers of the active round.
func (s *Session) Answers() []model.Answer { return cloneAnswers(s.answers) }

// Start draws the beginner round.
func (s *Session) Start() error {
	next, err := transition(s.state, EventStart, nil)
	if err != nil {
		return err
	}
	s.beginRound(model.DifficultyBeginner)
	s.state = next
	return nil
}

// Select records option for questionID. A learner may change a selection
// any number of times before submitting.
func (s *Session) Select(questionID, option int) error {
	if _, err := transition(s.state, EventSelect, nil); err != nil {
		return err
	}
	i := slices.IndexFunc(s.questions, func(q model.Question) bool { return q.ID == questionID })
	if i < 0 {
		return ErrUnknownQuestion
	}
	if option < 0 || option >= len(s.questions[i].Options) {
		return ErrOptionOutOfRange
	}
	s.answers[i].Selected = &option
	return nil
}

// Reset clears every selection of the active round.
func (s *Session) Reset() error {
	if _, err := transition(s.state, EventReset, nil); err != nil {
		return err
	}
	for i := range s.answers {
		s.answers[i].Selected = nil
	}
	return nil
}

// Submit grades the active round. It is refused with *IncompleteRoundError
// while any question is unanswered.
func (s *Session) Submit() (model.RoundResult, error) {
	next, err := transition(s.state, EventSubmit, nil)
	if err != nil {
		return model.RoundResult{}, err
	}
	if missing := s.unanswered(); len(missing) > 0 {
		return model.RoundResult{}, &IncompleteRoundError{Missing: missing}
	}

	d := model.DifficultyBeginner
	if s.state == model.StateIntermediateQuiz {
		d = model.DifficultyIntermediate
	}
	res := s.scorer.Grade(d, s.questions, s.answers)
	if d == model.DifficultyBeginner {
		s.beginner = &res
	} else {
		s.intermediate = &res
	}
	s.answers = cloneAnswers(res.Answers)
	s.state = next
	s.logger.Info("round graded",
		"session", s.id, "difficulty", d,
		"correct", res.CorrectCount, "total", res.QuestionCount,
		"score", res.ScorePercent, "passed", res.Passed)
	return res, nil
}

// Continue leaves a result state: to the intermediate round after a passed
// beginner round, otherwise to completion.
func (s *Session) Continue() error {
	graded := s.beginner
	if s.state == model.StateIntermediateResult {
		graded = s.intermediate
	}
	next, err := transition(s.state, EventContinue, graded)
	if err != nil {
		return err
	}
	switch next {
	case model.StateIntermediateQuiz:
		s.beginRound(model.DifficultyIntermediate)
	case model.StateCompleted:
		level := deriveLevel(s.beginner, s.intermediate)
		s.outcome = Completed{Level: level, Beginner: s.beginner, Intermediate: s.intermediate}
		s.logger.Info("assessment completed", "session", s.id, "subject", s.subject, "level", level)
	}
	s.state = next
	return nil
}

// Cancel abandons the assessment. No level is derived.
func (s *Session) Cancel() error {
	next, err := transition(s.state, EventCancel, nil)
	if err != nil {
		return err
	}
	s.outcome = Aborted{At: s.state}
	s.logger.Info("assessment aborted", "session", s.id, "state", s.state)
	s.state = next
	s.questions = nil
	s.answers = nil
	return nil
}

// Outcome reports how the session ended. ok is false while it is running.
func (s *Session) Outcome() (o Outcome, ok bool) {
	return s.outcome, s.outcome != nil
}

// Payload builds the course-generation request of a completed session.
// ok is false for running and aborted sessions.
func (s *Session) Payload() (p model.CoursePayload, ok bool) {
	c, ok := s.outcome.(Completed)
	if !ok {
		return model.CoursePayload{}, false
	}
	p = model.CoursePayload{
		Subject:         s.subject,
		ExperienceLevel: c.Level,
	}
	if c.Beginner != nil {
		p.BeginnerScorePercent = c.Beginner.ScorePercent
	}
	if c.Intermediate != nil {
		v := c.Intermediate.ScorePercent
		p.IntermediateScorePercent = &v
	}
	return p, true
}

// Snapshot returns a read-only view without answer keys.
func (s *Session) Snapshot() model.SessionView {
	v := model.SessionView{
		ID:           s.id,
		Subject:      s.subject,
		Bank:         s.bank.Name,
		State:        s.state,
		Answers:      cloneAnswers(s.answers),
		Beginner:     s.beginner,
		Intermediate: s.intermediate,
	}
	for _, q := range s.questions {
		v.Questions = append(v.Questions, q.Public())
	}
	if c, ok := s.outcome.(Completed); ok {
		v.Level = c.Level
	}
	return v
}

func (s *Session) beginRound(d model.Difficulty) {
	s.questions = Sample(s.bank, d, s.roundSize, s.rng)
	s.answers = make([]model.Answer, len(s.questions))
	for i, q := range s.questions {
		s.answers[i] = model.Answer{QuestionID: q.ID}
	}
	if len(s.questions) < s.roundSize {
		s.logger.Warn("question bank undersized for round",
			"session", s.id, "bank", s.bank.Name, "difficulty", d,
			"available", len(s.questions), "want", s.roundSize)
	}
}

func (s *Session) unanswered() []int {
	var missing []int
	for _, a := range s.answers {
		if a.Selected == nil {
			missing = append(missing, a.QuestionID)
		}
	}
	return missing
}

func cloneAnswers(in []model.Answer) []model.Answer {
	if in == nil {
		return nil
	}
	out := make([]model.Answer, len(in))
	for i, a := range in {
		if a.Selected != nil {
			v := *a.Selected
			a.Selected = &v
		}
		if a.IsCorrect != nil {
			v := *a.IsCorrect
			a.IsCorrect = &v
		}
		out[i] = a
	}
	return out
}
