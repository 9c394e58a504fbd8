package assessment

import (
	"errors"
	"fmt"

	"github.com/pavelanni/assessor/internal/model"
)

var (
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnknownQuestion means the question is not part of the active round.
	ErrUnknownQuestion = errors.New("question not in current round")
	// ErrOptionOutOfRange means the selected option index does not exist.
	ErrOptionOutOfRange = errors.New("option out of range")
)

// TransitionError reports an event that is not allowed in the current state.
type TransitionError struct {
	From  model.State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from %s", e.Event, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IncompleteRoundError is the validation rejection returned when a round is
// submitted with unanswered questions. The session does not change state.
type IncompleteRoundError struct {
	Missing []int
}

func (e *IncompleteRoundError) Error() string {
	return fmt.Sprintf("%d question(s) unanswered", len(e.Missing))
}
