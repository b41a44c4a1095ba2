package exam

import "errors"

var (
	// ErrNavigationUnavailable is returned for next/previous outside single-page mode.
	ErrNavigationUnavailable = errors.New("navigation is only available in single-page mode")
	// ErrAtFirstQuestion is returned when moving back from the first question.
	ErrAtFirstQuestion = errors.New("already at the first question")
	// ErrAtLastQuestion is returned when moving forward from the last question.
	ErrAtLastQuestion = errors.New("already at the last question")
	// ErrNotVisible is returned when answering a question that is not on screen.
	ErrNotVisible = errors.New("question is not the visible one")
	// ErrSubmitUnavailable is returned when submit is requested before the last question in single-page mode.
	ErrSubmitUnavailable = errors.New("submit is only offered on the last question")
	// ErrNotConfirming is returned when confirming a submission that was never requested.
	ErrNotConfirming = errors.New("no submission awaiting confirmation")
	// ErrAlreadySubmitted is returned for actions after the session was scored.
	ErrAlreadySubmitted = errors.New("exam already submitted")
)
