package domain

import "errors"

var (
	// ErrSessionNotFound is returned when an exam session id is unknown.
	ErrSessionNotFound = errors.New("exam session not found")
	// ErrInvalidTransition is returned when an operation is not legal in the current phase.
	ErrInvalidTransition = errors.New("operation not allowed in current phase")
	// ErrNoQuestions indicates neither the question bank nor AI generation produced anything.
	ErrNoQuestions = errors.New("no questions available for this selection")
	// ErrNotEnoughQuestions indicates the combined sources could not reach the target count.
	ErrNotEnoughQuestions = errors.New("not enough questions to fill the exam")
	// ErrInvalidConfig is returned for unusable session configurations.
	ErrInvalidConfig = errors.New("invalid session configuration")
	// ErrInvalidQuestion is returned for malformed questions.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrQuestionIndex is returned for out-of-range question indices.
	ErrQuestionIndex = errors.New("question index out of range")
	// ErrInvalidChoice is returned for option indices outside 0..3.
	ErrInvalidChoice = errors.New("invalid option index")
	// ErrUnauthenticated is returned when an action requires a signed-in user.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the user does not own the resource.
	ErrForbidden = errors.New("not allowed")

	// ErrRoomNotFound is returned when a battle room does not exist.
	ErrRoomNotFound = errors.New("battle room not found")
	// ErrPlayerNotFound is returned when a user acts in a room before joining.
	ErrPlayerNotFound = errors.New("player not found in battle")
	// ErrNotHost is returned when a non-host tries to start a battle.
	ErrNotHost = errors.New("only the host can start the battle")
	// ErrBattleNotActive is returned for answers outside the ACTIVE status.
	ErrBattleNotActive = errors.New("battle is not active")
	// ErrBattleStarted is returned when joining or starting a room that already started.
	ErrBattleStarted = errors.New("battle already started")
	// ErrAlreadyAnswered is returned for a second answer to the same battle question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrStaleQuestion is returned when an answer targets a question other than the current one.
	ErrStaleQuestion = errors.New("answer is for a question that is no longer current")

	// ErrHandoffEmpty is returned when no handoff message is waiting.
	ErrHandoffEmpty = errors.New("no pending handoff message")
)
