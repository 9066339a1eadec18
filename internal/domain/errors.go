package domain

import "errors"

var (
	// ErrUnauthenticated is returned when a call carries no caller identity.
	ErrUnauthenticated = errors.New("caller must be authenticated")
	// ErrPermissionDenied is returned when the caller may not act for the target team.
	ErrPermissionDenied = errors.New("caller may not act for this team")
	// ErrInvalidArgument indicates a missing or malformed request field.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is the parent of every lookup failure below.
	ErrNotFound = errors.New("not found")
	// ErrQuestionNotFound indicates the question id is unknown.
	ErrQuestionNotFound = wrapKind(ErrNotFound, "question not found")
	// ErrAnswerNotFound indicates the question has no answer key.
	ErrAnswerNotFound = wrapKind(ErrNotFound, "answer key not found")
	// ErrTeamNotFound is returned when a caller acts before registering.
	ErrTeamNotFound = wrapKind(ErrNotFound, "team not found")

	// ErrConflict is the parent of every precondition failure below.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition is returned for a game status change the state machine forbids.
	ErrInvalidTransition = wrapKind(ErrConflict, "invalid game status transition")
	// ErrGameNotStarted rejects play while the game is not running.
	ErrGameNotStarted = wrapKind(ErrConflict, "game is not running")
	// ErrGameInProgress rejects question uploads during a run.
	ErrGameInProgress = wrapKind(ErrConflict, "game is in progress")
	// ErrGameFinished rejects registration after the game ended.
	ErrGameFinished = wrapKind(ErrConflict, "game has finished")
	// ErrTeamExists is returned when a team registers twice.
	ErrTeamExists = wrapKind(ErrConflict, "team already registered")
	// ErrTeamFinished is returned when a finished team asks for a question.
	ErrTeamFinished = wrapKind(ErrConflict, "team has finished")
	// ErrQuestionNotCurrent rejects answers to a question the team is not on.
	ErrQuestionNotCurrent = wrapKind(ErrConflict, "question is not the team's current question")
)

type kindError struct {
	kind error
	msg  string
}

func wrapKind(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }
