package service

import (
	"errors"
)

type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindInvalidState    Kind = "invalid_state"
	KindValidation      Kind = "validation_error"
	KindConflict        Kind = "conflict"
	KindUnauthenticated Kind = "unauthorized"
	KindForbidden       Kind = "forbidden"
)

// Error is a failure the caller can act on: Kind is the broad category used for
// status mapping and Code is the stable machine-readable reason.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrTournamentNotFound = newError(KindNotFound, "TournamentNotFound", "tournament not found")
	ErrTeamNotFound       = newError(KindNotFound, "TeamNotFound", "team not found")
	ErrMatchNotFound      = newError(KindNotFound, "MatchNotFound", "match not found")

	ErrRegistrationClosed      = newError(KindInvalidState, "RegistrationClosed", "tournament registration is not open")
	ErrCheckInClosed           = newError(KindInvalidState, "CheckInClosed", "check-in is not open for this tournament")
	ErrBracketAlreadyGenerated = newError(KindInvalidState, "BracketAlreadyGenerated", "bracket has already been generated")
	ErrInvalidPhase            = newError(KindInvalidState, "InvalidPhase", "operation is not allowed in the tournament's current phase")
	ErrInvalidTransition       = newError(KindInvalidState, "InvalidTransition", "invalid approval status transition")
	ErrCodeNotIssued           = newError(KindInvalidState, "CodeNotIssued", "team has no check-in code until it is approved")

	ErrInvalidCode       = newError(KindValidation, "InvalidCode", "check-in code does not match any approved team")
	ErrInvalidScore      = newError(KindValidation, "InvalidScore", "scores must be non-negative and must differ")
	ErrTeamsNotAssigned  = newError(KindValidation, "TeamsNotAssigned", "both teams must be assigned before reporting a result")
	ErrDuplicateTeam     = newError(KindValidation, "DuplicateTeam", "a team with this name is already registered")
	ErrCapacityExceeded  = newError(KindValidation, "CapacityExceeded", "tournament is full")
	ErrInsufficientTeams = newError(KindValidation, "InsufficientTeams", "at least two approved and checked-in teams are required")
	ErrInvalidInput      = newError(KindValidation, "InvalidInput", "invalid input")

	ErrTournamentBusy           = newError(KindConflict, "TournamentBusy", "tournament is busy, try again")
	ErrDownstreamAlreadyStarted = newError(KindConflict, "DownstreamAlreadyStarted", "the next match already has a result")

	ErrNotAuthenticated = newError(KindUnauthenticated, "NotAuthenticated", "authentication required")
	ErrAdminRequired    = newError(KindForbidden, "AdminRequired", "only admins can perform this action")
)

// invalidInput is a validation failure that keeps the InvalidInput code but
// carries a specific message. It matches ErrInvalidInput with errors.Is.
func invalidInput(message string) error {
	return &Error{Kind: KindValidation, Code: ErrInvalidInput.Code, Message: message}
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// AsError extracts the typed failure from a wrapped error chain.
func AsError(err error) (*Error, bool) {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return nil, false
}
