package common

import "errors"

var (
	// creation
	ErrInvalidPollSpecification = errors.New("invalid poll specification")
	ErrInsufficientFunds        = errors.New("insufficient funds")

	// submission
	ErrAnswerSchemaMismatch   = errors.New("answers do not match the poll's questions")
	ErrDuplicateParticipation = errors.New("participant has already answered this poll")
	ErrCreatorParticipation   = errors.New("poll creator cannot answer their own poll")
	ErrSignerMismatch         = errors.New("signer is not the participant")

	ErrMissingSigner = errors.New("missing signer")

	ErrPollNotFound = errors.New("poll not found")
	ErrPollInactive = errors.New("poll is no longer active")

	// settlement, after the participation record was stored
	ErrClaimFailed      = errors.New("reward claim failed")
	ErrNotParticipating = errors.New("no participation record for this poll")

	// discovery, never returned to callers of a listing
	ErrVisibilityCheckDegraded = errors.New("visibility check degraded")
)
