package service

import "errors"

var (
	// ErrInvalidTarget is returned when an entity reference is malformed.
	ErrInvalidTarget = errors.New("invalid target entity")

	// ErrUnknownAction is returned when no point value is configured for an
	// action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrNotBallotRace is returned when a ballot is submitted to a race
	// decided by points.
	ErrNotBallotRace = errors.New("race is not decided by ballot")

	// ErrVotingClosed is returned when a ballot arrives after the race's
	// closing time or after tabulation.
	ErrVotingClosed = errors.New("voting is closed")

	// ErrEmptyRanking is returned when a ballot ranks no valid candidates.
	ErrEmptyRanking = errors.New("ballot ranks no valid candidates")
)
