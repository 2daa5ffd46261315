package andycoin

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnderflow         = errors.New("balance would go negative")
	ErrOverflow          = errors.New("balance would overflow")
	ErrInvalidAmount     = errors.New("invalid amount")

	ErrVoteAlreadyActive = errors.New("a vote is already active")
	ErrVoteOnCooldown    = errors.New("vote is on cooldown")
	ErrNoActiveVote      = errors.New("no active vote")
	ErrVoteExpired       = errors.New("the vote has just ended")
	ErrInvalidConfig     = errors.New("invalid configuration")

	ErrIO           = errors.New("store i/o failure")
	ErrCorruptStore = errors.New("store is corrupt")
)

// Errorf wraps a sentinel with detail so callers can still match it with errors.Is.
func Errorf(sentinel error, format string, a ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, a...))
}

// ErrorKind names the sentinel behind err, for audit records and API responses.
func ErrorKind(err error) string {
	for _, k := range []struct {
		err  error
		name string
	}{
		{ErrInsufficientFunds, "insufficient_funds"},
		{ErrUnderflow, "underflow"},
		{ErrOverflow, "overflow"},
		{ErrInvalidAmount, "invalid_amount"},
		{ErrVoteAlreadyActive, "vote_already_active"},
		{ErrVoteOnCooldown, "vote_on_cooldown"},
		{ErrNoActiveVote, "no_active_vote"},
		{ErrVoteExpired, "vote_expired"},
		{ErrInvalidConfig, "invalid_config"},
		{ErrIO, "io_error"},
		{ErrCorruptStore, "corrupt_store"},
	} {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	if err == nil {
		return "success"
	}
	return "error"
}
