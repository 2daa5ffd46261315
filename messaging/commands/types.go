// Package commands maps each chat command onto exactly one ledger or vote operation and
// enforces who may run it. Rendering the reply is left to the front end.
package commands

import (
	"errors"
	"time"

	"andycoin/andycoin"
	"andycoin/consensus/ledger"
	"andycoin/consensus/votes"
)

var (
	ErrNotPermitted = errors.New("not permitted")
	ErrGuildOnly    = errors.New("this command can only be used in a server")
	ErrDuplicate    = errors.New("duplicate invocation")
	ErrRateLimited  = errors.New("too many flips, slow down")
	ErrInvalidGuess = errors.New("guess must be heads or tails")
)

// Invoker is who ran a command and the permission facts the chat platform knows about them.
// Community is zero for direct messages.
type Invoker struct {
	Member       andycoin.MemberID
	Community    andycoin.CommunityID
	Roles        []andycoin.RoleID
	Owner        bool
	Admin        bool
	InvocationID string
}

func (i Invoker) InGuild() bool {
	return i.Community != 0
}

type BalanceResult struct {
	Member  andycoin.MemberID `json:"user_id"`
	Balance uint64            `json:"balance"`
	Scope   string            `json:"scope"`
}

type LeaderboardResult struct {
	Scope     string            `json:"scope"`
	Standings []ledger.Standing `json:"standings"`
}

type FlipResult struct {
	Result  string `json:"result"`
	Guess   string `json:"guess,omitempty"`
	Correct bool   `json:"correct"`
	Bet     bool   `json:"bet"`
	Balance uint64 `json:"balance,omitempty"`
}

// VoteReply is the answer to /vote. Started is set for a new vote, Tally for a ballot.
type VoteReply struct {
	Started *andycoin.VoteStatus `json:"started,omitempty"`
	Config  andycoin.VoteConfig  `json:"vote_config"`
	Tally   *votes.Tally         `json:"tally,omitempty"`
}

// VoteConfigUpdate changes only the fields that are set.
type VoteConfigUpdate struct {
	CooldownHours      *uint32 `json:"cooldown_hours,omitempty"`
	DurationMinutes    *uint32 `json:"duration_minutes,omitempty"`
	MinVotes           *uint32 `json:"min_votes,omitempty"`
	MajorityPercentage *uint32 `json:"majority_percentage,omitempty"`
}

func (u VoteConfigUpdate) apply(vc andycoin.VoteConfig) andycoin.VoteConfig {
	if u.CooldownHours != nil {
		vc.CooldownHours = *u.CooldownHours
	}
	if u.DurationMinutes != nil {
		vc.DurationMinutes = *u.DurationMinutes
	}
	if u.MinVotes != nil {
		vc.MinVotes = *u.MinVotes
	}
	if u.MajorityPercentage != nil {
		vc.MajorityPercentage = *u.MajorityPercentage
	}
	return vc
}

// Options tune the dispatcher. Zero values fall back to the defaults in andycoin.SetDefaults.
type Options struct {
	FlipRate       float64
	FlipBurst      int
	DedupeCapacity uint
	Now            func() time.Time
}

// Outcome names err for command logs, the command-layer errors included.
func Outcome(err error) string {
	switch {
	case errors.Is(err, ErrNotPermitted):
		return "not_permitted"
	case errors.Is(err, ErrGuildOnly):
		return "guild_only"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidGuess):
		return "invalid_guess"
	}
	return andycoin.ErrorKind(err)
}
