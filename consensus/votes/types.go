// Package votes runs the per-community reset vote on top of the ledger's configuration slot.
// A vote is Idle or Active; Cooldown is derived from the time the last vote concluded.
package votes

import (
	"fmt"
	"time"

	"github.com/spf13/cast"

	"andycoin/andycoin"
)

type Choice int

const (
	Yes Choice = iota
	No
)

func (c Choice) String() string {
	if c == No {
		return "no"
	}
	return "yes"
}

// ParseChoice accepts yes/y/true and no/n/false in any form cast understands.
func ParseChoice(s string) (Choice, error) {
	switch s {
	case "yes", "y", "Yes", "YES", "Y":
		return Yes, nil
	case "no", "n", "No", "NO", "N":
		return No, nil
	}
	b, err := cast.ToBoolE(s)
	if err != nil {
		return Yes, fmt.Errorf("%q is not a vote choice", s)
	}
	if b {
		return Yes, nil
	}
	return No, nil
}

// Tally is the count of a vote at one moment. Outcome is empty while the vote is still open.
type Tally struct {
	Community andycoin.CommunityID `json:"guild_id"`
	Initiator andycoin.MemberID    `json:"initiator_id"`
	EndTime   time.Time            `json:"end_time"`
	Yes       int                  `json:"yes_votes"`
	No        int                  `json:"no_votes"`
	Total     int                  `json:"total_votes"`
	Outcome   andycoin.Outcome     `json:"outcome,omitempty"`
	Reset     int                  `json:"balances_reset"`
}

func (t Tally) Concluded() bool {
	return t.Outcome != ""
}

// Report answers a status query. For an open vote WouldPass is the pass condition right now;
// for a concluded one Outcome is set and the counts are the final tally.
type Report struct {
	Community    andycoin.CommunityID `json:"guild_id"`
	Active       bool                 `json:"active"`
	Initiator    andycoin.MemberID    `json:"initiator_id,omitempty"`
	StartTime    time.Time            `json:"start_time,omitempty"`
	EndTime      time.Time            `json:"end_time,omitempty"`
	Yes          int                  `json:"yes_votes"`
	No           int                  `json:"no_votes"`
	WouldPass    bool                 `json:"would_pass"`
	Outcome      andycoin.Outcome     `json:"outcome,omitempty"`
	LastVoteTime time.Time            `json:"last_vote_time,omitempty"`
	CooldownEnds time.Time            `json:"cooldown_ends,omitempty"`
	Config       andycoin.VoteConfig  `json:"vote_config"`
}

// OnCooldown reports whether a new vote would be refused at now.
func (r Report) OnCooldown(now time.Time) bool {
	return !r.Active && !r.CooldownEnds.IsZero() && now.Before(r.CooldownEnds)
}

// Transition is one vote closed by a sweep.
type Transition struct {
	Community andycoin.CommunityID
	Tally     Tally
}
