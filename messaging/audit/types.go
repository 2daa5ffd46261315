// Package audit carries the append-only record of every ledger and vote mutation. The core only
// ever writes to a Sink; nothing here is read back by the ledger.
package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"andycoin/andycoin"
)

type Kind string

const (
	KindBalance   Kind = "balance"
	KindTransfer  Kind = "transfer"
	KindReset     Kind = "reset"
	KindConfig    Kind = "config"
	KindVoteStart Kind = "vote_start"
	KindVoteCast  Kind = "vote_cast"
	KindVoteEnd   Kind = "vote_end"
	KindCommand   Kind = "command"
)

// Event is one immutable audit record. Optional fields are omitted from the JSON line.
type Event struct {
	ID           string               `json:"id"`
	Time         time.Time            `json:"timestamp"`
	Kind         Kind                 `json:"kind"`
	Community    andycoin.CommunityID `json:"guild_id"`
	Member       andycoin.MemberID    `json:"user_id,omitempty"`
	Counterparty andycoin.MemberID    `json:"counterparty_id,omitempty"`
	Previous     *uint64              `json:"previous_balance,omitempty"`
	New          *uint64              `json:"new_balance,omitempty"`
	Change       int64                `json:"change,omitempty"`
	Reason       string               `json:"reason,omitempty"`
	Initiator    *andycoin.MemberID   `json:"initiator,omitempty"`
	Outcome      string               `json:"outcome"`
	Yes          int                  `json:"yes_votes,omitempty"`
	No           int                  `json:"no_votes,omitempty"`
	Args         string               `json:"arguments,omitempty"`
}

func NewEvent(kind Kind, community andycoin.CommunityID) Event {
	return Event{
		ID:        uuid.NewString(),
		Time:      time.Now().UTC(),
		Kind:      kind,
		Community: community,
		Outcome:   "success",
	}
}

// BalanceChange builds the record for one balance moving from prev to next.
func BalanceChange(kind Kind, community andycoin.CommunityID, member andycoin.MemberID, prev, next uint64, reason string, initiator *andycoin.MemberID) Event {
	e := NewEvent(kind, community)
	e.Member = member
	e.Previous = &prev
	e.New = &next
	e.Change = signedChange(prev, next)
	e.Reason = reason
	if initiator != nil {
		i := *initiator
		e.Initiator = &i
	}
	return e
}

// InitiatorString renders the initiator the way the balance log always has.
func (e Event) InitiatorString() string {
	if e.Initiator == nil {
		return "System"
	}
	return uintString(*e.Initiator)
}

func signedChange(prev, next uint64) int64 {
	if next >= prev {
		d := next - prev
		if d > 1<<63-1 {
			return 1<<63 - 1
		}
		return int64(d)
	}
	d := prev - next
	if d > 1<<63 {
		return -1 << 63
	}
	return -int64(d - 1) - 1
}

// Sink receives audit events. Implementations must not block the caller for long and must
// never panic back into the core; dropping an event is acceptable.
type Sink interface {
	Record(Event)
}

type Discard struct{}

func (Discard) Record(Event) {}

// Multi fans one event out to several sinks.
type Multi []Sink

func (m Multi) Record(e Event) {
	for _, s := range m {
		if s != nil {
			s.Record(e)
		}
	}
}

func RoleArgs(role andycoin.RoleID) string {
	return "role: " + uintString(role)
}

func VoteConfigArgs(vc andycoin.VoteConfig) string {
	return fmt.Sprintf("cooldown: %d, duration: %d, min_votes: %d, majority: %d",
		vc.CooldownHours, vc.DurationMinutes, vc.MinVotes, vc.MajorityPercentage)
}
