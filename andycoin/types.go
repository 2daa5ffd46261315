package andycoin

import (
	"sort"
	"time"
)

type CommunityID = uint64
type MemberID = uint64
type RoleID = uint64

// Outcome is how a vote concluded.
type Outcome string

const (
	OutcomePassed    Outcome = "passed"
	OutcomeFailed    Outcome = "failed"
	OutcomeForcedEnd Outcome = "forced_end"
)

type VoteConfig struct {
	CooldownHours      uint32 `json:"cooldown_hours"`
	DurationMinutes    uint32 `json:"duration_minutes"`
	MinVotes           uint32 `json:"min_votes"`
	MajorityPercentage uint32 `json:"majority_percentage"`
}

// DefaultVoteConfig is what a community votes under until an admin changes it.
func DefaultVoteConfig() VoteConfig {
	return VoteConfig{
		CooldownHours:      24,
		DurationMinutes:    30,
		MinVotes:           10,
		MajorityPercentage: 70,
	}
}

func (v VoteConfig) Cooldown() time.Duration {
	return time.Duration(v.CooldownHours) * time.Hour
}

func (v VoteConfig) Duration() time.Duration {
	return time.Duration(v.DurationMinutes) * time.Minute
}

// Validate rejects settings that would break vote invariants (a vote must end after it starts).
func (v VoteConfig) Validate() error {
	if v.MajorityPercentage > 100 {
		return Errorf(ErrInvalidConfig, "majority percentage %d is greater than 100", v.MajorityPercentage)
	}
	if v.DurationMinutes == 0 {
		return Errorf(ErrInvalidConfig, "vote duration must be at least one minute")
	}
	return nil
}

// VoteStatus is the vote slot of a community. Yes and No are only populated while Active.
type VoteStatus struct {
	Active       bool
	StartTime    time.Time
	EndTime      time.Time
	Initiator    MemberID
	Yes          map[MemberID]struct{}
	No           map[MemberID]struct{}
	LastVoteTime time.Time
	LastOutcome  Outcome
}

func (s VoteStatus) Clone() VoteStatus {
	c := s
	c.Yes = cloneSet(s.Yes)
	c.No = cloneSet(s.No)
	return c
}

func (s VoteStatus) Expired(now time.Time) bool {
	return s.Active && now.After(s.EndTime)
}

// CooldownEnds returns the earliest time a new vote may start, zero if no vote has concluded yet.
func (s VoteStatus) CooldownEnds(cfg VoteConfig) time.Time {
	if s.LastVoteTime.IsZero() {
		return time.Time{}
	}
	return s.LastVoteTime.Add(cfg.Cooldown())
}

type Config struct {
	GiverRole *RoleID
	Vote      VoteConfig
	Status    VoteStatus
}

func NewConfig() Config {
	return Config{Vote: DefaultVoteConfig()}
}

func (c Config) Clone() Config {
	n := c
	if c.GiverRole != nil {
		r := *c.GiverRole
		n.GiverRole = &r
	}
	n.Status = c.Status.Clone()
	return n
}

func cloneSet(in map[MemberID]struct{}) map[MemberID]struct{} {
	if in == nil {
		return nil
	}
	out := make(map[MemberID]struct{}, len(in))
	for m := range in {
		out[m] = struct{}{}
	}
	return out
}

func sortedMembers(in map[MemberID]struct{}) []MemberID {
	out := make([]MemberID, 0, len(in))
	for m := range in {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
