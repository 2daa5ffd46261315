package andycoin

import (
	"fmt"
	"time"
)

const SnapshotVersion = 1

// Snapshot is the whole ledger as written to the flat file.
type Snapshot struct {
	Version     int             `json:"version"`
	SavedAt     time.Time       `json:"saved_at"`
	Balances    []BalanceRecord `json:"balances"`
	Communities []ConfigRecord  `json:"communities"`
}

type BalanceRecord struct {
	Community CommunityID `json:"community_id"`
	Member    MemberID    `json:"member_id"`
	Balance   uint64      `json:"balance"`
}

type ConfigRecord struct {
	Community CommunityID       `json:"community_id"`
	GiverRole *RoleID           `json:"giver_role_id,omitempty"`
	Vote      *VoteConfigRecord `json:"vote_config,omitempty"`
	Status    *VoteStatusRecord `json:"vote_status,omitempty"`
}

// VoteConfigRecord is the persisted vote configuration. A field the file does not carry keeps
// its default.
type VoteConfigRecord struct {
	CooldownHours      *uint32 `json:"cooldown_hours,omitempty"`
	DurationMinutes    *uint32 `json:"duration_minutes,omitempty"`
	MinVotes           *uint32 `json:"min_votes,omitempty"`
	MajorityPercentage *uint32 `json:"majority_percentage,omitempty"`
}

type VoteStatusRecord struct {
	Active       bool       `json:"active"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Initiator    *MemberID  `json:"initiator_id,omitempty"`
	Yes          []MemberID `json:"yes_votes,omitempty"`
	No           []MemberID `json:"no_votes,omitempty"`
	LastVoteTime *time.Time `json:"last_vote_time,omitempty"`
	LastOutcome  Outcome    `json:"last_outcome,omitempty"`
}

func (s Snapshot) Empty() bool {
	return len(s.Balances) == 0 && len(s.Communities) == 0
}

// Record converts a community configuration into its persisted form.
func (c Config) Record(community CommunityID) ConfigRecord {
	r := ConfigRecord{
		Community: community,
		Vote:      c.Vote.record(),
		Status:    c.Status.record(),
	}
	if c.GiverRole != nil {
		role := *c.GiverRole
		r.GiverRole = &role
	}
	return r
}

// Config converts a persisted record back, filling anything missing with defaults.
func (r ConfigRecord) Config() Config {
	c := NewConfig()
	if r.GiverRole != nil {
		role := *r.GiverRole
		c.GiverRole = &role
	}
	if r.Vote != nil {
		c.Vote = r.Vote.config(r.Community)
	}
	if r.Status != nil {
		c.Status = r.Status.status()
	}
	return c
}

func (v VoteConfig) record() *VoteConfigRecord {
	cooldown, duration, minVotes, majority := v.CooldownHours, v.DurationMinutes, v.MinVotes, v.MajorityPercentage
	return &VoteConfigRecord{
		CooldownHours:      &cooldown,
		DurationMinutes:    &duration,
		MinVotes:           &minVotes,
		MajorityPercentage: &majority,
	}
}

func (r VoteConfigRecord) config(community CommunityID) VoteConfig {
	v := DefaultVoteConfig()
	if r.CooldownHours != nil {
		v.CooldownHours = *r.CooldownHours
	}
	if r.DurationMinutes != nil {
		v.DurationMinutes = *r.DurationMinutes
	}
	if r.MinVotes != nil {
		v.MinVotes = *r.MinVotes
	}
	if r.MajorityPercentage != nil {
		v.MajorityPercentage = *r.MajorityPercentage
	}
	if err := v.Validate(); err != nil {
		LogCLI(fmt.Sprintf("guild %d: stored vote config rejected, using defaults: %s", community, err), 2)
		return DefaultVoteConfig()
	}
	return v
}

func (s VoteStatus) record() *VoteStatusRecord {
	r := &VoteStatusRecord{
		Active:       s.Active,
		StartTime:    timePtr(s.StartTime),
		EndTime:      timePtr(s.EndTime),
		LastVoteTime: timePtr(s.LastVoteTime),
		LastOutcome:  s.LastOutcome,
	}
	if s.Active {
		initiator := s.Initiator
		r.Initiator = &initiator
		r.Yes = sortedMembers(s.Yes)
		r.No = sortedMembers(s.No)
	}
	return r
}

func (r VoteStatusRecord) status() VoteStatus {
	s := VoteStatus{
		Active:      r.Active,
		LastOutcome: r.LastOutcome,
	}
	if r.StartTime != nil {
		s.StartTime = *r.StartTime
	}
	if r.EndTime != nil {
		s.EndTime = *r.EndTime
	}
	if r.LastVoteTime != nil {
		s.LastVoteTime = *r.LastVoteTime
	}
	// an active vote without a sane window cannot be honoured; treat it as idle
	if s.Active && (s.StartTime.IsZero() || !s.EndTime.After(s.StartTime)) {
		s.Active = false
	}
	if !s.Active {
		return s
	}
	if r.Initiator != nil {
		s.Initiator = *r.Initiator
	}
	s.Yes = make(map[MemberID]struct{}, len(r.Yes))
	s.No = make(map[MemberID]struct{}, len(r.No))
	for _, m := range r.Yes {
		s.Yes[m] = struct{}{}
	}
	for _, m := range r.No {
		if _, dup := s.Yes[m]; dup {
			continue
		}
		s.No[m] = struct{}{}
	}
	return s
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
