package votes

import (
	"fmt"
	"time"

	"andycoin/andycoin"
	"andycoin/consensus/ledger"
	"andycoin/messaging/audit"
)

// Engine drives every community's vote. All state lives in the ledger; the engine only holds
// the clock.
type Engine struct {
	ledger *ledger.Ledger
	now    func() time.Time
}

func New(l *ledger.Ledger) *Engine {
	return &Engine{
		ledger: l,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests use it to move past end times and cooldowns.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) Now() time.Time {
	return e.now()
}

// Passes is the pass condition, in integers so the boundary never depends on rounding.
// A vote nobody took part in never passes.
func Passes(vc andycoin.VoteConfig, yes, no int) bool {
	total := uint64(yes) + uint64(no)
	if total == 0 || total < uint64(vc.MinVotes) {
		return false
	}
	return uint64(yes)*100 >= uint64(vc.MajorityPercentage)*total
}

// Start opens a vote. A vote that is still marked active but already past its end is
// concluded first, and the cooldown then applies from that moment.
func (e *Engine) Start(c andycoin.CommunityID, initiator andycoin.MemberID) (status andycoin.VoteStatus, err error) {
	now := e.now()
	var opErr error
	err = e.ledger.Update(c, func(tx *ledger.Tx) error {
		cfg := tx.Config()
		if cfg.Status.Expired(now) {
			finalize(tx, now, false)
		}
		if cfg.Status.Active {
			opErr = andycoin.Errorf(andycoin.ErrVoteAlreadyActive, "ends at %s", cfg.Status.EndTime.Format(time.RFC3339))
			return nil
		}
		if ends := cfg.Status.CooldownEnds(cfg.Vote); !ends.IsZero() && now.Before(ends) {
			opErr = andycoin.Errorf(andycoin.ErrVoteOnCooldown, "next vote possible at %s", ends.Format(time.RFC3339))
			return nil
		}
		cfg.Status = andycoin.VoteStatus{
			Active:       true,
			StartTime:    now,
			EndTime:      now.Add(cfg.Vote.Duration()),
			Initiator:    initiator,
			Yes:          make(map[andycoin.MemberID]struct{}),
			No:           make(map[andycoin.MemberID]struct{}),
			LastVoteTime: cfg.Status.LastVoteTime,
			LastOutcome:  cfg.Status.LastOutcome,
		}
		ev := audit.NewEvent(audit.KindVoteStart, c)
		ev.Initiator = &initiator
		ev.Args = audit.VoteConfigArgs(cfg.Vote)
		tx.Emit(ev)
		status = cfg.Status.Clone()
		return nil
	})
	if err != nil {
		return status, err
	}
	if opErr != nil {
		return status, opErr
	}
	andycoin.LogCLI(fmt.Sprintf("vote started in guild %d by %d, ends %s", c, initiator, status.EndTime.Format(time.RFC3339)), 4)
	return status, nil
}

// Cast records a member's ballot, replacing any earlier one. If the ballot makes the vote pass
// the vote is concluded immediately and the community reset. Casting on an expired vote
// concludes it and returns the final tally with ErrVoteExpired.
func (e *Engine) Cast(c andycoin.CommunityID, m andycoin.MemberID, choice Choice) (tally Tally, err error) {
	if cfg, ok := e.ledger.Config(c); !ok || !cfg.Status.Active {
		return Tally{Community: c}, andycoin.ErrNoActiveVote
	}
	now := e.now()
	var opErr error
	err = e.ledger.Update(c, func(tx *ledger.Tx) error {
		cfg := tx.Config()
		st := &cfg.Status
		if !st.Active {
			opErr = andycoin.ErrNoActiveVote
			return nil
		}
		if st.Expired(now) {
			tally = finalize(tx, now, false)
			opErr = andycoin.ErrVoteExpired
			return nil
		}
		if st.Yes == nil {
			st.Yes = make(map[andycoin.MemberID]struct{})
		}
		if st.No == nil {
			st.No = make(map[andycoin.MemberID]struct{})
		}
		switch choice {
		case Yes:
			delete(st.No, m)
			st.Yes[m] = struct{}{}
		default:
			delete(st.Yes, m)
			st.No[m] = struct{}{}
		}
		ev := audit.NewEvent(audit.KindVoteCast, c)
		ev.Member = m
		ev.Reason = choice.String()
		ev.Yes, ev.No = len(st.Yes), len(st.No)
		tx.Emit(ev)

		if Passes(cfg.Vote, len(st.Yes), len(st.No)) {
			tally = finalize(tx, now, false)
			return nil
		}
		tally = current(c, *st)
		return nil
	})
	if err != nil {
		return tally, err
	}
	if opErr != nil {
		return tally, opErr
	}
	if tally.Concluded() {
		logConcluded(tally)
	}
	return tally, nil
}

// End concludes the active vote now. A vote that does not pass is ForcedEnd when an admin
// ends it and Failed otherwise.
func (e *Engine) End(c andycoin.CommunityID, byAdmin bool) (tally Tally, err error) {
	if cfg, ok := e.ledger.Config(c); !ok || !cfg.Status.Active {
		return Tally{Community: c}, andycoin.ErrNoActiveVote
	}
	now := e.now()
	err = e.ledger.Update(c, func(tx *ledger.Tx) error {
		if !tx.Config().Status.Active {
			return andycoin.ErrNoActiveVote
		}
		tally = finalize(tx, now, byAdmin)
		return nil
	})
	if err != nil {
		return Tally{Community: c}, err
	}
	logConcluded(tally)
	return tally, nil
}

// SweepExpired concludes every vote whose end time is before now. It is the only proactive
// enforcement of expiry; Cast and Status reach the same result lazily.
func (e *Engine) SweepExpired(now time.Time) []Transition {
	var transitions []Transition
	for _, c := range e.ledger.Communities() {
		cfg, ok := e.ledger.Config(c)
		if !ok || !cfg.Status.Expired(now) {
			continue
		}
		var tally Tally
		err := e.ledger.Update(c, func(tx *ledger.Tx) error {
			// a cast or status may have concluded it since the check above
			if !tx.Config().Status.Expired(now) {
				return andycoin.ErrNoActiveVote
			}
			tally = finalize(tx, now, false)
			return nil
		})
		if err != nil {
			continue
		}
		logConcluded(tally)
		transitions = append(transitions, Transition{Community: c, Tally: tally})
	}
	return transitions
}

// Status reports the vote slot of a community without changing it, unless the vote has expired
// in which case it is concluded first and the final tally reported.
func (e *Engine) Status(c andycoin.CommunityID) Report {
	now := e.now()
	cfg, _ := e.ledger.Config(c)
	if !cfg.Status.Expired(now) {
		return report(c, cfg)
	}
	var (
		r     Report
		tally Tally
	)
	err := e.ledger.Update(c, func(tx *ledger.Tx) error {
		cfg := tx.Config()
		if !cfg.Status.Expired(now) {
			return andycoin.ErrNoActiveVote
		}
		start := cfg.Status.StartTime
		tally = finalize(tx, now, false)
		r = report(c, *cfg)
		r.Initiator = tally.Initiator
		r.StartTime = start
		r.EndTime = tally.EndTime
		r.Yes, r.No = tally.Yes, tally.No
		return nil
	})
	if err != nil {
		// concluded by someone else in between
		cfg, _ = e.ledger.Config(c)
		return report(c, cfg)
	}
	logConcluded(tally)
	return r
}

func report(c andycoin.CommunityID, cfg andycoin.Config) Report {
	st := cfg.Status
	r := Report{
		Community:    c,
		Active:       st.Active,
		LastVoteTime: st.LastVoteTime,
		CooldownEnds: st.CooldownEnds(cfg.Vote),
		Config:       cfg.Vote,
	}
	if st.Active {
		r.Initiator = st.Initiator
		r.StartTime = st.StartTime
		r.EndTime = st.EndTime
		r.Yes, r.No = len(st.Yes), len(st.No)
		r.WouldPass = Passes(cfg.Vote, r.Yes, r.No)
		return r
	}
	r.Outcome = st.LastOutcome
	return r
}

func current(c andycoin.CommunityID, st andycoin.VoteStatus) Tally {
	return Tally{
		Community: c,
		Initiator: st.Initiator,
		EndTime:   st.EndTime,
		Yes:       len(st.Yes),
		No:        len(st.No),
		Total:     len(st.Yes) + len(st.No),
	}
}

// finalize closes the active vote inside tx. A passing vote resets every balance of the
// community in the same transaction.
func finalize(tx *ledger.Tx, now time.Time, byAdmin bool) Tally {
	cfg := tx.Config()
	c := tx.Community()
	tally := current(c, cfg.Status)
	switch {
	case Passes(cfg.Vote, tally.Yes, tally.No):
		tally.Outcome = andycoin.OutcomePassed
		tally.Reset = tx.Reset("vote_reset", nil)
	case byAdmin:
		tally.Outcome = andycoin.OutcomeForcedEnd
	default:
		tally.Outcome = andycoin.OutcomeFailed
	}
	cfg.Status = andycoin.VoteStatus{
		LastVoteTime: now,
		LastOutcome:  tally.Outcome,
	}

	ev := audit.NewEvent(audit.KindVoteEnd, c)
	initiator := tally.Initiator
	ev.Initiator = &initiator
	ev.Reason = string(tally.Outcome)
	ev.Yes, ev.No = tally.Yes, tally.No
	tx.Emit(ev)
	return tally
}

func logConcluded(t Tally) {
	andycoin.LogCLI(fmt.Sprintf("vote in guild %d concluded %s with %d yes / %d no, %d balances reset",
		t.Community, t.Outcome, t.Yes, t.No, t.Reset), 4)
}
