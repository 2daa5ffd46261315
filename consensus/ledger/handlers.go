package ledger

import (
	"andycoin/andycoin"
	"andycoin/messaging/audit"
)

// Balance never fails; a pair the ledger has never seen reads as zero and is not created.
func (l *Ledger) Balance(c andycoin.CommunityID, m andycoin.MemberID) uint64 {
	cm, ok := l.get(c)
	if !ok {
		return 0
	}
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return cm.balances[m]
}

// TotalBalance sums a member's balances across every community.
func (l *Ledger) TotalBalance(m andycoin.MemberID) uint64 {
	var total uint64
	for _, cm := range l.all() {
		cm.mutex.RLock()
		total = andycoin.SaturatingAdd(total, cm.balances[m])
		cm.mutex.RUnlock()
	}
	return total
}

// Adjust applies delta to one balance and returns the new amount.
func (l *Ledger) Adjust(c andycoin.CommunityID, m andycoin.MemberID, delta int64, reason string, initiator *andycoin.MemberID) (uint64, error) {
	var next uint64
	err := l.Update(c, func(tx *Tx) (err error) {
		next, err = tx.Adjust(m, delta, reason, initiator)
		return
	})
	if err != nil {
		l.rejected(audit.KindBalance, c, m, reason, initiator, err)
		return l.Balance(c, m), err
	}
	return next, nil
}

// Transfer moves amount from one member to another as a single observable unit.
func (l *Ledger) Transfer(c andycoin.CommunityID, from, to andycoin.MemberID, amount uint64, initiator *andycoin.MemberID) error {
	err := l.Update(c, func(tx *Tx) error {
		return tx.Transfer(from, to, amount, initiator)
	})
	if err != nil {
		l.rejected(audit.KindTransfer, c, from, "transfer_out", initiator, err)
	}
	return err
}

// ResetCommunity zeroes every balance in the community and returns how many were non-zero.
func (l *Ledger) ResetCommunity(c andycoin.CommunityID, reason string, initiator *andycoin.MemberID) int {
	var n int
	_ = l.Update(c, func(tx *Tx) error {
		n = tx.Reset(reason, initiator)
		return nil
	})
	return n
}

// Config returns a copy of the community's configuration and whether one has been written.
func (l *Ledger) Config(c andycoin.CommunityID) (andycoin.Config, bool) {
	cm, ok := l.get(c)
	if !ok {
		return andycoin.NewConfig(), false
	}
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	if cm.config == nil {
		return andycoin.NewConfig(), false
	}
	return cm.config.Clone(), true
}

func (l *Ledger) VoteConfig(c andycoin.CommunityID) andycoin.VoteConfig {
	cfg, _ := l.Config(c)
	return cfg.Vote
}

func (l *Ledger) GiverRole(c andycoin.CommunityID) *andycoin.RoleID {
	cfg, _ := l.Config(c)
	return cfg.GiverRole
}

// SetGiverRole sets or (with nil) clears the role allowed to give coins.
func (l *Ledger) SetGiverRole(c andycoin.CommunityID, role *andycoin.RoleID, initiator *andycoin.MemberID) {
	_ = l.Update(c, func(tx *Tx) error {
		cfg := tx.Config()
		e := audit.NewEvent(audit.KindConfig, c)
		e.Initiator = initiator
		if role == nil {
			cfg.GiverRole = nil
			e.Reason = "giver_role_cleared"
		} else {
			r := *role
			cfg.GiverRole = &r
			e.Reason = "giver_role_set"
			e.Args = audit.RoleArgs(r)
		}
		tx.Emit(e)
		return nil
	})
}

// SetVoteConfig replaces the vote settings after validating them.
func (l *Ledger) SetVoteConfig(c andycoin.CommunityID, vc andycoin.VoteConfig, initiator *andycoin.MemberID) error {
	if err := vc.Validate(); err != nil {
		return err
	}
	return l.Update(c, func(tx *Tx) error {
		tx.Config().Vote = vc
		e := audit.NewEvent(audit.KindConfig, c)
		e.Reason = "vote_config"
		e.Initiator = initiator
		e.Args = audit.VoteConfigArgs(vc)
		tx.Emit(e)
		return nil
	})
}

func (l *Ledger) rejected(kind audit.Kind, c andycoin.CommunityID, m andycoin.MemberID, reason string, initiator *andycoin.MemberID, err error) {
	e := audit.NewEvent(kind, c)
	e.Member = m
	e.Reason = reason
	e.Initiator = initiator
	e.Outcome = andycoin.ErrorKind(err)
	l.sink.Record(e)
}
