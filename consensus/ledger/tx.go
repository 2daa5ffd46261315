package ledger

import (
	"math"

	"andycoin/andycoin"
	"andycoin/messaging/audit"
)

// Tx is a staged view of one community, valid only inside Update. Reads see staged writes;
// nothing reaches the community (and no audit event is emitted) unless the update commits.
type Tx struct {
	community *community
	staged    map[andycoin.MemberID]uint64
	config    *andycoin.Config
	events    []audit.Event
}

// Update runs fn inside the community's critical section. If fn returns an error every
// staged change is discarded.
func (l *Ledger) Update(c andycoin.CommunityID, fn func(tx *Tx) error) error {
	cm := l.getOrCreate(c)
	tx := &Tx{
		community: cm,
		staged:    make(map[andycoin.MemberID]uint64),
	}
	err := func() error {
		cm.mutex.Lock()
		defer cm.mutex.Unlock()
		if err := fn(tx); err != nil {
			return err
		}
		tx.commit()
		return nil
	}()
	if err != nil {
		return err
	}
	l.emit(tx.events)
	return nil
}

func (tx *Tx) commit() {
	for member, balance := range tx.staged {
		tx.community.balances[member] = balance
	}
	if tx.config != nil {
		cfg := *tx.config
		tx.community.config = &cfg
	}
}

func (tx *Tx) Community() andycoin.CommunityID {
	return tx.community.id
}

func (tx *Tx) Balance(member andycoin.MemberID) uint64 {
	if b, ok := tx.staged[member]; ok {
		return b
	}
	return tx.community.balances[member]
}

// Adjust stages a signed change to one balance.
func (tx *Tx) Adjust(member andycoin.MemberID, delta int64, reason string, initiator *andycoin.MemberID) (uint64, error) {
	prev := tx.Balance(member)
	next, err := andycoin.ApplyDelta(prev, delta)
	if err != nil {
		return prev, err
	}
	tx.staged[member] = next
	tx.Emit(audit.BalanceChange(audit.KindBalance, tx.community.id, member, prev, next, reason, initiator))
	return next, nil
}

// Transfer stages a debit of from and a credit of to. It either stages both or neither.
func (tx *Tx) Transfer(from, to andycoin.MemberID, amount uint64, initiator *andycoin.MemberID) error {
	fromPrev := tx.Balance(from)
	if fromPrev < amount {
		return andycoin.Errorf(andycoin.ErrInsufficientFunds, "has %d, needs %d", fromPrev, amount)
	}
	if from == to {
		return nil
	}
	toPrev := tx.Balance(to)
	if toPrev > math.MaxUint64-amount {
		return andycoin.Errorf(andycoin.ErrOverflow, "%d + %d", toPrev, amount)
	}
	toNext := toPrev + amount
	fromNext := fromPrev - amount
	tx.staged[from] = fromNext
	tx.staged[to] = toNext

	debit := audit.BalanceChange(audit.KindTransfer, tx.community.id, from, fromPrev, fromNext, "transfer_out", initiator)
	debit.Counterparty = to
	credit := audit.BalanceChange(audit.KindTransfer, tx.community.id, to, toPrev, toNext, "transfer_in", initiator)
	credit.Counterparty = from
	tx.Emit(debit)
	tx.Emit(credit)
	return nil
}

// Reset stages every balance of the community to zero and reports how many were non-zero.
// Entries are kept at zero, not removed.
func (tx *Tx) Reset(reason string, initiator *andycoin.MemberID) int {
	members := make(map[andycoin.MemberID]struct{}, len(tx.community.balances)+len(tx.staged))
	for m := range tx.community.balances {
		members[m] = struct{}{}
	}
	for m := range tx.staged {
		members[m] = struct{}{}
	}
	count := 0
	for m := range members {
		prev := tx.Balance(m)
		if prev == 0 {
			continue
		}
		tx.staged[m] = 0
		tx.Emit(audit.BalanceChange(audit.KindReset, tx.community.id, m, prev, 0, reason, initiator))
		count++
	}
	return count
}

// Config returns the staged configuration, materializing defaults if the community has none.
// Changes through the pointer commit with the transaction.
func (tx *Tx) Config() *andycoin.Config {
	if tx.config == nil {
		if tx.community.config != nil {
			cfg := tx.community.config.Clone()
			tx.config = &cfg
		} else {
			cfg := andycoin.NewConfig()
			tx.config = &cfg
		}
	}
	return tx.config
}

// Emit queues an audit event for after the commit.
func (tx *Tx) Emit(e audit.Event) {
	tx.events = append(tx.events, e)
}
