package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"andycoin/andycoin"
	"andycoin/messaging/audit"
)

func newTestLedger() (*Ledger, *audit.Memory) {
	mem := audit.NewMemory(10000)
	return New(mem), mem
}

func TestBalanceUnknownIsZero(t *testing.T) {
	l, _ := newTestLedger()
	assert.Equal(t, uint64(0), l.Balance(1, 123))
	assert.Equal(t, uint64(0), l.TotalBalance(123))
	assert.Empty(t, l.Communities(), "reads must not materialize records")
}

func TestAdjustEmitsAuditEvent(t *testing.T) {
	l, mem := newTestLedger()
	initiator := andycoin.MemberID(456)

	n, err := l.Adjust(1, 123, 50, "give_command", &initiator)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), n)
	n, err = l.Adjust(1, 123, 25, "give_command", &initiator)
	require.NoError(t, err)
	assert.Equal(t, uint64(75), n)

	events := mem.OfKind(audit.KindBalance)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(50), *events[1].Previous)
	assert.Equal(t, uint64(75), *events[1].New)
	assert.Equal(t, "give_command", events[1].Reason)
	assert.Equal(t, initiator, *events[1].Initiator)
}

// a debit larger than the balance is refused and recorded as such
func TestAdjustUnderflowLeavesBalance(t *testing.T) {
	l, mem := newTestLedger()
	_, err := l.Adjust(1, 9, 20, "give_command", nil)
	require.NoError(t, err)

	n, err := l.Adjust(1, 9, -50, "flip_loss", nil)
	assert.ErrorIs(t, err, andycoin.ErrUnderflow)
	assert.Equal(t, uint64(20), n)
	assert.Equal(t, uint64(20), l.Balance(1, 9))

	events := mem.OfKind(audit.KindBalance)
	require.Len(t, events, 2)
	assert.Equal(t, "underflow", events[1].Outcome)
	assert.Nil(t, events[1].New)
}

// transfers move coins only when the sender can cover them
func TestTransfer(t *testing.T) {
	l, _ := newTestLedger()
	_, err := l.Adjust(1, 100, 100, "give_command", nil)
	require.NoError(t, err)

	require.NoError(t, l.Transfer(1, 100, 200, 30, nil))
	assert.Equal(t, uint64(70), l.Balance(1, 100))
	assert.Equal(t, uint64(30), l.Balance(1, 200))

	err = l.Transfer(1, 200, 100, 31, nil)
	assert.ErrorIs(t, err, andycoin.ErrInsufficientFunds)
	assert.Equal(t, uint64(70), l.Balance(1, 100))
	assert.Equal(t, uint64(30), l.Balance(1, 200))
}

func TestConcurrentAdjustNoLostUpdates(t *testing.T) {
	l, _ := newTestLedger()
	const workers = 32
	const perWorker = 200
	_, err := l.Adjust(5, 1, 1000, "seed", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				delta := int64(3)
				if w%2 == 1 {
					delta = -1
				}
				_, err := l.Adjust(5, 1, delta, "concurrent", nil)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()
	// 16 workers add 3, 16 subtract 1, 200 times each
	assert.Equal(t, uint64(1000+16*perWorker*3-16*perWorker), l.Balance(5, 1))
}

func TestTransferIsNeverHalfVisible(t *testing.T) {
	l, _ := newTestLedger()
	_, err := l.Adjust(3, 1, 500, "seed", nil)
	require.NoError(t, err)
	_, err = l.Adjust(3, 2, 500, "seed", nil)
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			from, to := andycoin.MemberID(1), andycoin.MemberID(2)
			if w%2 == 1 {
				from, to = to, from
			}
			for i := 0; i < 300; i++ {
				_ = l.Transfer(3, from, to, 7, nil)
			}
		}(w)
	}

	observed := 0
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			assert.Equal(t, uint64(1000), l.Balance(3, 1)+l.Balance(3, 2))
			assert.Greater(t, observed, 0)
			return
		default:
		}
		var sum uint64
		for _, b := range l.Snapshot().Balances {
			if b.Community == 3 {
				sum += b.Balance
			}
		}
		require.Equal(t, uint64(1000), sum)
		observed++
	}
}

func TestUpdateAbortDiscardsEverything(t *testing.T) {
	l, mem := newTestLedger()
	_, err := l.Adjust(1, 1, 10, "seed", nil)
	require.NoError(t, err)
	before := len(mem.Events())

	boom := errors.New("boom")
	err = l.Update(1, func(tx *Tx) error {
		_, err := tx.Adjust(1, -10, "half", nil)
		require.NoError(t, err)
		_, err = tx.Adjust(2, 10, "half", nil)
		require.NoError(t, err)
		tx.Config().Vote.MinVotes = 1
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(10), l.Balance(1, 1))
	assert.Equal(t, uint64(0), l.Balance(1, 2))
	_, configured := l.Config(1)
	assert.False(t, configured)
	assert.Len(t, mem.Events(), before, "aborted updates emit nothing")
}

func TestUpdatePanicReleasesCommunity(t *testing.T) {
	l, _ := newTestLedger()
	_, err := l.Adjust(1, 1, 10, "seed", nil)
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = l.Update(1, func(tx *Tx) error {
			_, _ = tx.Adjust(1, 5, "half", nil)
			panic("boom")
		})
	})
	assert.Equal(t, uint64(10), l.Balance(1, 1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := l.Adjust(1, 1, 1, "after", nil)
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("community still locked after a panicking update")
	}
	assert.Equal(t, uint64(11), l.Balance(1, 1))
}

func TestResetCommunity(t *testing.T) {
	l, mem := newTestLedger()
	for m, b := range map[andycoin.MemberID]int64{1: 100, 2: 50, 3: 0} {
		_, err := l.Adjust(1, m, b, "seed", nil)
		require.NoError(t, err)
	}
	_, err := l.Adjust(2, 1, 40, "seed", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, l.ResetCommunity(1, "vote_reset", nil))
	assert.Equal(t, uint64(0), l.Balance(1, 1))
	assert.Equal(t, uint64(40), l.Balance(2, 1), "other communities are untouched")
	assert.Len(t, mem.OfKind(audit.KindReset), 2)

	// entries are zeroed, not removed
	count := 0
	for _, b := range l.Snapshot().Balances {
		if b.Community == 1 {
			count++
			assert.Equal(t, uint64(0), b.Balance)
		}
	}
	assert.Equal(t, 3, count)
}

func TestLeaderboard(t *testing.T) {
	l, _ := newTestLedger()
	seed := func(c andycoin.CommunityID, m andycoin.MemberID, b int64) {
		_, err := l.Adjust(c, m, b, "seed", nil)
		require.NoError(t, err)
	}
	seed(1, 1, 100)
	seed(2, 1, 50)
	seed(1, 2, 50)
	seed(1, 3, 75)
	seed(2, 3, 75)
	seed(1, 4, 100)

	top := l.Leaderboard(InCommunity(1), 3)
	assert.Equal(t, []Standing{{1, 100}, {4, 100}, {3, 75}}, top)

	global := l.Leaderboard(Global, 0)
	assert.Equal(t, []Standing{{1, 150}, {3, 150}, {4, 100}, {2, 50}}, global)

	// a fresh snapshot each time
	seed(1, 2, 1000)
	assert.Equal(t, Standing{2, 1050}, l.Leaderboard(InCommunity(1), 1)[0])
	assert.Empty(t, l.Leaderboard(InCommunity(99), 10))
}

func TestTotalBalance(t *testing.T) {
	l, _ := newTestLedger()
	_, _ = l.Adjust(1, 123, 50, "seed", nil)
	_, _ = l.Adjust(2, 123, 30, "seed", nil)
	assert.Equal(t, uint64(80), l.TotalBalance(123))
}

func TestSnapshotRestore(t *testing.T) {
	l, _ := newTestLedger()
	_, _ = l.Adjust(1, 123, 100, "seed", nil)
	_, _ = l.Adjust(2, 123, 50, "seed", nil)
	role := andycoin.RoleID(42)
	l.SetGiverRole(1, &role, nil)
	vc := andycoin.DefaultVoteConfig()
	vc.MinVotes = 3
	require.NoError(t, l.SetVoteConfig(2, vc, nil))

	snap := l.Snapshot()
	assert.Len(t, snap.Balances, 2)
	assert.Len(t, snap.Communities, 2)

	r, _ := newTestLedger()
	r.Restore(snap)
	assert.Equal(t, uint64(100), r.Balance(1, 123))
	assert.Equal(t, uint64(50), r.Balance(2, 123))
	assert.Equal(t, role, *r.GiverRole(1))
	assert.Equal(t, uint32(3), r.VoteConfig(2).MinVotes)
	assert.Equal(t, andycoin.DefaultVoteConfig(), r.VoteConfig(3))
}

func TestSetVoteConfigValidates(t *testing.T) {
	l, _ := newTestLedger()
	vc := andycoin.DefaultVoteConfig()
	vc.MajorityPercentage = 150
	assert.ErrorIs(t, l.SetVoteConfig(1, vc, nil), andycoin.ErrInvalidConfig)
	_, configured := l.Config(1)
	assert.False(t, configured)
}

func TestGiverRoleClear(t *testing.T) {
	l, mem := newTestLedger()
	role := andycoin.RoleID(7)
	l.SetGiverRole(1, &role, nil)
	l.SetGiverRole(1, nil, nil)
	assert.Nil(t, l.GiverRole(1))
	assert.Len(t, mem.OfKind(audit.KindConfig), 2)
}
