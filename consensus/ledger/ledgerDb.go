package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"

	"andycoin/andycoin"
	"andycoin/messaging/audit"
)

const shardCount = 64

// Ledger is the concurrent store of all balances and community configurations.
type Ledger struct {
	shards [shardCount]*shard
	sink   audit.Sink
}

func New(sink audit.Sink) *Ledger {
	if sink == nil {
		sink = audit.Discard{}
	}
	l := &Ledger{sink: sink}
	for i := range l.shards {
		l.shards[i] = &shard{
			mutex:       &deadlock.RWMutex{},
			communities: make(map[andycoin.CommunityID]*community),
		}
	}
	return l
}

func (l *Ledger) shardFor(c andycoin.CommunityID) *shard {
	return l.shards[c%shardCount]
}

func (l *Ledger) get(c andycoin.CommunityID) (*community, bool) {
	s := l.shardFor(c)
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	cm, ok := s.communities[c]
	return cm, ok
}

func (l *Ledger) getOrCreate(c andycoin.CommunityID) *community {
	if cm, ok := l.get(c); ok {
		return cm
	}
	s := l.shardFor(c)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if cm, ok := s.communities[c]; ok {
		return cm
	}
	cm := &community{
		id:       c,
		mutex:    &deadlock.RWMutex{},
		balances: make(map[andycoin.MemberID]uint64),
	}
	s.communities[c] = cm
	return cm
}

// all lists every known community without holding more than one shard lock at a time.
func (l *Ledger) all() []*community {
	var out []*community
	for _, s := range l.shards {
		s.mutex.RLock()
		for _, cm := range s.communities {
			out = append(out, cm)
		}
		s.mutex.RUnlock()
	}
	return out
}

// Communities returns the IDs of every community the ledger knows about, ascending.
func (l *Ledger) Communities() []andycoin.CommunityID {
	var ids []andycoin.CommunityID
	for _, cm := range l.all() {
		ids = append(ids, cm.id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot copies the ledger one community at a time. Each community is internally
// consistent; the snapshot as a whole is not a single point in time, which is all the
// flat file needs.
func (l *Ledger) Snapshot() andycoin.Snapshot {
	snap := andycoin.Snapshot{
		Version:     andycoin.SnapshotVersion,
		SavedAt:     time.Now().UTC(),
		Balances:    []andycoin.BalanceRecord{},
		Communities: []andycoin.ConfigRecord{},
	}
	for _, cm := range l.all() {
		cm.mutex.RLock()
		for member, balance := range cm.balances {
			snap.Balances = append(snap.Balances, andycoin.BalanceRecord{
				Community: cm.id,
				Member:    member,
				Balance:   balance,
			})
		}
		if cm.config != nil {
			snap.Communities = append(snap.Communities, cm.config.Record(cm.id))
		}
		cm.mutex.RUnlock()
	}
	sort.Slice(snap.Balances, func(i, j int) bool {
		a, b := snap.Balances[i], snap.Balances[j]
		if a.Community != b.Community {
			return a.Community < b.Community
		}
		return a.Member < b.Member
	})
	sort.Slice(snap.Communities, func(i, j int) bool {
		return snap.Communities[i].Community < snap.Communities[j].Community
	})
	return snap
}

// Restore replaces the ledger contents with a snapshot. It is meant for startup, before any
// command is served.
func (l *Ledger) Restore(snap andycoin.Snapshot) {
	for _, s := range l.shards {
		s.mutex.Lock()
		s.communities = make(map[andycoin.CommunityID]*community)
		s.mutex.Unlock()
	}
	for _, b := range snap.Balances {
		cm := l.getOrCreate(b.Community)
		cm.mutex.Lock()
		cm.balances[b.Member] = b.Balance
		cm.mutex.Unlock()
	}
	for _, r := range snap.Communities {
		cm := l.getOrCreate(r.Community)
		cfg := r.Config()
		cm.mutex.Lock()
		cm.config = &cfg
		cm.mutex.Unlock()
	}
	andycoin.LogCLI(fmt.Sprintf("Loaded %d user balances across %d guilds", len(snap.Balances), len(l.all())), 4)
}

func (l *Ledger) emit(events []audit.Event) {
	for _, e := range events {
		l.sink.Record(e)
	}
}
