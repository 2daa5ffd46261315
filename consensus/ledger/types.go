package ledger

import (
	"github.com/sasha-s/go-deadlock"

	"andycoin/andycoin"
)

// community is one isolated namespace. Its mutex serializes every mutation of its balances
// and configuration; nothing else in the ledger is held while it is.
type community struct {
	id       andycoin.CommunityID
	mutex    *deadlock.RWMutex
	balances map[andycoin.MemberID]uint64
	config   *andycoin.Config // nil until first written
}

// shard guards only the lookup table of communities that hash to it.
type shard struct {
	mutex       *deadlock.RWMutex
	communities map[andycoin.CommunityID]*community
}

// Scope selects a single community or the sum over all of them.
type Scope struct {
	Community andycoin.CommunityID
	Global    bool
}

var Global = Scope{Global: true}

func InCommunity(c andycoin.CommunityID) Scope {
	return Scope{Community: c}
}

func (s Scope) String() string {
	if s.Global {
		return "Global"
	}
	return "Server"
}

// Standing is one row of a leaderboard.
type Standing struct {
	Member  andycoin.MemberID `json:"user_id"`
	Balance uint64            `json:"balance"`
}
