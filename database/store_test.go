package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"andycoin/andycoin"
)

func TestLoadMissingIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "andy_coin_data.json"))
	snap, err := s.Load()
	require.NoError(t, err)
	assert.True(t, snap.Empty())
	assert.False(t, s.Exists())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nested", "andy_coin_data.json"))
	role := andycoin.RoleID(42)
	cfg := andycoin.NewConfig()
	cfg.GiverRole = &role
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg.Status = andycoin.VoteStatus{
		Active:    true,
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Initiator: 7,
		Yes:       map[andycoin.MemberID]struct{}{1: {}, 2: {}},
		No:        map[andycoin.MemberID]struct{}{3: {}},
	}
	in := andycoin.Snapshot{
		Version:     andycoin.SnapshotVersion,
		Balances:    []andycoin.BalanceRecord{{Community: 1, Member: 123, Balance: 100}, {Community: 2, Member: 123, Balance: 50}},
		Communities: []andycoin.ConfigRecord{cfg.Record(1)},
	}
	require.NoError(t, s.Save(in))

	out, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, in.Balances, out.Balances)
	require.Len(t, out.Communities, 1)
	restored := out.Communities[0].Config()
	assert.Equal(t, role, *restored.GiverRole)
	assert.True(t, restored.Status.Active)
	assert.Len(t, restored.Status.Yes, 2)
	assert.Len(t, restored.Status.No, 1)
	assert.True(t, restored.Status.EndTime.Equal(start.Add(30*time.Minute)))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(s.Path()), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "andy_coin_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"balances": [`), 0o644))
	_, err := NewStore(path).Load()
	assert.ErrorIs(t, err, andycoin.ErrCorruptStore)
}

func TestLoadIgnoresUnknownFieldsAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "andy_coin_data.json")
	raw := `{"version": 1, "future": true,
		"balances": [{"community_id": 5, "member_id": 6, "balance": 7, "note": "x"}],
		"communities": [{"community_id": 5}]}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	snap, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), snap.Balances[0].Balance)
	assert.Equal(t, andycoin.DefaultVoteConfig(), snap.Communities[0].Config().Vote)
}

func TestLoadPartialVoteConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "andy_coin_data.json")
	raw := `{"version": 1, "communities": [{"community_id": 5, "vote_config": {"min_votes": 3}}]}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	snap, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Len(t, snap.Communities, 1)

	vc := snap.Communities[0].Config().Vote
	def := andycoin.DefaultVoteConfig()
	assert.Equal(t, uint32(3), vc.MinVotes)
	assert.Equal(t, def.CooldownHours, vc.CooldownHours)
	assert.Equal(t, def.DurationMinutes, vc.DurationMinutes)
	assert.Equal(t, def.MajorityPercentage, vc.MajorityPercentage)
}

func TestSaveReplacesPreviousCopy(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "andy_coin_data.json"))
	require.NoError(t, s.Save(andycoin.Snapshot{Balances: []andycoin.BalanceRecord{{Community: 1, Member: 1, Balance: 1}}}))
	require.NoError(t, s.Save(andycoin.Snapshot{Balances: []andycoin.BalanceRecord{{Community: 1, Member: 1, Balance: 2}}}))
	snap, err := s.Load()
	require.NoError(t, err)
	require.Len(t, snap.Balances, 1)
	assert.Equal(t, uint64(2), snap.Balances[0].Balance)
}

func TestWriteFailureKeepsOldFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "andy_coin_data.json")
	require.NoError(t, Write(path, []byte(`{"version":1}`)))
	// a directory in the way of the rename
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "child"), 0o755))
	err := Write(blocked, []byte("x"))
	assert.ErrorIs(t, err, andycoin.ErrIO)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1}`, string(b))
}

func TestBackup(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "andy_coin_data.json"))
	dst, err := s.Backup(time.Now())
	require.NoError(t, err)
	assert.Empty(t, dst)

	require.NoError(t, s.Save(andycoin.Snapshot{Balances: []andycoin.BalanceRecord{{Community: 1, Member: 1, Balance: 9}}}))
	dst, err = s.Backup(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, s.Path()+".20240301T120000Z.bak", dst)
	original, _ := os.ReadFile(s.Path())
	copied, _ := os.ReadFile(dst)
	assert.Equal(t, original, copied)
}

func TestImportLegacy(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := ImportLegacy(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.False(t, ok)

	path := filepath.Join(dir, "andy_coin_data.yaml")
	raw := `- guild_id: 1
  user_id: 2
  balance: 30
- guild_id: 1
  user_id: 3
  balance: 5
- guild_id: 1
  user_id: 2
  balance: 40
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	snap, ok, err := ImportLegacy(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []andycoin.BalanceRecord{
		{Community: 1, Member: 2, Balance: 40},
		{Community: 1, Member: 3, Balance: 5},
	}, snap.Balances)

	require.NoError(t, os.WriteFile(path, []byte("- guild_id: [oops"), 0o644))
	_, _, err = ImportLegacy(path)
	assert.ErrorIs(t, err, andycoin.ErrCorruptStore)
}
