package conductor

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"andycoin/andycoin"
	"andycoin/consensus/ledger"
	"andycoin/consensus/votes"
	"andycoin/database"
	"andycoin/messaging/commands"
)

func testConfig(t *testing.T) *viper.Viper {
	t.Helper()
	config := viper.New()
	andycoin.SetDefaults(config)
	config.Set("rootDir", t.TempDir())
	config.Set("persistIntervalSeconds", 3600)
	return config
}

func TestCycleSweepsThenSaves(t *testing.T) {
	store := database.NewStore(filepath.Join(t.TempDir(), "andy_coin_data.json"))
	l := ledger.New(nil)
	e := votes.New(l)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return now })
	_, err := l.Adjust(1, 2, 40, "seed", nil)
	require.NoError(t, err)
	_, err = e.Start(1, 2)
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	r := NewReconciler(l, e, store)
	require.NoError(t, r.Cycle())
	assert.Equal(t, uint64(1), r.Cycles())

	snap, err := store.Load()
	require.NoError(t, err)
	require.Len(t, snap.Communities, 1)
	cfg := snap.Communities[0].Config()
	assert.False(t, cfg.Status.Active, "the expired vote was closed before saving")
	assert.Equal(t, andycoin.OutcomeFailed, cfg.Status.LastOutcome)
	assert.Equal(t, []andycoin.BalanceRecord{{Community: 1, Member: 2, Balance: 40}}, snap.Balances)
}

func TestCycleFailureIsRetried(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store")
	// a non-empty directory where the file should go makes every save fail
	require.NoError(t, os.MkdirAll(filepath.Join(path, "x"), 0o755))
	l := ledger.New(nil)
	r := NewReconciler(l, votes.New(l), database.NewStore(path))

	assert.ErrorIs(t, r.Cycle(), andycoin.ErrIO)
	assert.Equal(t, uint64(1), r.Failures())

	require.NoError(t, os.RemoveAll(path))
	assert.NoError(t, r.Cycle())
	assert.Equal(t, uint64(1), r.Failures())
}

func TestReconcilerFinalCycleOnTerminate(t *testing.T) {
	store := database.NewStore(filepath.Join(t.TempDir(), "andy_coin_data.json"))
	l := ledger.New(nil)
	r := NewReconciler(l, votes.New(l), store)
	terminate := make(chan struct{})
	wg := &sync.WaitGroup{}
	r.Start(terminate, wg, time.Hour)

	_, err := l.Adjust(7, 8, 9, "seed", nil)
	require.NoError(t, err)
	close(terminate)
	wg.Wait()

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []andycoin.BalanceRecord{{Community: 7, Member: 8, Balance: 9}}, snap.Balances)
}

func TestStartAndShutdown(t *testing.T) {
	config := testConfig(t)
	terminate := make(chan struct{})
	wg := &sync.WaitGroup{}
	s, err := Start(terminate, wg, config)
	require.NoError(t, err)

	_, err = s.Commands.Give(commands.Invoker{Member: 1, Community: 5, Owner: true}, 2, 25)
	require.NoError(t, err)
	close(terminate)
	wg.Wait()

	snap, err := database.NewStore(andycoin.DataPath(config, "dataFile")).Load()
	require.NoError(t, err)
	assert.Equal(t, []andycoin.BalanceRecord{{Community: 5, Member: 2, Balance: 25}}, snap.Balances)

	files, err := filepath.Glob(filepath.Join(andycoin.DataPath(config, "logDir"), "audit.*.jsonl"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.NotEmpty(t, s.Recent.Events())

	// the next start restores what was saved and backs up the file first
	terminate = make(chan struct{})
	s, err = Start(terminate, wg, config)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), s.Ledger.Balance(5, 2))
	close(terminate)
	wg.Wait()
	backups, _ := filepath.Glob(andycoin.DataPath(config, "dataFile") + ".*.bak")
	assert.NotEmpty(t, backups)
}

func TestStartRefusesCorruptStore(t *testing.T) {
	config := testConfig(t)
	require.NoError(t, os.WriteFile(andycoin.DataPath(config, "dataFile"), []byte("{not json"), 0o644))
	_, err := Start(make(chan struct{}), &sync.WaitGroup{}, config)
	assert.ErrorIs(t, err, andycoin.ErrCorruptStore)
}

func TestStartImportsLegacyBalances(t *testing.T) {
	config := testConfig(t)
	legacy := "- guild_id: 3\n  user_id: 4\n  balance: 12\n"
	require.NoError(t, os.WriteFile(andycoin.DataPath(config, "legacyDataFile"), []byte(legacy), 0o644))
	terminate := make(chan struct{})
	wg := &sync.WaitGroup{}
	s, err := Start(terminate, wg, config)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), s.Ledger.Balance(3, 4))
	close(terminate)
	wg.Wait()
	assert.True(t, s.Store.Exists())
}
