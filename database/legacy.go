package database

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"andycoin/andycoin"
)

// legacyBalance is one entry of the YAML balance list the bot kept before the JSON store.
type legacyBalance struct {
	GuildID uint64 `yaml:"guild_id"`
	UserID  uint64 `yaml:"user_id"`
	Balance uint64 `yaml:"balance"`
}

// ImportLegacy reads the old YAML balance file at path into a snapshot. A missing file returns
// ok=false. Duplicate pairs keep the last entry, as the old loader did.
func ImportLegacy(path string) (snap andycoin.Snapshot, ok bool, err error) {
	snap = andycoin.Snapshot{Version: andycoin.SnapshotVersion}
	f, exists := Open(path)
	if !exists {
		return snap, false, nil
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return snap, false, andycoin.Errorf(andycoin.ErrIO, "reading %s: %s", path, err)
	}
	var entries []legacyBalance
	if err := yaml.Unmarshal(b, &entries); err != nil {
		return snap, false, andycoin.Errorf(andycoin.ErrCorruptStore, "%s: %s", path, err)
	}
	type key struct{ guild, user uint64 }
	index := make(map[key]int)
	for _, e := range entries {
		k := key{e.GuildID, e.UserID}
		rec := andycoin.BalanceRecord{Community: e.GuildID, Member: e.UserID, Balance: e.Balance}
		if i, dup := index[k]; dup {
			snap.Balances[i] = rec
			continue
		}
		index[k] = len(snap.Balances)
		snap.Balances = append(snap.Balances, rec)
	}
	andycoin.LogCLI(fmt.Sprintf("Imported %d balances from legacy file %s", len(snap.Balances), path), 4)
	return snap, true, nil
}
