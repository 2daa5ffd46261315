// Package database persists the ledger snapshot to one flat JSON file. It owns no business logic.
package database

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	dircopy "github.com/otiai10/copy"
	"github.com/sasha-s/go-deadlock"

	"andycoin/andycoin"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is the snapshot file at path. Saves are serialized so two writers never race on the
// temporary file.
type Store struct {
	path  string
	mutex *deadlock.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path, mutex: &deadlock.Mutex{}}
}

func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a snapshot has ever been written.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the snapshot. A missing or empty file is an empty ledger; a file that does not
// parse is ErrCorruptStore.
func (s *Store) Load() (andycoin.Snapshot, error) {
	empty := andycoin.Snapshot{Version: andycoin.SnapshotVersion}
	f, ok := Open(s.path)
	if !ok {
		return empty, nil
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return empty, andycoin.Errorf(andycoin.ErrIO, "reading %s: %s", s.path, err)
	}
	if len(b) == 0 {
		return empty, nil
	}
	var snap andycoin.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return empty, andycoin.Errorf(andycoin.ErrCorruptStore, "%s: %s", s.path, err)
	}
	if snap.Version > andycoin.SnapshotVersion {
		andycoin.LogCLI(fmt.Sprintf("%s was written by a newer version (%d), unknown fields are ignored", s.path, snap.Version), 2)
	}
	return snap, nil
}

// Save replaces the snapshot file atomically. Failures wrap ErrIO.
func (s *Store) Save(snap andycoin.Snapshot) error {
	b, err := json.MarshalIndent(snap, "", " ")
	if err != nil {
		return andycoin.Errorf(andycoin.ErrIO, "encoding snapshot: %s", err)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return Write(s.path, b)
}

// Backup copies the current file next to itself with a timestamp suffix and returns the copy's
// path. There is nothing to back up before the first save.
func (s *Store) Backup(now time.Time) (string, error) {
	if !s.Exists() {
		return "", nil
	}
	dst := fmt.Sprintf("%s.%s.bak", s.path, now.UTC().Format("20060102T150405Z"))
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := dircopy.Copy(s.path, dst); err != nil {
		return "", andycoin.Errorf(andycoin.ErrIO, "backing up %s: %s", s.path, err)
	}
	return dst, nil
}

// Open returns the file at path if it exists.
func Open(path string) (*os.File, bool) {
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			andycoin.LogCLI(err.Error(), 2)
		}
		return nil, false
	}
	return f, true
}

// Write puts b at path by writing a temporary file in the same directory, syncing it, and
// renaming it over the target. A crash at any point leaves either the old or the new file.
func Write(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return andycoin.Errorf(andycoin.ErrIO, "creating %s: %s", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return andycoin.Errorf(andycoin.ErrIO, "creating temp file: %s", err)
	}
	name := tmp.Name()
	fail := func(step string, err error) error {
		tmp.Close()
		os.Remove(name)
		return andycoin.Errorf(andycoin.ErrIO, "%s %s: %s", step, name, err)
	}
	if _, err := tmp.Write(b); err != nil {
		return fail("writing", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return andycoin.Errorf(andycoin.ErrIO, "closing %s: %s", name, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return andycoin.Errorf(andycoin.ErrIO, "replacing %s: %s", path, err)
	}
	syncDir(dir)
	return nil
}

// syncDir makes the rename durable where the platform allows fsync on a directory.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}
