package db

import (
	"path/filepath"
	"testing"

	"song-recognition/config"
	"song-recognition/errs"
	"song-recognition/fingerprint"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	cfg := config.Load()
	cfg.DBType = "sqlite"
	cfg.DBFile = filepath.Join(t.TempDir(), "test.db")

	store, err := OpenSQLite(cfg)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGetSong(t *testing.T) {
	store := newTestStore(t)

	id, err := store.CreateSong("Track A", "Artist A", "songs/a.wav", "", "")
	if err != nil {
		t.Fatalf("CreateSong: %v", err)
	}

	song, err := store.GetSong(id)
	if err != nil {
		t.Fatalf("GetSong: %v", err)
	}
	if song.Title != "Track A" || song.Artist != "Artist A" {
		t.Fatalf("unexpected song: %+v", song)
	}
}

func TestDuplicatePathRejected(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.CreateSong("Track A", "Artist A", "songs/a.wav", "", ""); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := store.CreateSong("Track A2", "Artist A2", "songs/a.wav", "", "")
	if err == nil {
		t.Fatal("expected duplicate path error, got nil")
	}
	if !errs.Is(err, errs.KindDuplicatePath) {
		t.Fatalf("expected DuplicatePath error kind, got: %v", err)
	}
}

func TestInsertLandmarksAndLookup(t *testing.T) {
	store := newTestStore(t)

	songID, err := store.CreateSong("Track A", "Artist A", "songs/a.wav", "", "")
	if err != nil {
		t.Fatalf("CreateSong: %v", err)
	}

	landmarks := []fingerprint.Landmark{
		{Hash: "deadbeef00000000000000000000000000000a", AnchorTime: 10},
		{Hash: "deadbeef00000000000000000000000000000a", AnchorTime: 40},
		{Hash: "deadbeef00000000000000000000000000000b", AnchorTime: 20},
	}

	if err := store.InsertLandmarks(songID, landmarks); err != nil {
		t.Fatalf("InsertLandmarks: %v", err)
	}

	occs, err := store.Lookup("deadbeef00000000000000000000000000000a")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(occs) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(occs))
	}
	for _, o := range occs {
		if o.SongID != songID {
			t.Fatalf("occurrence has wrong song id: %+v", o)
		}
	}
}

func TestEraseAll(t *testing.T) {
	store := newTestStore(t)

	songID, err := store.CreateSong("Track A", "Artist A", "songs/a.wav", "", "")
	if err != nil {
		t.Fatalf("CreateSong: %v", err)
	}
	landmarks := []fingerprint.Landmark{{Hash: "dead", AnchorTime: 1}}
	if err := store.InsertLandmarks(songID, landmarks); err != nil {
		t.Fatalf("InsertLandmarks: %v", err)
	}

	if err := store.EraseAll(); err != nil {
		t.Fatalf("EraseAll: %v", err)
	}

	if _, err := store.GetSong(songID); err != ErrSongNotFound {
		t.Fatalf("expected ErrSongNotFound after erase, got %v", err)
	}
	occs, err := store.Lookup("dead")
	if err != nil {
		t.Fatalf("Lookup after erase: %v", err)
	}
	if len(occs) != 0 {
		t.Fatalf("expected no occurrences after erase, got %d", len(occs))
	}
}
