package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"song-recognition/config"
	"song-recognition/errs"
	"song-recognition/fingerprint"
)

// SQLiteStore is the reference relational backend from spec §4.4:
// songs(id PK, title, artist, path UNIQUE, spotify_url?, youtube_url?)
// landmarks(id PK, song_id FK, hash, anchor_time) with a non-unique
// index on hash for sublinear point lookups.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the sqlite-backed Landmark
// Index at cfg.DBFile and ensures its schema exists. The connection
// pool is sized to CPU count per spec §5.
func OpenSQLite(cfg config.Config) (*SQLiteStore, error) {
	if dir := filepath.Dir(cfg.DBFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.IndexError(fmt.Errorf("creating db dir: %w", err))
		}
	}

	sqlDB, err := sql.Open("sqlite3", cfg.DBFile+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, errs.IndexError(fmt.Errorf("opening sqlite db: %w", err))
	}

	poolSize := runtime.NumCPU()
	if poolSize < 1 {
		poolSize = 1
	}
	sqlDB.SetMaxOpenConns(poolSize)

	store := &SQLiteStore{db: sqlDB, path: cfg.DBFile}
	if err := store.init(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS songs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			path TEXT NOT NULL UNIQUE,
			spotify_url TEXT,
			youtube_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS landmarks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			song_id INTEGER NOT NULL REFERENCES songs(id),
			hash TEXT NOT NULL,
			anchor_time INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_landmarks_hash ON landmarks(hash)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errs.IndexError(fmt.Errorf("creating schema: %w", err))
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateSong(title, artist, path, spotifyURL, youtubeURL string) (uint64, error) {
	res, err := s.db.Exec(
		`INSERT INTO songs (title, artist, path, spotify_url, youtube_url) VALUES (?, ?, ?, ?, ?)`,
		title, artist, path, nullable(spotifyURL), nullable(youtubeURL),
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return 0, errs.DuplicatePath(path)
		}
		return 0, errs.IndexError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.IndexError(err)
	}
	return uint64(id), nil
}

func (s *SQLiteStore) GetSong(songID uint64) (*Song, error) {
	row := s.db.QueryRow(
		`SELECT id, title, artist, path, COALESCE(spotify_url, ''), COALESCE(youtube_url, '') FROM songs WHERE id = ?`,
		songID,
	)
	return scanSong(row)
}

func (s *SQLiteStore) GetSongByPath(path string) (*Song, error) {
	row := s.db.QueryRow(
		`SELECT id, title, artist, path, COALESCE(spotify_url, ''), COALESCE(youtube_url, '') FROM songs WHERE path = ?`,
		path,
	)
	return scanSong(row)
}

func (s *SQLiteStore) AllSongs() ([]Song, error) {
	rows, err := s.db.Query(`SELECT id, title, artist, path, COALESCE(spotify_url, ''), COALESCE(youtube_url, '') FROM songs`)
	if err != nil {
		return nil, errs.IndexError(err)
	}
	defer rows.Close()

	var songs []Song
	for rows.Next() {
		var sg Song
		if err := rows.Scan(&sg.ID, &sg.Title, &sg.Artist, &sg.Path, &sg.SpotifyURL, &sg.YoutubeURL); err != nil {
			return nil, errs.IndexError(err)
		}
		songs = append(songs, sg)
	}
	return songs, rows.Err()
}

func (s *SQLiteStore) DeleteSong(songID uint64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errs.IndexError(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM landmarks WHERE song_id = ?`, songID); err != nil {
		return errs.IndexError(err)
	}
	if _, err := tx.Exec(`DELETE FROM songs WHERE id = ?`, songID); err != nil {
		return errs.IndexError(err)
	}
	return errs.IndexError(tx.Commit())
}

// InsertLandmarks bulk-inserts within a single transaction so the
// caller's batch becomes visible atomically (spec §4.4, §5).
func (s *SQLiteStore) InsertLandmarks(songID uint64, landmarks []fingerprint.Landmark) error {
	if len(landmarks) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errs.IndexError(err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO landmarks (song_id, hash, anchor_time) VALUES (?, ?, ?)`)
	if err != nil {
		return errs.IndexError(err)
	}
	defer stmt.Close()

	for _, l := range landmarks {
		if _, err := stmt.Exec(songID, l.Hash, l.AnchorTime); err != nil {
			return errs.IndexError(err)
		}
	}

	return errs.IndexError(tx.Commit())
}

func (s *SQLiteStore) Lookup(hash string) ([]Occurrence, error) {
	rows, err := s.db.Query(`SELECT song_id, anchor_time FROM landmarks WHERE hash = ?`, hash)
	if err != nil {
		return nil, errs.IndexError(err)
	}
	defer rows.Close()

	var occs []Occurrence
	for rows.Next() {
		var o Occurrence
		if err := rows.Scan(&o.SongID, &o.AnchorTime); err != nil {
			return nil, errs.IndexError(err)
		}
		occs = append(occs, o)
	}
	return occs, rows.Err()
}

func (s *SQLiteStore) EraseAll() error {
	if _, err := s.db.Exec(`DELETE FROM landmarks`); err != nil {
		return errs.IndexError(err)
	}
	if _, err := s.db.Exec(`DELETE FROM songs`); err != nil {
		return errs.IndexError(err)
	}
	return nil
}

func scanSong(row *sql.Row) (*Song, error) {
	var sg Song
	err := row.Scan(&sg.ID, &sg.Title, &sg.Artist, &sg.Path, &sg.SpotifyURL, &sg.YoutubeURL)
	if err == sql.ErrNoRows {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, errs.IndexError(err)
	}
	return &sg, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueConstraintErr reports whether err is sqlite's UNIQUE
// constraint violation, without importing the driver's error type
// directly (keeps this file readable without the mattn/go-sqlite3 docs open).
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
