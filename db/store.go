// Package db implements the Landmark Index (spec §4.4): persistent
// storage for Song Records and Landmarks, keyed for fast hash lookup.
// Two backends are provided as a capability, never conditionally
// imported (spec §9): sqlite (default) and mongo.
package db

import (
	"errors"

	"song-recognition/config"
	"song-recognition/fingerprint"
)

// ErrSongNotFound is returned by GetSong when no song with the given ID exists.
var ErrSongNotFound = errors.New("db: song not found")

// Song is the persisted metadata record for an ingested track (spec §3).
type Song struct {
	ID         uint64
	Title      string
	Artist     string
	Path       string
	SpotifyURL string
	YoutubeURL string
}

// Occurrence is one (song_id, anchor_time) hit returned by Lookup.
type Occurrence struct {
	SongID     uint64
	AnchorTime uint32
}

// SongStore manages Song Records.
type SongStore interface {
	// CreateSong inserts a Song Record and returns its assigned ID.
	// Fails with a DuplicatePath-kind error if path is already present.
	CreateSong(title, artist, path, spotifyURL, youtubeURL string) (uint64, error)
	GetSong(songID uint64) (*Song, error)
	GetSongByPath(path string) (*Song, error)
	AllSongs() ([]Song, error)
	DeleteSong(songID uint64) error
}

// LandmarkStore manages the hash -> occurrences mapping.
type LandmarkStore interface {
	// InsertLandmarks bulk-inserts landmarks for songID. Transactional:
	// either all become visible to subsequent lookups, or none do.
	InsertLandmarks(songID uint64, landmarks []fingerprint.Landmark) error
	// Lookup returns every occurrence recorded for hash, in unspecified order.
	Lookup(hash string) ([]Occurrence, error)
	// EraseAll deletes the entire store (songs and landmarks alike).
	EraseAll() error
}

// Store is the full capability the Matcher and CLI/HTTP layers depend on.
type Store interface {
	SongStore
	LandmarkStore
	Close() error
}

// Open dispatches to the sqlite or mongo backend based on cfg.DBType.
func Open(cfg config.Config) (Store, error) {
	switch cfg.DBType {
	case "mongo":
		return OpenMongo(cfg)
	default:
		return OpenSQLite(cfg)
	}
}
