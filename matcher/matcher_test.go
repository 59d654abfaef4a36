package matcher

import (
	"context"
	"math"
	"testing"

	"song-recognition/db"
	"song-recognition/fingerprint"
)

// fakeStore is a minimal in-memory db.Store used to test voting logic
// without a real database backend.
type fakeStore struct {
	songs     map[uint64]db.Song
	landmarks map[string][]db.Occurrence
}

func newFakeStore() *fakeStore {
	return &fakeStore{songs: map[uint64]db.Song{}, landmarks: map[string][]db.Occurrence{}}
}

func (f *fakeStore) CreateSong(title, artist, path, spotifyURL, youtubeURL string) (uint64, error) {
	id := uint64(len(f.songs) + 1)
	f.songs[id] = db.Song{ID: id, Title: title, Artist: artist, Path: path}
	return id, nil
}
func (f *fakeStore) GetSong(songID uint64) (*db.Song, error) {
	s, ok := f.songs[songID]
	if !ok {
		return nil, db.ErrSongNotFound
	}
	return &s, nil
}
func (f *fakeStore) GetSongByPath(path string) (*db.Song, error) { return nil, db.ErrSongNotFound }
func (f *fakeStore) AllSongs() ([]db.Song, error)                { return nil, nil }
func (f *fakeStore) DeleteSong(songID uint64) error              { delete(f.songs, songID); return nil }

func (f *fakeStore) InsertLandmarks(songID uint64, landmarks []fingerprint.Landmark) error {
	for _, l := range landmarks {
		f.landmarks[l.Hash] = append(f.landmarks[l.Hash], db.Occurrence{SongID: songID, AnchorTime: l.AnchorTime})
	}
	return nil
}
func (f *fakeStore) Lookup(hash string) ([]db.Occurrence, error) { return f.landmarks[hash], nil }
func (f *fakeStore) EraseAll() error {
	f.songs = map[uint64]db.Song{}
	f.landmarks = map[string][]db.Occurrence{}
	return nil
}
func (f *fakeStore) Close() error { return nil }

func sineWave(freqHz float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freqHz * float64(i) / float64(sampleRate))
	}
	return out
}

func TestIdentifyNoMatchOnEmptyStore(t *testing.T) {
	store := newFakeStore()
	cfg := fingerprint.DefaultConfig()
	samples := sineWave(440, cfg.SampleRate, cfg.SampleRate*3)

	pred, err := Identify(context.Background(), samples, cfg.SampleRate, store, cfg)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if pred.SongID != nil || pred.Score != 0 {
		t.Fatalf("expected no-match, got %+v", pred)
	}
}

func TestIdentifySelfMatch(t *testing.T) {
	store := newFakeStore()
	cfg := fingerprint.DefaultConfig()

	full := sineWave(440, cfg.SampleRate, cfg.SampleRate*20)
	landmarks, err := fingerprint.Fingerprint(full, cfg.SampleRate, cfg)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	songID, err := store.CreateSong("track_A", "artist_A", "songs/a.wav", "", "")
	if err != nil {
		t.Fatalf("CreateSong: %v", err)
	}
	if err := store.InsertLandmarks(songID, landmarks); err != nil {
		t.Fatalf("InsertLandmarks: %v", err)
	}

	clip := full[3*cfg.SampleRate : 6*cfg.SampleRate]
	pred, err := Identify(context.Background(), clip, cfg.SampleRate, store, cfg)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if pred.SongID == nil || *pred.SongID != songID {
		t.Fatalf("expected match on song %d, got %+v", songID, pred)
	}
	if pred.Score <= 0 {
		t.Fatalf("expected positive score, got %d", pred.Score)
	}
}

func TestIdentifyTieBreaksOnSmallestSongID(t *testing.T) {
	store := newFakeStore()
	cfg := fingerprint.DefaultConfig()

	landmarks := []fingerprint.Landmark{{Hash: "h1", AnchorTime: 0}}
	idA, _ := store.CreateSong("A", "artist", "songs/a.wav", "", "")
	idB, _ := store.CreateSong("B", "artist", "songs/b.wav", "", "")
	store.InsertLandmarks(idA, landmarks)
	store.InsertLandmarks(idB, landmarks)

	votes := map[voteKey]int{
		{songID: idA, delta: 0}: 5,
		{songID: idB, delta: 0}: 5,
	}
	perSong := map[uint64]int{idA: 5, idB: 5}
	_ = votes

	best, score := argmaxSmallestID(perSong)
	if best != minUint64(idA, idB) || score != 5 {
		t.Fatalf("expected tie broken to smallest id, got id=%d score=%d", best, score)
	}
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
