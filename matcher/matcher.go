// Package matcher implements the time-offset histogram voting procedure
// from spec §4.5: it turns a query's bag of landmarks into a ranked
// identification against a Landmark Index.
package matcher

import (
	"context"
	"sort"

	"song-recognition/db"
	"song-recognition/fingerprint"
)

// Prediction is the result of Identify. A nil SongID means "no match",
// per spec §4.5's never-raise-on-no-match contract.
type Prediction struct {
	SongID *uint64
	Title  string
	Artist string
	Score  int
}

var noMatch = Prediction{Title: "No match", Artist: "", Score: 0}

// voteKey is the (song_id, delta) pair the accumulator counts, packed
// into a single comparable struct per spec §9's "96-bit key" guidance.
type voteKey struct {
	songID uint64
	delta  int64
}

// Identify runs the fingerprinting pipeline on samples and performs
// time-offset histogram voting against store (spec §4.5 steps 1-8).
// Cancellation is checked after peak extraction and before the final
// lookup batch (spec §5); a cancelled context aborts with ctx.Err()
// rather than persisting or returning a partial identification.
func Identify(ctx context.Context, samples []float64, sampleRate int, store db.Store, cfg fingerprint.Config) (*Prediction, error) {
	spectrogram, err := fingerprint.Spectrogram(samples, sampleRate, cfg)
	if err != nil {
		return nil, err
	}

	peaks := fingerprint.Peaks(spectrogram, cfg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := fingerprint.Hash(peaks, cfg)
	if len(query) == 0 {
		result := noMatch
		return &result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	votes := make(map[voteKey]int)
	for _, landmark := range query {
		occurrences, err := store.Lookup(landmark.Hash)
		if err != nil {
			return nil, err
		}
		for _, occ := range occurrences {
			delta := int64(occ.AnchorTime) - int64(landmark.AnchorTime)
			votes[voteKey{songID: occ.SongID, delta: delta}]++
		}
	}

	if len(votes) == 0 {
		result := noMatch
		return &result, nil
	}

	// Aggregate per-song totals by summing across every delta bucket,
	// not just the best one (spec §4.5 step 6, pinned by §9's Open
	// Question to match reference behavior).
	perSong := make(map[uint64]int)
	for key, count := range votes {
		perSong[key.songID] += count
	}

	bestSongID, bestScore := argmaxSmallestID(perSong)

	song, err := store.GetSong(bestSongID)
	if err != nil {
		return nil, err
	}

	id := bestSongID
	return &Prediction{SongID: &id, Title: song.Title, Artist: song.Artist, Score: bestScore}, nil
}

// argmaxSmallestID returns the key with the highest value, breaking
// ties by the smallest song ID (spec §4.5 step 7).
func argmaxSmallestID(perSong map[uint64]int) (uint64, int) {
	ids := make([]uint64, 0, len(perSong))
	for id := range perSong {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var bestID uint64
	bestScore := -1
	for _, id := range ids {
		if perSong[id] > bestScore {
			bestID = id
			bestScore = perSong[id]
		}
	}
	return bestID, bestScore
}
