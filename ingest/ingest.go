// Package ingest is the pipeline shared by the CLI and HTTP surfaces:
// load an audio file into a sample stream, fingerprint it, and either
// store it as a new Song Record or match it against the Landmark Index.
// It plays the role the teacher's processAndSave/saveEntry/find
// functions played, generalized so both front ends call one path.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"song-recognition/config"
	"song-recognition/db"
	"song-recognition/errs"
	"song-recognition/fingerprint"
	"song-recognition/matcher"
	"song-recognition/wav"
)

// LoadSamples turns any audio file into a canonical mono sample stream.
// Non-WAV input is transcoded with ffmpeg first (spec §6); the WAV
// decoder then does the actual PCM decode.
func LoadSamples(path string) (samples []float64, sampleRate int, err error) {
	workingPath := path
	if strings.ToLower(filepath.Ext(path)) != ".wav" {
		workingPath, err = wav.ConvertToWAV(path)
		if err != nil {
			return nil, 0, err
		}
	}
	return wav.Decode(workingPath)
}

// Result summarizes a completed ingestion.
type Result struct {
	SongID        uint64
	Title         string
	Artist        string
	LandmarkCount int
	DurationSec   float64
}

// Save fingerprints the file at path and registers it as a new song in
// store. title/artist fall back to embedded tags; title then falls back
// to the filename, mirroring the teacher's saveEntry/handleIndex
// metadata resolution order. A file with no resolvable artist is
// rejected unless force is set, in which case the artist is recorded
// as "unknown".
func Save(ctx context.Context, store db.Store, cfg config.Config, path, title, artist, spotifyURL, youtubeURL string, force bool) (*Result, error) {
	if existing, err := store.GetSongByPath(path); err == nil {
		return nil, errs.DuplicatePath(existing.Path)
	} else if err != db.ErrSongNotFound {
		return nil, err
	}

	meta, metaErr := wav.GetMetadata(path)
	if title == "" && metaErr == nil {
		title = meta.Title
	}
	if artist == "" && metaErr == nil {
		artist = meta.Artist
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if artist == "" {
		if !force {
			return nil, fmt.Errorf("ingest: no artist metadata for %s (use force to index anyway)", path)
		}
		artist = "unknown"
	}

	samples, sampleRate, err := LoadSamples(path)
	if err != nil {
		return nil, err
	}

	landmarks, err := fingerprint.FingerprintChunked(samples, sampleRate, cfg.Fingerprint, 120)
	if err != nil {
		return nil, err
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	songID, err := store.CreateSong(title, artist, path, spotifyURL, youtubeURL)
	if err != nil {
		return nil, err
	}
	if err := store.InsertLandmarks(songID, landmarks); err != nil {
		_ = store.DeleteSong(songID)
		return nil, err
	}

	return &Result{
		SongID:        songID,
		Title:         title,
		Artist:        artist,
		LandmarkCount: len(landmarks),
		DurationSec:   float64(len(samples)) / float64(sampleRate),
	}, nil
}

// Match fingerprints the file at path and identifies it against store.
func Match(ctx context.Context, store db.Store, cfg config.Config, path string) (*matcher.Prediction, error) {
	samples, sampleRate, err := LoadSamples(path)
	if err != nil {
		return nil, err
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return matcher.Identify(ctx, samples, sampleRate, store, cfg.Fingerprint)
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// BatchSave indexes every file in paths concurrently using a bounded
// worker pool, the same channel-fed pattern as the teacher's
// processFilesConcurrently, generalized to report per-file results
// instead of printing them directly.
type BatchOutcome struct {
	Path   string
	Result *Result
	Err    error
}

func BatchSave(ctx context.Context, store db.Store, cfg config.Config, paths []string, force bool) []BatchOutcome {
	numFiles := len(paths)
	if numFiles == 0 {
		return nil
	}

	maxWorkers := runtime.NumCPU() / 2
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if numFiles < maxWorkers {
		maxWorkers = numFiles
	}

	jobs := make(chan string, numFiles)
	results := make(chan BatchOutcome, numFiles)

	for i := 0; i < maxWorkers; i++ {
		go func() {
			for p := range jobs {
				res, err := Save(ctx, store, cfg, p, "", "", "", "", force)
				results <- BatchOutcome{Path: p, Result: res, Err: err}
			}
		}()
	}

	for _, p := range paths {
		jobs <- p
	}
	close(jobs)

	outcomes := make([]BatchOutcome, 0, numFiles)
	for i := 0; i < numFiles; i++ {
		outcomes = append(outcomes, <-results)
	}
	return outcomes
}
