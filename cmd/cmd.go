// Package cmd implements the CLI surface (spec §6): find, save, erase,
// and serve, dispatched the way the teacher's server/main.go and
// cmdHandlers.go do it, generalized onto the shared ingest pipeline.
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"song-recognition/api"
	"song-recognition/config"
	"song-recognition/db"
	"song-recognition/ingest"
	"song-recognition/spotify"
	"song-recognition/youtube"
)

// Find fingerprints the file at path and reports the best match, or
// "no match found" per spec §4.5's never-raise-on-no-match contract.
func Find(cfg config.Config, store db.Store, path string) {
	start := time.Now()
	pred, err := ingest.Match(context.Background(), store, cfg, path)
	if err != nil {
		color.Red("error identifying %s: %v", path, err)
		return
	}

	if pred.SongID == nil {
		fmt.Println("no match found.")
		fmt.Printf("search took: %s\n", time.Since(start))
		return
	}

	color.Green("match: %s by %s (score: %d)", pred.Title, pred.Artist, pred.Score)
	fmt.Printf("search took: %s\n", time.Since(start))
}

// Save indexes a single file or every file under a directory, using a
// bounded worker pool for directories (ingest.BatchSave).
func Save(cfg config.Config, store db.Store, path string, force bool) {
	info, err := os.Stat(path)
	if err != nil {
		color.Red("error: %v", err)
		return
	}

	if !info.IsDir() {
		result, err := ingest.Save(context.Background(), store, cfg, path, "", "", "", "", force)
		if err != nil {
			color.Red("error saving %s: %v", path, err)
			return
		}
		color.Green("indexed %q by %q (%d landmarks)", result.Title, result.Artist, result.LandmarkCount)
		return
	}

	var paths []string
	filepath.Walk(path, func(fp string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			paths = append(paths, fp)
		}
		return nil
	})

	outcomes := ingest.BatchSave(context.Background(), store, cfg, paths, force)
	successCount, errorCount := 0, 0
	for _, o := range outcomes {
		if o.Err != nil {
			color.Red("error indexing %s: %v", o.Path, o.Err)
			errorCount++
			continue
		}
		successCount++
		fmt.Printf("indexed %q by %q (%d landmarks)\n", o.Result.Title, o.Result.Artist, o.Result.LandmarkCount)
	}
	fmt.Printf("\nprocessed %d files: %d successful, %d failed\n", len(paths), successCount, errorCount)
}

// Erase clears the Landmark Index, and additionally removes indexed
// audio files from SongsDir when all is true.
func Erase(cfg config.Config, store db.Store, all bool) {
	if err := store.EraseAll(); err != nil {
		color.Red("error erasing store: %v", err)
		return
	}
	fmt.Println("database cleared")

	if !all {
		return
	}

	err := filepath.Walk(config.SongsDir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".wav", ".m4a", ".mp3", ".flac", ".ogg":
			return os.Remove(path)
		}
		return nil
	})
	if err != nil {
		color.Red("error cleaning files in %s: %v", config.SongsDir, err)
		return
	}
	fmt.Println("audio files cleared")
}

// Download resolves a Spotify track URL to title/artist metadata, finds
// and fetches matching audio from YouTube, transcodes it, and indexes
// the result (spec §6's `download <spotify_url>` contract).
func Download(cfg config.Config, store db.Store, spotifyURL string) {
	sc := spotify.NewClient(cfg)
	track, err := sc.ResolveTrack(spotifyURL)
	if err != nil {
		color.Red("error resolving spotify track: %v", err)
		return
	}

	yc, err := youtube.NewClient(cfg)
	if err != nil {
		color.Red("error building youtube client: %v", err)
		return
	}

	videoURL, err := yc.Find(fmt.Sprintf("%s %s", track.Title, track.Artist))
	if err != nil {
		color.Red("error finding audio for %q by %q: %v", track.Title, track.Artist, err)
		return
	}

	path, err := youtube.Download(videoURL, track.Title)
	if err != nil {
		color.Red("error downloading %s: %v", videoURL, err)
		return
	}

	result, err := ingest.Save(context.Background(), store, cfg, path, track.Title, track.Artist, spotifyURL, videoURL, true)
	if err != nil {
		color.Red("error indexing downloaded file: %v", err)
		return
	}
	color.Green("downloaded and indexed %q by %q (%d landmarks)", result.Title, result.Artist, result.LandmarkCount)
}

// Serve starts the HTTP API on the given port. protocol is only shown in
// the startup message: the server always listens with plain HTTP, and
// "https" does not enable TLS.
func Serve(cfg config.Config, store db.Store, protocol, port string) {
	server := &api.Server{
		Store:   store,
		Config:  cfg,
		Spotify: spotify.NewClient(cfg),
	}
	if yc, err := youtube.NewClient(cfg); err == nil {
		server.Youtube = yc
	} else {
		color.Yellow("youtube client disabled: %v", err)
	}

	addr := ":" + port
	fmt.Printf("starting server on %s (%s)\n", addr, protocol)
	if err := http.ListenAndServe(addr, server.Routes()); err != nil {
		color.Red("server error: %v", err)
		os.Exit(1)
	}
}
