// Package api is the HTTP front end (spec §6's "networked surface"):
// upload-a-file endpoints for saving and matching, backed by the same
// ingest pipeline the CLI uses. Handlers, middleware, and logging are
// adapted from the teacher's server/handlers.go and
// server/cmdHandlers.go.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"song-recognition/config"
	"song-recognition/db"
	"song-recognition/errs"
	"song-recognition/ingest"
	"song-recognition/spotify"
	"song-recognition/youtube"
)

const maxUploadSize = 2000 << 20 // 2 GB, audiobook-scale uploads

// Server bundles the dependencies every handler needs. Unlike the
// teacher's package-level fpConfig/db globals, these are held as
// fields so multiple Servers (e.g. in tests) never share state.
type Server struct {
	Store   db.Store
	Config  config.Config
	Spotify *spotify.Client
	Youtube *youtube.Client
}

// Routes builds the full middleware-wrapped handler, mirroring the
// teacher's serve() wiring: requestLogger(corsMiddleware(mux)).
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/save", s.handleSave)
	mux.HandleFunc("/api/find", s.handleFind)
	mux.HandleFunc("/api/entries", s.handleEntries)
	mux.HandleFunc("/api/download", s.handleDownload)

	return requestLogger(corsMiddleware(mux))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError reports a failure in spec §6's error shape:
// {status:"error", detail}.
func writeError(w http.ResponseWriter, status int, msg string) {
	log.Printf("[error] %d: %s", status, msg)
	writeJSON(w, status, map[string]string{"status": "error", "detail": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func saveUploadedFile(r *http.Request) (string, string, int64, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", 0, fmt.Errorf("no file provided: %w", err)
	}
	defer file.Close()

	if err := os.MkdirAll(config.TmpDir, 0o755); err != nil {
		return "", "", 0, fmt.Errorf("failed to create tmp dir: %w", err)
	}

	tmpPath := filepath.Join(config.TmpDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), header.Filename))
	dst, err := os.Create(tmpPath)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, file)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to write file: %w", err)
	}
	return tmpPath, header.Filename, written, nil
}

// saveResponse mirrors spec §6's POST /api/save contract:
// {status, song_id, hashes, filename, spotify_url?, youtube_url?}.
type saveResponse struct {
	Status     string `json:"status"`
	SongID     uint64 `json:"song_id"`
	Hashes     int    `json:"hashes"`
	Filename   string `json:"filename"`
	SpotifyURL string `json:"spotify_url,omitempty"`
	YoutubeURL string `json:"youtube_url,omitempty"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	reqStart := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	tmpPath, filename, size, err := saveUploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tmpPath)

	log.Printf("[save] file saved: %s (%d bytes)", filename, size)

	title := r.FormValue("title")
	artist := r.FormValue("artist")
	spotifyURL := r.FormValue("spotifyUrl")
	force := r.FormValue("force") == "true"

	if spotifyURL != "" && s.Spotify != nil {
		if track, err := s.Spotify.ResolveTrack(spotifyURL); err == nil {
			if title == "" {
				title = track.Title
			}
			if artist == "" {
				artist = track.Artist
			}
		} else {
			log.Printf("[save] warning: spotify resolve failed: %v", err)
		}
	}

	result, err := ingest.Save(r.Context(), s.Store, s.Config, tmpPath, title, artist, spotifyURL, "", force)
	if err != nil {
		if errs.Is(err, errs.KindDuplicatePath) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("[save] completed %q by %q: %d fingerprints, %s", result.Title, result.Artist, result.LandmarkCount, time.Since(reqStart))
	writeJSON(w, http.StatusOK, saveResponse{
		Status:     "success",
		SongID:     result.SongID,
		Hashes:     result.LandmarkCount,
		Filename:   filename,
		SpotifyURL: spotifyURL,
	})
}

// prediction mirrors spec §6's POST /api/find contract:
// {status, prediction:{song_id, title, artist, score, spotify_url?, youtube_url?}}.
type prediction struct {
	SongID     *uint64 `json:"song_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Score      int     `json:"score"`
	SpotifyURL string  `json:"spotify_url,omitempty"`
	YoutubeURL string  `json:"youtube_url,omitempty"`
}

type findResponse struct {
	Status     string     `json:"status"`
	Prediction prediction `json:"prediction"`
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	reqStart := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	tmpPath, filename, size, err := saveUploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tmpPath)

	log.Printf("[find] file saved: %s (%d bytes)", filename, size)

	pred, err := ingest.Match(r.Context(), s.Store, s.Config, tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("[find] completed in %s: match=%v score=%d", time.Since(reqStart), pred.SongID != nil, pred.Score)
	if pred.SongID == nil {
		writeJSON(w, http.StatusOK, findResponse{Status: "success", Prediction: prediction{Title: pred.Title, Artist: pred.Artist, Score: pred.Score}})
		return
	}

	result := prediction{SongID: pred.SongID, Title: pred.Title, Artist: pred.Artist, Score: pred.Score}
	if song, err := s.Store.GetSong(*pred.SongID); err == nil {
		result.SpotifyURL = song.SpotifyURL
		result.YoutubeURL = song.YoutubeURL
	}
	writeJSON(w, http.StatusOK, findResponse{Status: "success", Prediction: result})
}

type entryResponse struct {
	ID     uint64 `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	songs, err := s.Store.AllSongs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list entries")
		return
	}

	entries := make([]entryResponse, 0, len(songs))
	for _, song := range songs {
		entries = append(entries, entryResponse{ID: song.ID, Title: song.Title, Artist: song.Artist})
	}
	writeJSON(w, http.StatusOK, entries)
}

// downloadRequest mirrors spec §6's POST /api/download contract: JSON
// {spotify_url}; 400 when spotify_url is missing.
type downloadRequest struct {
	SpotifyURL string `json:"spotify_url"`
}

// downloadResponse mirrors spec §6: {status, song_id, title, artist,
// hashes, wav_path, spotify_url, youtube_url}.
type downloadResponse struct {
	Status     string `json:"status"`
	SongID     uint64 `json:"song_id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Hashes     int    `json:"hashes"`
	WavPath    string `json:"wav_path"`
	SpotifyURL string `json:"spotify_url"`
	YoutubeURL string `json:"youtube_url"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SpotifyURL == "" {
		writeError(w, http.StatusBadRequest, "spotify_url is required")
		return
	}
	if s.Spotify == nil || s.Youtube == nil {
		writeError(w, http.StatusServiceUnavailable, "spotify or youtube client not configured")
		return
	}

	track, err := s.Spotify.ResolveTrack(req.SpotifyURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	videoURL, err := s.Youtube.Find(fmt.Sprintf("%s %s", track.Title, track.Artist))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	path, err := youtube.Download(videoURL, track.Title)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := ingest.Save(r.Context(), s.Store, s.Config, path, track.Title, track.Artist, req.SpotifyURL, videoURL, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, downloadResponse{
		Status:     "success",
		SongID:     result.SongID,
		Title:      result.Title,
		Artist:     result.Artist,
		Hashes:     result.LandmarkCount,
		WavPath:    path,
		SpotifyURL: req.SpotifyURL,
		YoutubeURL: videoURL,
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Printf("[http] %s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
		}
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
