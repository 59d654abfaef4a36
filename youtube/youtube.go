// Package youtube is the second external collaborator (spec §6): it
// finds a YouTube video for a song title/artist pair via the YouTube
// Data API, then downloads and transcodes its audio with yt-dlp and
// ffmpeg, the same external-tool-shellout shape the wav package uses
// for format conversion.
package youtube

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"song-recognition/config"
	"song-recognition/errs"
	"song-recognition/wav"
)

// Client wraps the YouTube Data API v3 search endpoint.
type Client struct {
	svc *youtubeapi.Service
}

// NewClient returns a Client bound to cfg's YouTube API key. A missing
// key yields a Client whose Find always fails with an ExternalAPIError,
// rather than preventing the rest of the program from starting.
func NewClient(cfg config.Config) (*Client, error) {
	if cfg.YoutubeAPIKey == "" {
		return &Client{}, nil
	}
	ctx := context.Background()
	svc, err := youtubeapi.NewService(ctx, option.WithAPIKey(cfg.YoutubeAPIKey))
	if err != nil {
		return nil, errs.ExternalAPIError(fmt.Errorf("youtube: building API client: %w", err))
	}
	return &Client{svc: svc}, nil
}

// Find searches for a video matching query and returns its watch URL.
func (c *Client) Find(query string) (string, error) {
	if c.svc == nil {
		return "", errs.ExternalAPIError(fmt.Errorf("youtube: YOUTUBE_API_KEY not configured"))
	}

	call := c.svc.Search.List([]string{"id", "snippet"}).
		Q(query).
		Type("video").
		MaxResults(1)

	resp, err := call.Do()
	if err != nil {
		return "", errs.ExternalAPIError(fmt.Errorf("youtube: search %q: %w", query, err))
	}
	if len(resp.Items) == 0 {
		return "", errs.ExternalAPIError(fmt.Errorf("youtube: no results for %q", query))
	}

	videoID := resp.Items[0].Id.VideoId
	if videoID == "" {
		return "", errs.ExternalAPIError(fmt.Errorf("youtube: result for %q has no video id", query))
	}
	return "https://www.youtube.com/watch?v=" + videoID, nil
}

// Download fetches audio from a YouTube URL with yt-dlp, converts it
// to mono WAV with ffmpeg, and places the result under SongsDir named
// after titleHint (or a generic name if titleHint is empty).
func Download(youtubeURL, titleHint string) (string, error) {
	if err := os.MkdirAll(config.TmpDir, 0o755); err != nil {
		return "", err
	}
	if err := os.MkdirAll(config.SongsDir, 0o755); err != nil {
		return "", err
	}

	tmpl := filepath.Join(config.TmpDir, fmt.Sprintf("yt_audio_%d.%%(ext)s", time.Now().UnixNano()))

	// yt-dlp is retried, with a growing pause between attempts
	const attempts = 3
	var output []byte
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		cmd := exec.Command(
			"yt-dlp",
			"-f", "bestaudio/best",
			"--no-progress",
			"-o", tmpl,
			youtubeURL,
		)
		output, err = cmd.CombinedOutput()
		if err == nil || attempt == attempts {
			break
		}
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	if err != nil {
		return "", errs.ExternalAPIError(fmt.Errorf("yt-dlp download failed: %w: %s", err, output))
	}

	downloaded, err := findDownloadedFile(tmpl)
	if err != nil {
		return "", err
	}
	defer os.Remove(downloaded)

	wavPath, err := wav.ConvertToWAV(downloaded)
	if err != nil {
		return "", err
	}

	finalPath := filepath.Join(config.SongsDir, safeFileName(titleHint)+".wav")
	if err := os.Rename(wavPath, finalPath); err != nil {
		return "", fmt.Errorf("youtube: moving converted file into place: %w", err)
	}
	return finalPath, nil
}

// findDownloadedFile resolves yt-dlp's templated output name to the
// actual file it wrote, since the chosen container extension isn't
// known ahead of time.
func findDownloadedFile(tmpl string) (string, error) {
	pattern := strings.Replace(tmpl, "%(ext)s", "*", 1)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", errs.ExternalAPIError(fmt.Errorf("youtube: no file matched %s after download", pattern))
	}
	return matches[0], nil
}

func safeFileName(name string) string {
	if name == "" {
		return "downloaded_track"
	}
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(`\/:*?"<>|`, r) {
			continue
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "downloaded_track"
	}
	return b.String()
}
