// Package wav implements the transcoding collaborator (spec §6): it is
// out of the fingerprinting engine's scope, but the engine depends on
// it to turn arbitrary input files into a canonical mono PCM stream.
package wav

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"song-recognition/config"
	"song-recognition/errs"
)

// ConvertToWAV converts an input audio file to WAV format with the
// channel count selected by the FINGERPRINT_STEREO env var. Kept from
// the teacher's server/wav/convert.go almost verbatim: it already
// idiomatically shells out to ffmpeg, which remains out of the
// algorithmic core's scope.
func ConvertToWAV(inputFilePath string) (wavFilePath string, err error) {
	if _, err := os.Stat(inputFilePath); err != nil {
		return "", errs.AudioLoadError(fmt.Errorf("input file does not exist: %w", err))
	}

	toStereoStr := config.GetEnv("FINGERPRINT_STEREO", "false")
	toStereo, err := strconv.ParseBool(toStereoStr)
	if err != nil {
		return "", fmt.Errorf("failed to convert env variable (%s) to bool: %v", "FINGERPRINT_STEREO", err)
	}

	channels := 1
	if toStereo {
		channels = 2
	}

	fileExt := filepath.Ext(inputFilePath)
	if fileExt != ".wav" {
		defer os.Remove(inputFilePath)
	}

	outputFile := strings.TrimSuffix(inputFilePath, fileExt) + ".wav"

	// outputFile may already exist; ffmpeg refuses to edit in place.
	tmpFile := filepath.Join(filepath.Dir(outputFile), "tmp_"+filepath.Base(outputFile))
	defer os.Remove(tmpFile)

	cmd := exec.Command(
		"ffmpeg", "-y",
		"-i", inputFilePath,
		"-c", "pcm_s16le",
		"-ar", "44100",
		"-ac", fmt.Sprint(channels),
		tmpFile,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", errs.AudioLoadError(fmt.Errorf("failed to convert to WAV: %v, output %v", err, string(output)))
	}

	if err := os.Rename(tmpFile, outputFile); err != nil {
		return "", fmt.Errorf("failed to rename temporary file to output file: %v", err)
	}

	return outputFile, nil
}

// ExtractChunkAsWAV uses ffmpeg to extract a time segment from any
// audio file and write it as a 16-bit PCM mono WAV, bounding memory use
// to durationSec regardless of the original file's length.
func ExtractChunkAsWAV(inputPath string, startSec, durationSec float64) (string, error) {
	if err := os.MkdirAll(config.TmpDir, 0o755); err != nil {
		return "", err
	}

	outputFile := filepath.Join(config.TmpDir, fmt.Sprintf("chunk_%d_%.0f.wav", time.Now().UnixNano(), startSec))

	cmd := exec.Command(
		"ffmpeg", "-y",
		"-ss", fmt.Sprintf("%.3f", startSec),
		"-t", fmt.Sprintf("%.3f", durationSec),
		"-i", inputPath,
		"-c", "pcm_s16le",
		"-ar", "44100",
		"-ac", "1",
		outputFile,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", errs.AudioLoadError(fmt.Errorf("ffmpeg chunk extraction failed: %v, output: %s", err, output))
	}

	return outputFile, nil
}

// GetAudioDuration returns the duration in seconds of any audio file by
// calling ffprobe.
func GetAudioDuration(inputPath string) (float64, error) {
	cmd := exec.Command(
		"ffprobe",
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, errs.AudioLoadError(fmt.Errorf("ffprobe duration query failed: %v", err))
	}

	return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
}
