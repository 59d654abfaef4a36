package wav

import (
	"fmt"
	"os"

	"github.com/dhowden/tag"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"song-recognition/errs"
)

// Decode reads a WAV file into a mono float64 PCM stream in [-1, 1]
// together with its native sample rate (spec §3 Sample Stream). Stereo
// input is downmixed by averaging channels.
func Decode(path string) (samples []float64, sampleRate int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, errs.AudioLoadError(fmt.Errorf("opening %s: %w", path, err))
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, 0, errs.AudioLoadError(fmt.Errorf("%s is not a valid WAV file", path))
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, errs.AudioLoadError(fmt.Errorf("reading PCM data from %s: %w", path, err))
	}
	if len(buf.Data) == 0 {
		return nil, 0, errs.AudioLoadError(fmt.Errorf("%s contains no audio samples", path))
	}

	samples = downmix(buf)
	return samples, buf.Format.SampleRate, nil
}

// downmix converts an audio.IntBuffer's interleaved integer samples
// into mono float64 samples in [-1, 1], averaging channels.
func downmix(buf *audio.IntBuffer) []float64 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	maxAmplitude := float64(int(1) << uint(buf.SourceBitDepth-1))
	if maxAmplitude <= 0 {
		maxAmplitude = 32768
	}

	numFrames := len(buf.Data) / channels
	out := make([]float64, numFrames)

	for i := 0; i < numFrames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		out[i] = (sum / float64(channels)) / maxAmplitude
	}
	return out
}

// Metadata holds the subset of embedded tag fields the ingestion path
// uses to infer a title/artist when the caller doesn't supply one.
type Metadata struct {
	Title  string
	Artist string
}

// GetMetadata reads embedded ID3/Vorbis/MP4 tags from any audio file
// type that the dhowden/tag library supports.
func GetMetadata(path string) (Metadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer file.Close()

	m, err := tag.ReadFrom(file)
	if err != nil {
		return Metadata{}, err
	}

	return Metadata{Title: m.Title(), Artist: m.Artist()}, nil
}
