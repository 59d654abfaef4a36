package fingerprint

import (
	"log"
	"time"
)

// Fingerprint runs the full spectrogram -> peaks -> hash pipeline on a
// sample stream and returns its landmark set (spec §2 ingestion/query
// data flow). The pipeline is deterministic: calling Fingerprint twice
// on identical input, sampleRate, and cfg yields an identical landmark
// set (spec §3 invariant, tested in fingerprint_test.go).
func Fingerprint(samples []float64, sampleRate int, cfg Config) ([]Landmark, error) {
	spectrogram, err := Spectrogram(samples, sampleRate, cfg)
	if err != nil {
		return nil, err
	}

	peaks := Peaks(spectrogram, cfg)
	return Hash(peaks, cfg), nil
}

// ChunkResult pairs one chunk's landmarks with the number of peaks
// picked in that chunk. FingerprintChunked does not return it; it logs
// its per-chunk counts directly.
type ChunkResult struct {
	Landmarks []Landmark
	NumPeaks  int
}

// FingerprintChunked processes a long sample stream in bounded-memory
// chunks, offsetting each chunk's anchor times so they land on the
// timeline of the full recording. Adapted from the teacher's
// FingerprintAudioChunked (server/shazam/fingerprint.go): same
// chunk/overlap/merge shape, generalized to emit spec-shaped Landmarks
// instead of the teacher's packed uint32 address. Used by `save` for
// audiobook-length ingestion where holding the entire spectrogram in
// memory at once would be wasteful.
func FingerprintChunked(samples []float64, sampleRate int, cfg Config, chunkDurationSec float64) ([]Landmark, error) {
	if chunkDurationSec <= 0 {
		return Fingerprint(samples, sampleRate, cfg)
	}

	chunkSamples := int(chunkDurationSec * float64(sampleRate))
	if chunkSamples <= cfg.WindowSize {
		return Fingerprint(samples, sampleRate, cfg)
	}

	// offsets below count input samples, while frames are counted at
	// cfg.SampleRate once Spectrogram has resampled each chunk
	rateRatio := float64(cfg.SampleRate) / float64(sampleRate)

	overlapSamples := int(float64(cfg.MaxDT*cfg.HopSize) / rateRatio) // enough overlap to not lose cross-boundary pairs
	step := chunkSamples - overlapSamples
	if step <= 0 {
		step = chunkSamples
	}

	var landmarks []Landmark
	chunkIdx := 0
	start := time.Now()

	for offset := 0; offset < len(samples); offset += step {
		end := offset + chunkSamples
		if end > len(samples) {
			end = len(samples)
		}

		chunk := samples[offset:end]
		spectrogram, err := Spectrogram(chunk, sampleRate, cfg)
		if err != nil {
			return nil, err
		}

		peaks := Peaks(spectrogram, cfg)

		// shift peak times so anchor_time reflects position in the full stream
		frameOffset := int(float64(offset)*rateRatio) / cfg.HopSize
		for i := range peaks {
			peaks[i].Time += frameOffset
		}

		chunkLandmarks := Hash(peaks, cfg)
		landmarks = append(landmarks, chunkLandmarks...)

		log.Printf("[fingerprint] chunk %d: %d peaks, %d landmarks", chunkIdx, len(peaks), len(chunkLandmarks))
		chunkIdx++

		if end == len(samples) {
			break
		}
	}

	log.Printf("[fingerprint] total: %d landmarks from %d chunks, took %s", len(landmarks), chunkIdx, time.Since(start))
	return landmarks, nil
}
